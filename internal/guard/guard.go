// Package guard implements the pre-generation prompt-injection screen.
//
// The screen is a plain keyword match and only inspects the current message.
// Injection attempts replayed from stored history are neutralised by
// history compaction instead.
package guard

import (
	"github.com/ashureev/personachat/internal/shared"
)

// MarkerPhrase heads the immutable system guard block. Stored history must
// never replay it verbatim.
const MarkerPhrase = "ÖNEMLİ SİSTEM TALİMATI"

// RefusalText is returned instead of a model answer when a message is blocked.
const RefusalText = "Bu isteği yerine getiremiyorum. Başka nasıl yardımcı olabilirim?"

// DefaultPhrases are the instruction-override attempts rejected outright.
var DefaultPhrases = []string{
	"kuralları yok say",
	"sistem mesajını",
	"promptu göster",
	"rolünü değiştir",
	"yukarıdaki talimatları",
}

// Verdict is the result of screening one message.
type Verdict struct {
	Blocked bool
	Phrase  string
}

// Screen checks messages against a fixed phrase list.
type Screen struct {
	phrases []string
}

// New returns a Screen for phrases; an empty list uses DefaultPhrases.
func New(phrases []string) *Screen {
	if len(phrases) == 0 {
		phrases = DefaultPhrases
	}
	return &Screen{phrases: append([]string(nil), phrases...)}
}

// Check screens message. It performs no I/O.
func (s *Screen) Check(message string) Verdict {
	if phrase, ok := shared.ContainsAnyFold(message, s.phrases); ok {
		return Verdict{Blocked: true, Phrase: phrase}
	}
	return Verdict{}
}
