// Package history stores chat turns and renders the bounded, sanitised
// transcript that is replayed into the next prompt.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/personachat/internal/domain"
	"github.com/ashureev/personachat/internal/guard"
)

const (
	// DefaultMaxMessages is the number of most recent turns kept in a transcript.
	DefaultMaxMessages = 6
	// DefaultMaxCharsPerMessage caps each rendered message, in characters.
	DefaultMaxCharsPerMessage = 400
	// FetchCeiling bounds how many turns are read from storage per compaction.
	FetchCeiling = 1000

	// RedactionToken replaces the guard marker phrase in replayed history.
	RedactionToken = "[SYSTEM MESSAGE REDACTED]"

	userLabel      = "Kullanıcı"
	assistantLabel = "Asistan"
	ellipsis       = "..."
)

var markerPattern = regexp.MustCompile("(?i)" + regexp.QuoteMeta(guard.MarkerPhrase))

// lineBreaks matches every separator a model may read as a new line.
var lineBreaks = regexp.MustCompile(`\r\n|[\r\n\v\f\x1c-\x1e\x{85}\x{2028}\x{2029}]`)

// TurnStore is the persistence the ledger needs.
type TurnStore interface {
	AppendTurn(ctx context.Context, turn *domain.Turn) error
	ListTurns(ctx context.Context, sessionID, agentID string, limit int) ([]domain.Turn, error)
}

// PersistResult reports the outcome of a best-effort write.
// Failures are logged by the ledger and never surface as errors.
type PersistResult struct {
	Saved  int
	Failed bool
}

// Ledger is the append-only log of per-session turns.
type Ledger struct {
	store  TurnStore
	logger *slog.Logger
	locks  pairLocks
	now    func() time.Time
}

// NewLedger creates a ledger backed by store.
func NewLedger(store TurnStore, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		store:  store,
		logger: logger,
		locks:  pairLocks{m: make(map[string]*pairLock)},
		now:    time.Now,
	}
}

// Append durably writes one turn.
func (l *Ledger) Append(ctx context.Context, sessionID, agentID string, role domain.Role, message string) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}
	return l.store.AppendTurn(ctx, &domain.Turn{
		SessionID: sessionID,
		AgentID:   agentID,
		Role:      role,
		Message:   message,
		Timestamp: l.now(),
	})
}

// AppendBestEffort writes the user message and the assistant answer as
// adjacent turns. Appends for the same session/agent pair are serialised.
// It never returns an error; failures are logged and reported in the result.
func (l *Ledger) AppendBestEffort(ctx context.Context, sessionID, agentID, userMessage, answer string) PersistResult {
	unlock := l.locks.lock(sessionID + "\x00" + agentID)
	defer unlock()

	var res PersistResult
	for _, t := range []struct {
		role domain.Role
		msg  string
	}{
		{domain.RoleUser, userMessage},
		{domain.RoleAssistant, answer},
	} {
		if err := l.Append(ctx, sessionID, agentID, t.role, t.msg); err != nil {
			l.logger.Warn("Failed to persist chat turn",
				"session_id", sessionID,
				"agent_id", agentID,
				"role", t.role,
				"error", err,
			)
			res.Failed = true
			return res
		}
		res.Saved++
	}
	return res
}

// Turns returns up to limit of the most recent raw turns, oldest first.
func (l *Ledger) Turns(ctx context.Context, sessionID, agentID string, limit int) ([]domain.Turn, error) {
	if limit <= 0 || limit > FetchCeiling {
		limit = FetchCeiling
	}
	turns, err := l.store.ListTurns(ctx, sessionID, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	return turns, nil
}

// Compact renders the bounded, sanitised transcript for a session/agent pair.
// A storage failure yields an empty transcript.
func (l *Ledger) Compact(ctx context.Context, sessionID, agentID string, maxMessages, maxChars int) string {
	turns, err := l.store.ListTurns(ctx, sessionID, agentID, FetchCeiling)
	if err != nil {
		l.logger.Warn("Failed to load chat history, continuing without it",
			"session_id", sessionID,
			"agent_id", agentID,
			"error", err,
		)
		return ""
	}
	return CompactTurns(turns, maxMessages, maxChars)
}

// CompactTurns keeps the last maxMessages turns, sanitises and truncates
// each one, and renders them as "<label>: <content>" lines. When turns were
// dropped a single notice line with the omitted count is prepended.
func CompactTurns(turns []domain.Turn, maxMessages, maxChars int) string {
	if len(turns) == 0 {
		return ""
	}
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxCharsPerMessage
	}

	omitted := len(turns) - maxMessages
	tail := turns
	if omitted > 0 {
		tail = turns[omitted:]
	}

	parts := make([]string, 0, len(tail)+1)
	if omitted > 0 {
		parts = append(parts, fmt.Sprintf("[Önceki %d mesaj çıkarıldı (özetlenmedi).]", omitted))
	}
	for _, t := range tail {
		label := userLabel
		if t.Role == domain.RoleAssistant {
			label = assistantLabel
		}
		parts = append(parts, label+": "+truncate(Sanitize(t.Message), maxChars))
	}
	return strings.Join(parts, "\n")
}

// Sanitize neutralises content that could pose as instructions when replayed:
// triple quotes are collapsed, the guard marker is redacted, and lines that
// start with "system:" are dropped. Every line separator is normalised to
// "\n" first.
func Sanitize(content string) string {
	for strings.Contains(content, `"""`) {
		content = strings.ReplaceAll(content, `"""`, `"`)
	}
	content = markerPattern.ReplaceAllLiteralString(content, RedactionToken)

	lines := lineBreaks.Split(content, -1)
	kept := lines[:0]
	for _, ln := range lines {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(ln)), "system:") {
			continue
		}
		kept = append(kept, ln)
	}
	return strings.Join(kept, "\n")
}

func truncate(s string, maxChars int) string {
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	if maxChars <= len(ellipsis) {
		return string(r[:maxChars])
	}
	return string(r[:maxChars-len(ellipsis)]) + ellipsis
}

type pairLock struct {
	mu   sync.Mutex
	refs int
}

// pairLocks hands out one mutex per key and forgets it once nobody holds it.
type pairLocks struct {
	mu sync.Mutex
	m  map[string]*pairLock
}

func (p *pairLocks) lock(key string) func() {
	p.mu.Lock()
	l, ok := p.m[key]
	if !ok {
		l = &pairLock{}
		p.m[key] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.m, key)
		}
		p.mu.Unlock()
	}
}
