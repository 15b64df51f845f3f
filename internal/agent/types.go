// Package agent runs persona-driven chat turns and serves the chat API.
package agent

import (
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/personachat/internal/history"
	"github.com/ashureev/personachat/internal/policy"
)

var (
	// ErrValidation marks requests missing required fields.
	ErrValidation = errors.New("validation failed")
	// ErrAgentNotFound is returned when no configuration resolves for an agent ID.
	ErrAgentNotFound = errors.New("agent not found")
)

// ChatRequest is one user turn.
type ChatRequest struct {
	AgentID     string `json:"agent_id"`
	SessionID   string `json:"session_id"`
	UserMessage string `json:"user_message"`
	RequestID   string `json:"-"`
}

// Metadata describes how a reply was produced.
type Metadata struct {
	TopicDetected policy.Topic `json:"topic_detected"`
	TokensUsed    int          `json:"tokens_used"`
	Blocked       bool         `json:"blocked"`
	AgentID       string       `json:"agent_id"`
	SessionID     string       `json:"session_id"`
}

// ChatResponse is the result of a completed turn.
type ChatResponse struct {
	Status   string   `json:"status"`
	Reply    string   `json:"reply"`
	Metadata Metadata `json:"metadata"`
	// State is the last state the turn reached.
	State State `json:"-"`
	// Trace lists every state the turn passed through, starting at StateStart.
	Trace []State `json:"-"`
}

// TurnError is returned when a turn ends in StateFailed. From is the last
// state reached before the failure.
type TurnError struct {
	From State
	Err  error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("turn failed after %s: %v", e.From, e.Err)
}

func (e *TurnError) Unwrap() error {
	return e.Err
}

// State is a step of the turn pipeline.
type State string

const (
	StateStart      State = "start"
	StateScreened   State = "screened"
	StateResolved   State = "resolved"
	StateAssembled  State = "assembled"
	StateGenerated  State = "generated"
	StateClassified State = "classified"
	StatePersisted  State = "persisted"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// ProviderErrorReply is the reply sent when generation fails. The provider
// error itself is only logged.
const ProviderErrorReply = "Model sağlayıcı hatası: şu anda yanıt üretilemiyor, lütfen daha sonra tekrar deneyin."

const statusSuccess = "success"

// Config holds turn-level settings.
type Config struct {
	HistoryMaxMessages int
	HistoryMaxChars    int
	LLMTimeout         time.Duration
	// GuardText opens every prompt. Empty uses prompt.SystemGuard.
	GuardText string
}

// DefaultConfig returns default turn settings.
func DefaultConfig() Config {
	return Config{
		HistoryMaxMessages: history.DefaultMaxMessages,
		HistoryMaxChars:    history.DefaultMaxCharsPerMessage,
		LLMTimeout:         8 * time.Second,
	}
}
