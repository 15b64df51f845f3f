package domain

import (
	"time"
)

// Role identifies the author of a stored turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one stored message within a session. Turns are never mutated.
type Turn struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	AgentID   string    `json:"agent_id"`
	Role      Role      `json:"role"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// AgentSummary is the listing view of an agent configuration.
type AgentSummary struct {
	AgentID      string    `json:"agent_id"`
	PersonaTitle string    `json:"persona_title"`
	CreatedAt    time.Time `json:"created_at"`
}
