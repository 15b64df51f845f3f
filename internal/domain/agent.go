// Package domain contains core domain types for the persona chat service.
package domain

import (
	"strconv"
	"time"
)

// DemoAgentID is the well-known agent used when a requested agent is unknown.
const DemoAgentID = "demo-agent"

// AgentConfig is a named persona configuration driving one conversational behavior.
type AgentConfig struct {
	AgentID          string            `json:"agent_id" yaml:"agent_id"`
	PersonaTitle     string            `json:"persona_title" yaml:"persona_title"`
	Tone             string            `json:"tone" yaml:"tone"`
	Rules            []string          `json:"rules" yaml:"rules"`
	ProhibitedTopics []string          `json:"prohibited_topics" yaml:"prohibited_topics"`
	InitialContext   map[string]string `json:"initial_context" yaml:"initial_context"`
	CreatedAt        time.Time         `json:"created_at" yaml:"-"`
	UpdatedAt        time.Time         `json:"updated_at" yaml:"-"`
}

// LegacyPersona is the pre-migration persona shape keyed by a numeric ID.
type LegacyPersona struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Tone        string    `json:"tone"`
	Constraints string    `json:"constraints"`
	CreatedAt   time.Time `json:"created_at"`
}

// ResolutionSource records which fallback tier produced a ResolvedAgent.
type ResolutionSource string

const (
	SourceExact  ResolutionSource = "exact"
	SourceDemo   ResolutionSource = "demo"
	SourceLegacy ResolutionSource = "legacy"
)

// ResolvedAgent is the uniform view of an agent after resolution.
type ResolvedAgent struct {
	AgentID          string
	PersonaTitle     string
	Tone             string
	Rules            []string
	ProhibitedTopics []string
	InitialContext   map[string]string
	Source           ResolutionSource
}

// ResolvedFromConfig maps a stored configuration into a ResolvedAgent.
func ResolvedFromConfig(cfg *AgentConfig, source ResolutionSource) *ResolvedAgent {
	ctx := make(map[string]string, len(cfg.InitialContext))
	for k, v := range cfg.InitialContext {
		ctx[k] = v
	}
	return &ResolvedAgent{
		AgentID:          cfg.AgentID,
		PersonaTitle:     cfg.PersonaTitle,
		Tone:             cfg.Tone,
		Rules:            append([]string(nil), cfg.Rules...),
		ProhibitedTopics: append([]string(nil), cfg.ProhibitedTopics...),
		InitialContext:   ctx,
		Source:           source,
	}
}

// ResolvedFromLegacy maps a legacy persona into a ResolvedAgent.
// Prohibited topics and initial context are always empty.
func ResolvedFromLegacy(p *LegacyPersona) *ResolvedAgent {
	var rules []string
	if p.Constraints != "" {
		rules = []string{p.Constraints}
	}
	return &ResolvedAgent{
		AgentID:          strconv.FormatInt(p.ID, 10),
		PersonaTitle:     p.Name,
		Tone:             p.Tone,
		Rules:            rules,
		ProhibitedTopics: []string{},
		InitialContext:   map[string]string{},
		Source:           SourceLegacy,
	}
}
