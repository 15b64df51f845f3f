package agent

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ashureev/personachat/internal/domain"
)

// ConfigReader is the read side of the agent configuration store.
type ConfigReader interface {
	GetAgentConfig(ctx context.Context, agentID string) (*domain.AgentConfig, error)
	GetLegacyPersona(ctx context.Context, id int64) (*domain.LegacyPersona, error)
}

// Resolver maps an agent ID to a configuration. Lookup order is fixed:
// exact agent ID, then the demo agent, then a numeric legacy persona ID.
type Resolver struct {
	repo ConfigReader
}

// NewResolver creates a resolver over repo.
func NewResolver(repo ConfigReader) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns the configuration that drives agentID's turns.
func (r *Resolver) Resolve(ctx context.Context, agentID string) (*domain.ResolvedAgent, error) {
	cfg, err := r.repo.GetAgentConfig(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("get agent config %q: %w", agentID, err)
	}
	if cfg != nil {
		return domain.ResolvedFromConfig(cfg, domain.SourceExact), nil
	}

	if agentID != domain.DemoAgentID {
		demo, err := r.repo.GetAgentConfig(ctx, domain.DemoAgentID)
		if err != nil {
			return nil, fmt.Errorf("get demo agent config: %w", err)
		}
		if demo != nil {
			return domain.ResolvedFromConfig(demo, domain.SourceDemo), nil
		}
	}

	id, convErr := strconv.ParseInt(agentID, 10, 64)
	if convErr == nil {
		p, err := r.repo.GetLegacyPersona(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get legacy persona %d: %w", id, err)
		}
		if p != nil {
			return domain.ResolvedFromLegacy(p), nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
}
