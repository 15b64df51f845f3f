// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"fmt"

	"github.com/ashureev/personachat/internal/domain"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Repository defines the interface for persisting agent configurations and chat turns.
// Lookups that find nothing return (nil, nil).
type Repository interface {
	// GetAgentConfig retrieves an agent configuration by its agent ID.
	GetAgentConfig(ctx context.Context, agentID string) (*domain.AgentConfig, error)

	// UpsertAgentConfig creates or replaces an agent configuration keyed by agent ID.
	UpsertAgentConfig(ctx context.Context, cfg *domain.AgentConfig) error

	// SeedAgentConfig inserts cfg only when no row with the same agent ID exists.
	// It reports whether a row was inserted.
	SeedAgentConfig(ctx context.Context, cfg *domain.AgentConfig) (bool, error)

	// ListAgentConfigs returns a summary of every stored agent configuration.
	ListAgentConfigs(ctx context.Context) ([]domain.AgentSummary, error)

	// GetLegacyPersona retrieves a pre-migration persona by numeric ID.
	GetLegacyPersona(ctx context.Context, id int64) (*domain.LegacyPersona, error)

	// CreateLegacyPersona inserts a legacy persona and returns its ID.
	CreateLegacyPersona(ctx context.Context, p *domain.LegacyPersona) (int64, error)

	// AppendTurn inserts a single chat turn.
	AppendTurn(ctx context.Context, turn *domain.Turn) error

	// ListTurns returns at most limit of the most recent turns for the
	// session/agent pair, ordered oldest to newest.
	ListTurns(ctx context.Context, sessionID, agentID string, limit int) ([]domain.Turn, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// Open returns the Repository implementation selected by driver.
// For sqlite, dsn is a file path; for postgres it is a connection URL.
func Open(driver, dsn string) (Repository, error) {
	switch driver {
	case DriverSQLite, "":
		return NewSQLite(dsn)
	case DriverPostgres:
		return NewPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
