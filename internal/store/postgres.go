package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/personachat/internal/domain"
	_ "github.com/lib/pq"
)

// PostgresStore implements Repository using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres opens a PostgreSQL-backed repository and ensures the schema exists.
func NewPostgres(databaseURL string) (Repository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := newPostgresWithDB(db)
	if err := store.initSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func newPostgresWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS personas (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			tone TEXT,
			constraints TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS agent_configurations (
			id SERIAL PRIMARY KEY,
			agent_id VARCHAR(255) UNIQUE NOT NULL,
			persona_title TEXT,
			tone TEXT,
			rules TEXT,
			prohibited_topics TEXT,
			initial_context TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS chat_history (
			id BIGSERIAL PRIMARY KEY,
			session_id VARCHAR(255) NOT NULL,
			agent_id VARCHAR(255) NOT NULL,
			role TEXT NOT NULL,
			message TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_history_pair ON chat_history(session_id, agent_id, id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetAgentConfig retrieves an agent configuration by its agent ID.
func (s *PostgresStore) GetAgentConfig(ctx context.Context, agentID string) (*domain.AgentConfig, error) {
	query := `
		SELECT agent_id, persona_title, tone, rules, prohibited_topics,
		       initial_context, created_at, updated_at
		FROM agent_configurations WHERE agent_id = $1`

	var cfg domain.AgentConfig
	var title, tone, rules, topics, initCtx sql.NullString

	err := s.db.QueryRowContext(ctx, query, agentID).Scan(
		&cfg.AgentID, &title, &tone, &rules, &topics, &initCtx, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan agent config row: %w", err)
	}

	cfg.PersonaTitle = title.String
	cfg.Tone = tone.String
	cfg.Rules = decodeRules(rules.String)
	cfg.ProhibitedTopics = decodeTopics(topics.String)
	cfg.InitialContext = decodeContext(initCtx.String)
	return &cfg, nil
}

// UpsertAgentConfig creates or replaces an agent configuration.
func (s *PostgresStore) UpsertAgentConfig(ctx context.Context, cfg *domain.AgentConfig) error {
	query := `
	INSERT INTO agent_configurations
		(agent_id, persona_title, tone, rules, prohibited_topics, initial_context, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	ON CONFLICT (agent_id) DO UPDATE SET
		persona_title = EXCLUDED.persona_title,
		tone = EXCLUDED.tone,
		rules = EXCLUDED.rules,
		prohibited_topics = EXCLUDED.prohibited_topics,
		initial_context = EXCLUDED.initial_context,
		updated_at = NOW()`

	args, err := agentConfigArgs(cfg)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert agent config: %w", err)
	}
	return nil
}

// SeedAgentConfig inserts cfg unless a row with the same agent ID already exists.
func (s *PostgresStore) SeedAgentConfig(ctx context.Context, cfg *domain.AgentConfig) (bool, error) {
	query := `
	INSERT INTO agent_configurations
		(agent_id, persona_title, tone, rules, prohibited_topics, initial_context, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	ON CONFLICT (agent_id) DO NOTHING`

	args, err := agentConfigArgs(cfg)
	if err != nil {
		return false, err
	}
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("seed agent config: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rows > 0, nil
}

// ListAgentConfigs returns a summary of every stored agent configuration.
func (s *PostgresStore) ListAgentConfigs(ctx context.Context) ([]domain.AgentSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT agent_id, persona_title, created_at FROM agent_configurations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query agent configs: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close agent config rows", "error", closeErr)
		}
	}()

	agents := []domain.AgentSummary{}
	for rows.Next() {
		var a domain.AgentSummary
		var title sql.NullString
		if err := rows.Scan(&a.AgentID, &title, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan agent summary row: %w", err)
		}
		a.PersonaTitle = title.String
		agents = append(agents, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agent configs: %w", err)
	}
	return agents, nil
}

// GetLegacyPersona retrieves a pre-migration persona by numeric ID.
func (s *PostgresStore) GetLegacyPersona(ctx context.Context, id int64) (*domain.LegacyPersona, error) {
	var p domain.LegacyPersona
	var tone, constraints sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, tone, constraints, created_at FROM personas WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &tone, &constraints, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan persona row: %w", err)
	}
	p.Tone = tone.String
	p.Constraints = constraints.String
	return &p, nil
}

// CreateLegacyPersona inserts a legacy persona and returns its ID.
func (s *PostgresStore) CreateLegacyPersona(ctx context.Context, p *domain.LegacyPersona) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO personas (name, tone, constraints, created_at) VALUES ($1, $2, $3, NOW()) RETURNING id`,
		p.Name, p.Tone, p.Constraints,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert persona: %w", err)
	}
	return id, nil
}

// AppendTurn inserts a single chat turn.
func (s *PostgresStore) AppendTurn(ctx context.Context, turn *domain.Turn) error {
	ts := turn.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_history (session_id, agent_id, role, message, created_at) VALUES ($1, $2, $3, $4, $5)`,
		turn.SessionID, turn.AgentID, string(turn.Role), turn.Message, ts,
	)
	if err != nil {
		return fmt.Errorf("append turn for session %s: %w", turn.SessionID, err)
	}
	return nil
}

// ListTurns returns the most recent turns for a session/agent pair, oldest first.
func (s *PostgresStore) ListTurns(ctx context.Context, sessionID, agentID string, limit int) ([]domain.Turn, error) {
	query := `
		SELECT id, session_id, agent_id, role, message, created_at FROM (
			SELECT id, session_id, agent_id, role, message, created_at
			FROM chat_history
			WHERE session_id = $1 AND agent_id = $2
			ORDER BY id DESC
			LIMIT $3
		) recent ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, sessionID, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close turn rows", "error", closeErr)
		}
	}()

	turns := []domain.Turn{}
	for rows.Next() {
		var t domain.Turn
		var role string
		if err := rows.Scan(&t.ID, &t.SessionID, &t.AgentID, &role, &t.Message, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		t.Role = domain.Role(role)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return turns, nil
}
