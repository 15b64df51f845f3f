package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/personachat/internal/domain"
	"github.com/ashureev/personachat/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB

	appendRetries   int
	appendBaseDelay time.Duration
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{
		db:              db,
		appendRetries:   3,
		appendBaseDelay: 50 * time.Millisecond,
	}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS personas (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		tone TEXT,
		constraints TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agent_configurations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		agent_id TEXT UNIQUE NOT NULL,
		persona_title TEXT,
		tone TEXT,
		rules TEXT,
		prohibited_topics TEXT,
		initial_context TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		role TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_history_pair ON chat_history(session_id, agent_id, id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetAgentConfig retrieves an agent configuration by its agent ID.
func (s *SQLiteStore) GetAgentConfig(ctx context.Context, agentID string) (*domain.AgentConfig, error) {
	query := `
		SELECT agent_id, persona_title, tone, rules, prohibited_topics,
		       initial_context, created_at, updated_at
		FROM agent_configurations WHERE agent_id = ?`

	row := s.db.QueryRowContext(ctx, query, agentID)

	var cfg domain.AgentConfig
	var title, tone, rules, topics, initCtx sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(&cfg.AgentID, &title, &tone, &rules, &topics, &initCtx, &createdAt, &updatedAt)
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
	cfg.CreatedAt = time.Unix(createdAt, 0)
	cfg.UpdatedAt = time.Unix(updatedAt, 0)

	return &cfg, nil
}

// UpsertAgentConfig creates or replaces an agent configuration.
func (s *SQLiteStore) UpsertAgentConfig(ctx context.Context, cfg *domain.AgentConfig) error {
	query := `
	INSERT INTO agent_configurations
		(agent_id, persona_title, tone, rules, prohibited_topics, initial_context, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(agent_id) DO UPDATE SET
		persona_title = excluded.persona_title,
		tone = excluded.tone,
		rules = excluded.rules,
		prohibited_topics = excluded.prohibited_topics,
		initial_context = excluded.initial_context,
		updated_at = excluded.updated_at`

	args, err := agentConfigArgs(cfg)
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	args = append(args, now, now)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert agent config: %w", err)
	}
	return nil
}

// SeedAgentConfig inserts cfg unless a row with the same agent ID already exists.
func (s *SQLiteStore) SeedAgentConfig(ctx context.Context, cfg *domain.AgentConfig) (bool, error) {
	query := `
	INSERT OR IGNORE INTO agent_configurations
		(agent_id, persona_title, tone, rules, prohibited_topics, initial_context, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	args, err := agentConfigArgs(cfg)
	if err != nil {
		return false, err
	}
	now := time.Now().Unix()
	args = append(args, now, now)

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
func (s *SQLiteStore) ListAgentConfigs(ctx context.Context) ([]domain.AgentSummary, error) {
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
		var createdAt int64
		if err := rows.Scan(&a.AgentID, &title, &createdAt); err != nil {
			return nil, fmt.Errorf("scan agent summary row: %w", err)
		}
		a.PersonaTitle = title.String
		a.CreatedAt = time.Unix(createdAt, 0)
		agents = append(agents, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agent configs: %w", err)
	}
	return agents, nil
}

// GetLegacyPersona retrieves a pre-migration persona by numeric ID.
func (s *SQLiteStore) GetLegacyPersona(ctx context.Context, id int64) (*domain.LegacyPersona, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, tone, constraints, created_at FROM personas WHERE id = ?`, id)

	var p domain.LegacyPersona
	var tone, constraints sql.NullString
	var createdAt int64
	err := row.Scan(&p.ID, &p.Name, &tone, &constraints, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan persona row: %w", err)
	}
	p.Tone = tone.String
	p.Constraints = constraints.String
	p.CreatedAt = time.Unix(createdAt, 0)
	return &p, nil
}

// CreateLegacyPersona inserts a legacy persona and returns its ID.
func (s *SQLiteStore) CreateLegacyPersona(ctx context.Context, p *domain.LegacyPersona) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO personas (name, tone, constraints, created_at) VALUES (?, ?, ?, ?)`,
		p.Name, p.Tone, p.Constraints, time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert persona: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get persona id: %w", err)
	}
	return id, nil
}

// AppendTurn inserts a single chat turn.
// Retries with exponential backoff on SQLITE_BUSY / locked errors.
func (s *SQLiteStore) AppendTurn(ctx context.Context, turn *domain.Turn) error {
	attempt := 0
	err := shared.RetryConflicts(ctx, s.appendRetries, s.appendBaseDelay, func() error {
		attempt++
		if attempt > 1 {
			slog.Debug("AppendTurn retrying after SQLite conflict",
				"session_id", turn.SessionID,
				"attempt", attempt)
		}
		return s.appendTurnOnce(ctx, turn)
	})
	if err != nil {
		return fmt.Errorf("append turn for session %s: %w", turn.SessionID, err)
	}
	return nil
}

func (s *SQLiteStore) appendTurnOnce(ctx context.Context, turn *domain.Turn) error {
	ts := turn.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_history (session_id, agent_id, role, message, created_at) VALUES (?, ?, ?, ?, ?)`,
		turn.SessionID, turn.AgentID, string(turn.Role), turn.Message, ts.UnixNano(),
	)
	return err
}

// ListTurns returns the most recent turns for a session/agent pair, oldest first.
func (s *SQLiteStore) ListTurns(ctx context.Context, sessionID, agentID string, limit int) ([]domain.Turn, error) {
	query := `
		SELECT id, session_id, agent_id, role, message, created_at FROM (
			SELECT id, session_id, agent_id, role, message, created_at
			FROM chat_history
			WHERE session_id = ? AND agent_id = ?
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id ASC`

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
		var createdAt int64
		if err := rows.Scan(&t.ID, &t.SessionID, &t.AgentID, &role, &t.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		t.Role = domain.Role(role)
		t.Timestamp = time.Unix(0, createdAt)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return turns, nil
}

// agentConfigArgs returns the column values shared by insert statements,
// in (agent_id, persona_title, tone, rules, prohibited_topics, initial_context) order.
func agentConfigArgs(cfg *domain.AgentConfig) ([]any, error) {
	rules, err := encodeList(cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("encode rules: %w", err)
	}
	topics, err := encodeList(cfg.ProhibitedTopics)
	if err != nil {
		return nil, fmt.Errorf("encode prohibited topics: %w", err)
	}
	initCtx, err := encodeContext(cfg.InitialContext)
	if err != nil {
		return nil, fmt.Errorf("encode initial context: %w", err)
	}
	return []any{cfg.AgentID, cfg.PersonaTitle, cfg.Tone, rules, topics, initCtx}, nil
}
