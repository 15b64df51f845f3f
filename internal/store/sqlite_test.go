package store

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/ashureev/personachat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "data", "personas.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSQLiteAgentConfigRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestSQLite(t)

	got, err := repo.GetAgentConfig(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	cfg := &domain.AgentConfig{
		AgentID:          "agent_8823_xyz",
		PersonaTitle:     "Satış Danışmanı",
		Tone:             "Resmi",
		Rules:            []string{"Kibar ol", "Kısa cevap ver"},
		ProhibitedTopics: []string{"politika", "din"},
		InitialContext:   map[string]string{"company_slogan": "Hızlı ve güvenilir"},
	}
	require.NoError(t, repo.UpsertAgentConfig(ctx, cfg))

	got, err = repo.GetAgentConfig(ctx, "agent_8823_xyz")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, cfg.PersonaTitle, got.PersonaTitle)
	assert.Equal(t, cfg.Rules, got.Rules)
	assert.Equal(t, cfg.ProhibitedTopics, got.ProhibitedTopics)
	assert.Equal(t, cfg.InitialContext, got.InitialContext)

	cfg.Tone = "Samimi"
	require.NoError(t, repo.UpsertAgentConfig(ctx, cfg))
	got, err = repo.GetAgentConfig(ctx, "agent_8823_xyz")
	require.NoError(t, err)
	assert.Equal(t, "Samimi", got.Tone)

	agents, err := repo.ListAgentConfigs(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "agent_8823_xyz", agents[0].AgentID)
}

func TestSQLiteSeedDoesNotOverwrite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestSQLite(t)

	require.NoError(t, Seed(ctx, repo, nil, nil))

	demo, err := repo.GetAgentConfig(ctx, domain.DemoAgentID)
	require.NoError(t, err)
	require.NotNil(t, demo)
	assert.Equal(t, "Demo Müşteri Temsilcisi", demo.PersonaTitle)

	custom := DemoAgent()
	custom.PersonaTitle = "Özel Demo"
	require.NoError(t, repo.UpsertAgentConfig(ctx, custom))

	inserted, err := repo.SeedAgentConfig(ctx, DemoAgent())
	require.NoError(t, err)
	assert.False(t, inserted)

	demo, err = repo.GetAgentConfig(ctx, domain.DemoAgentID)
	require.NoError(t, err)
	assert.Equal(t, "Özel Demo", demo.PersonaTitle)
}

func TestSQLiteLegacyPersona(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestSQLite(t)

	id, err := repo.CreateLegacyPersona(ctx, &domain.LegacyPersona{
		Name:        "Eski Asistan",
		Tone:        "Nazik",
		Constraints: "Fiyat verme",
	})
	require.NoError(t, err)
	assert.Positive(t, id)

	p, err := repo.GetLegacyPersona(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Eski Asistan", p.Name)
	assert.Equal(t, "Fiyat verme", p.Constraints)

	p, err = repo.GetLegacyPersona(ctx, id+100)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestSQLiteListTurnsReturnsMostRecentOldestFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestSQLite(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.AppendTurn(ctx, &domain.Turn{
			SessionID: "s1",
			AgentID:   "a1",
			Role:      domain.RoleUser,
			Message:   "m" + strconv.Itoa(i),
		}))
	}
	require.NoError(t, repo.AppendTurn(ctx, &domain.Turn{
		SessionID: "s2", AgentID: "a1", Role: domain.RoleUser, Message: "other session",
	}))

	turns, err := repo.ListTurns(ctx, "s1", "a1", 3)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "m2", turns[0].Message)
	assert.Equal(t, "m3", turns[1].Message)
	assert.Equal(t, "m4", turns[2].Message)

	turns, err = repo.ListTurns(ctx, "s1", "a1", 1000)
	require.NoError(t, err)
	assert.Len(t, turns, 5)

	turns, err = repo.ListTurns(ctx, "nobody", "a1", 1000)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	t.Parallel()
	_, err := Open("mongo", "whatever")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}
