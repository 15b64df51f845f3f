package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/ashureev/personachat/internal/domain"
	"github.com/ashureev/personachat/internal/llm"
)

type fakeRepo struct {
	mu        sync.Mutex
	configs   map[string]*domain.AgentConfig
	personas  map[int64]*domain.LegacyPersona
	turns     []domain.Turn
	getErr    error
	appendErr error
	getCalls  int
	appends   int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		configs:  map[string]*domain.AgentConfig{},
		personas: map[int64]*domain.LegacyPersona{},
	}
}

func (f *fakeRepo) GetAgentConfig(_ context.Context, agentID string) (*domain.AgentConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	cfg, ok := f.configs[agentID]
	if !ok {
		return nil, nil
	}
	c := *cfg
	return &c, nil
}

func (f *fakeRepo) UpsertAgentConfig(_ context.Context, cfg *domain.AgentConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *cfg
	f.configs[cfg.AgentID] = &c
	return nil
}

func (f *fakeRepo) SeedAgentConfig(ctx context.Context, cfg *domain.AgentConfig) (bool, error) {
	f.mu.Lock()
	_, exists := f.configs[cfg.AgentID]
	f.mu.Unlock()
	if exists {
		return false, nil
	}
	return true, f.UpsertAgentConfig(ctx, cfg)
}

func (f *fakeRepo) ListAgentConfigs(context.Context) ([]domain.AgentSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.AgentSummary{}
	for _, c := range f.configs {
		out = append(out, domain.AgentSummary{AgentID: c.AgentID, PersonaTitle: c.PersonaTitle})
	}
	return out, nil
}

func (f *fakeRepo) GetLegacyPersona(_ context.Context, id int64) (*domain.LegacyPersona, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.personas[id]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (f *fakeRepo) CreateLegacyPersona(_ context.Context, p *domain.LegacyPersona) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := int64(len(f.personas) + 1)
	c := *p
	c.ID = id
	f.personas[id] = &c
	return id, nil
}

func (f *fakeRepo) AppendTurn(_ context.Context, turn *domain.Turn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appends++
	if f.appendErr != nil {
		return f.appendErr
	}
	t := *turn
	t.ID = int64(len(f.turns) + 1)
	f.turns = append(f.turns, t)
	return nil
}

func (f *fakeRepo) ListTurns(_ context.Context, sessionID, agentID string, limit int) ([]domain.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Turn
	for _, t := range f.turns {
		if t.SessionID == sessionID && t.AgentID == agentID {
			out = append(out, t)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeRepo) Ping(context.Context) error { return nil }
func (f *fakeRepo) Close() error                { return nil }

func (f *fakeRepo) storedTurns() []domain.Turn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Turn(nil), f.turns...)
}

type fakeProvider struct {
	mu         sync.Mutex
	answer     string
	usage      int
	err        error
	countErr   error
	perCount   int
	prompts    []string
	countCalls int
}

func (p *fakeProvider) Generate(_ context.Context, prompt string) (llm.Generation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, prompt)
	if p.err != nil {
		return llm.Generation{}, p.err
	}
	return llm.Generation{Text: p.answer, TotalTokens: p.usage, HasUsage: p.usage > 0}, nil
}

func (p *fakeProvider) CountTokens(context.Context, string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.countCalls++
	if p.countErr != nil {
		return 0, p.countErr
	}
	return p.perCount, nil
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.prompts)
}

func (p *fakeProvider) lastPrompt() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.prompts) == 0 {
		return ""
	}
	return p.prompts[len(p.prompts)-1]
}

var errBoom = errors.New("boom")

func demoConfig() *domain.AgentConfig {
	return &domain.AgentConfig{
		AgentID:        domain.DemoAgentID,
		PersonaTitle:   "Demo Müşteri Temsilcisi",
		Tone:           "Samimi ve yardımsever",
		Rules:          []string{"Türkçe cevap ver", "Kısa ve öz ol"},
		InitialContext: map[string]string{"company_slogan": "Demo Şirket"},
	}
}
