package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ashureev/personachat/internal/domain"
	"gopkg.in/yaml.v3"
)

// seedFile is the on-disk shape of AGENT_SEED_FILE.
type seedFile struct {
	Agents []domain.AgentConfig `yaml:"agents"`
}

// DemoAgent returns the built-in fallback agent configuration.
func DemoAgent() *domain.AgentConfig {
	return &domain.AgentConfig{
		AgentID:          domain.DemoAgentID,
		PersonaTitle:     "Demo Müşteri Temsilcisi",
		Tone:             "Samimi ve yardımsever",
		Rules:            []string{"Türkçe cevap ver", "Kısa ve öz ol"},
		ProhibitedTopics: []string{},
		InitialContext: map[string]string{
			"company_slogan":    "Demo Şirket",
			"pricing_rationale": "Test amaçlı",
		},
	}
}

// LoadSeedFile reads agent configurations from a YAML file.
func LoadSeedFile(path string) ([]*domain.AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}

	out := make([]*domain.AgentConfig, 0, len(f.Agents))
	for i := range f.Agents {
		a := f.Agents[i]
		a.AgentID = strings.TrimSpace(a.AgentID)
		if a.AgentID == "" {
			return nil, fmt.Errorf("seed file %s: agent %d has no agent_id", path, i)
		}
		out = append(out, &a)
	}
	return out, nil
}

// Seed inserts the demo agent and any extra configurations that are missing.
// Existing rows are never overwritten.
func Seed(ctx context.Context, repo Repository, extra []*domain.AgentConfig, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	for _, cfg := range append([]*domain.AgentConfig{DemoAgent()}, extra...) {
		inserted, err := repo.SeedAgentConfig(ctx, cfg)
		if err != nil {
			return fmt.Errorf("seed agent %s: %w", cfg.AgentID, err)
		}
		if inserted {
			logger.Info("Seeded agent configuration", "agent_id", cfg.AgentID)
		}
	}
	return nil
}
