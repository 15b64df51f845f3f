package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTopics(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", []string{}},
		{"json", `["a","b"]`, []string{"a", "b"}},
		{"json null", `null`, []string{}},
		{"newline", "politika\n\n din ", []string{"politika", "din"}},
		{"comma", "politika, din,", []string{"politika", "din"}},
		{"single", "sadece bu", []string{"sadece bu"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeTopics(tt.raw))
		})
	}
}

func TestDecodeRules(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", []string{}},
		{"json", `["Kısa ol, nazik ol"]`, []string{"Kısa ol, nazik ol"}},
		{"newline", "Kibar ol\n\n Kısa ol ", []string{"Kibar ol", "Kısa ol"}},
		{"comma stays in one rule", "Kısa ol, nazik ol", []string{"Kısa ol, nazik ol"}},
		{"comma inside lines", "Kısa ol, nazik ol\nTürkçe cevap ver", []string{"Kısa ol, nazik ol", "Türkçe cevap ver"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeRules(tt.raw))
		})
	}
}

func TestDecodeContext(t *testing.T) {
	assert.Equal(t, map[string]string{}, decodeContext(""))
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, decodeContext(`{"a":"1","b":2}`))
	assert.Equal(t,
		map[string]string{"company_slogan": "Demo Şirket", "url": "http://x"},
		decodeContext("company_slogan: Demo Şirket\nurl: http://x\nnot a pair"),
	)
}

func TestLoadSeedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agents.yaml")
	content := `
agents:
  - agent_id: support
    persona_title: Destek Uzmanı
    tone: Sakin
    rules:
      - Özür dile
    prohibited_topics:
      - rakip firmalar
    initial_context:
      sla: 24 saat
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	agents, err := LoadSeedFile(path)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "support", agents[0].AgentID)
	assert.Equal(t, []string{"rakip firmalar"}, agents[0].ProhibitedTopics)
	assert.Equal(t, "24 saat", agents[0].InitialContext["sla"])

	require.NoError(t, os.WriteFile(path, []byte("agents:\n  - persona_title: x\n"), 0o600))
	_, err = LoadSeedFile(path)
	require.Error(t, err)
}
