package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/lotterybets/pkg/logger"
)

func TestLoadRulesFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - id: quina
    name: Quina
    min_numbers: 5
    max_numbers: 10
    pool: 80
    multipliers: [3, 6]
    min_prize_matches: 2
`), 0o600))

	registry, err := LoadRulesFromPath(path)
	require.NoError(t, err)

	rule, ok := registry.Lookup("Quina")
	require.True(t, ok)
	assert.Equal(t, 10, rule.MaxNumbers)

	_, ok = registry.Lookup("megasena")
	assert.False(t, ok, "only the file's rules are registered")
}

func TestLoadRulesFromPath_Errors(t *testing.T) {
	_, err := LoadRulesFromPath(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - id: x\n    min_numbers: 9\n    max_numbers: 2\n    pool: 10\n"), 0o600))
	_, err = LoadRulesFromPath(path)
	assert.Error(t, err)
}

func TestLoadRulesOrDefault(t *testing.T) {
	registry := LoadRulesOrDefault(filepath.Join(t.TempDir(), "missing.yaml"), logger.NewDiscard())
	rule, ok := registry.Lookup("megasena")
	require.True(t, ok)
	assert.Equal(t, 60, rule.Pool)
}

func TestShippedRulesFile(t *testing.T) {
	registry, err := LoadRulesFromPath(filepath.Join("..", "..", "config", "rules.yaml"))
	require.NoError(t, err)
	assert.Len(t, registry.Rules(), 8)
}
