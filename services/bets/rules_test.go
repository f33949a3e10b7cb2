package bets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Lookup(t *testing.T) {
	reg := DefaultRegistry()

	t.Run("KnownModality", func(t *testing.T) {
		rule, ok := reg.Lookup("megasena")
		require.True(t, ok)
		assert.Equal(t, 6, rule.MinNumbers)
		assert.Equal(t, 15, rule.MaxNumbers)
		assert.Equal(t, 60, rule.Pool)
		assert.Equal(t, []int{2, 3, 4, 6, 8, 9, 12}, rule.Multipliers)
		assert.Equal(t, 4, rule.MinPrizeMatches)
	})

	t.Run("NormalizedVariants", func(t *testing.T) {
		for _, id := range []string{"Mega-Sena", "MEGA_SENA", " mega sena ", "megasena"} {
			rule, ok := reg.Lookup(id)
			assert.True(t, ok, id)
			assert.Equal(t, "megasena", rule.ModalityID, id)
		}
		rule, ok := reg.Lookup("+Milionária")
		require.True(t, ok)
		assert.Equal(t, "maismilionaria", rule.ModalityID)
		require.NotNil(t, rule.Clovers)
		assert.Equal(t, 6, rule.Clovers.Pool)

		rule, ok = reg.Lookup("Lotofácil")
		require.True(t, ok)
		assert.Equal(t, 25, rule.Pool)
	})

	t.Run("UnknownFallsBackToDefault", func(t *testing.T) {
		rule, ok := reg.Lookup("super-sete")
		assert.False(t, ok, "fallback must be visible to callers")
		assert.Equal(t, "supersete", rule.ModalityID)
		assert.Equal(t, DefaultMinNumbers, rule.MinNumbers)
		assert.Equal(t, DefaultMaxNumbers, rule.MaxNumbers)
		assert.Equal(t, DefaultPool, rule.Pool)
		assert.Equal(t, []int{2, 3, 4, 6, 8, 9, 12, 18, 24}, rule.Multipliers)
		assert.Equal(t, DefaultMinPrizeMatches, rule.MinPrizeMatches)
	})
}

func TestNormalizeModalityID(t *testing.T) {
	cases := map[string]string{
		"Mega-Sena":    "megasena",
		"Dia de Sorte": "diadesorte",
		"DUPLA_SENA":   "duplasena",
		"+Milionária":  "maismilionaria",
		"Lotofácil":    "lotofacil",
		"":             "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeModalityID(in), in)
	}
}

func TestRegistry_Rules(t *testing.T) {
	rules := DefaultRegistry().Rules()
	require.Len(t, rules, len(BuiltinRules))
	for i := 1; i < len(rules); i++ {
		assert.Less(t, rules[i-1].ModalityID, rules[i].ModalityID)
	}
}

func TestNewRegistry_RejectsBrokenRules(t *testing.T) {
	tests := []struct {
		name string
		rule GameRule
	}{
		{"EmptyID", GameRule{MinNumbers: 1, MaxNumbers: 2, Pool: 5}},
		{"MaxBelowMin", GameRule{ModalityID: "x", MinNumbers: 5, MaxNumbers: 2, Pool: 10}},
		{"PoolTooSmall", GameRule{ModalityID: "x", MinNumbers: 1, MaxNumbers: 10, Pool: 5}},
		{"BadMultiplier", GameRule{ModalityID: "x", MinNumbers: 1, MaxNumbers: 2, Pool: 5, Multipliers: []int{0}}},
		{"BadClovers", GameRule{ModalityID: "x", MinNumbers: 1, MaxNumbers: 2, Pool: 5, Clovers: &CloverRule{Min: 3, Max: 2, Pool: 6}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry([]GameRule{tt.rule})
			assert.Error(t, err)
		})
	}
}

func TestParseRules(t *testing.T) {
	doc := `
rules:
  - id: Mega-Sena
    name: Mega-Sena
    min_numbers: 6
    max_numbers: 20
    pool: 60
    multipliers: [4, 2]
    min_prize_matches: 4
  - id: maismilionaria
    name: +Milionária
    min_numbers: 6
    max_numbers: 12
    pool: 50
    multipliers: [2]
    min_prize_matches: 2
    clovers:
      min: 2
      max: 6
      pool: 6
`
	rules, err := ParseRules(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, rules, 2)

	reg, err := NewRegistry(rules)
	require.NoError(t, err)

	rule, ok := reg.Lookup("megasena")
	require.True(t, ok)
	assert.Equal(t, 20, rule.MaxNumbers)
	assert.Equal(t, []int{2, 4}, rule.Multipliers, "multipliers are kept sorted")

	rule, ok = reg.Lookup("maismilionaria")
	require.True(t, ok)
	require.NotNil(t, rule.Clovers)
	assert.Equal(t, 2, rule.Clovers.Min)

	_, err = ParseRules(strings.NewReader("rules: []"))
	assert.Error(t, err)
	_, err = ParseRules(strings.NewReader("rules: ["))
	assert.Error(t, err)
}
