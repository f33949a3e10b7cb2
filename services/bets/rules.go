package bets

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// DefaultRule is returned for modality ids the registry does not know.
var DefaultRule = GameRule{
	ModalityID:      "",
	Name:            "Default",
	MinNumbers:      DefaultMinNumbers,
	MaxNumbers:      DefaultMaxNumbers,
	Pool:            DefaultPool,
	Multipliers:     DefaultMultipliers,
	MinPrizeMatches: DefaultMinPrizeMatches,
}

// BuiltinRules is the canonical rule table, keyed by normalized modality id.
var BuiltinRules = []GameRule{
	{ModalityID: "megasena", Name: "Mega-Sena", MinNumbers: 6, MaxNumbers: 15, Pool: 60, Multipliers: []int{2, 3, 4, 6, 8, 9, 12}, MinPrizeMatches: 4},
	{ModalityID: "quina", Name: "Quina", MinNumbers: 5, MaxNumbers: 15, Pool: 80, Multipliers: []int{3, 6, 12, 18, 24}, MinPrizeMatches: 2},
	{ModalityID: "lotofacil", Name: "Lotofácil", MinNumbers: 15, MaxNumbers: 20, Pool: 25, Multipliers: []int{3, 6, 12, 18, 24}, MinPrizeMatches: 11},
	{ModalityID: "lotomania", Name: "Lotomania", MinNumbers: 50, MaxNumbers: 50, Pool: 100, Multipliers: []int{2, 4, 8}, MinPrizeMatches: 15},
	{ModalityID: "diadesorte", Name: "Dia de Sorte", MinNumbers: 7, MaxNumbers: 15, Pool: 31, Multipliers: []int{3, 6, 9, 12}, MinPrizeMatches: 4},
	{ModalityID: "maismilionaria", Name: "+Milionária", MinNumbers: 6, MaxNumbers: 12, Pool: 50, Multipliers: []int{2, 4, 8}, MinPrizeMatches: 2,
		Clovers: &CloverRule{Min: 2, Max: 6, Pool: 6}},
	{ModalityID: "timemania", Name: "Timemania", MinNumbers: 10, MaxNumbers: 10, Pool: 80, Multipliers: []int{2, 4, 8}, MinPrizeMatches: 3},
	{ModalityID: "duplasena", Name: "Dupla Sena", MinNumbers: 6, MaxNumbers: 15, Pool: 50, Multipliers: []int{2, 4, 8}, MinPrizeMatches: 3},
}

// Registry resolves modality ids to game rules. It is immutable once built.
type Registry struct {
	rules    map[string]GameRule
	fallback GameRule
}

// NewRegistry builds a registry from rules. Ids are normalized; later entries win.
func NewRegistry(rules []GameRule) (*Registry, error) {
	r := &Registry{rules: make(map[string]GameRule, len(rules)), fallback: DefaultRule}
	for _, rule := range rules {
		id := NormalizeModalityID(rule.ModalityID)
		if id == "" {
			return nil, fmt.Errorf("rule %q: empty modality id", rule.Name)
		}
		if err := checkRule(rule); err != nil {
			return nil, fmt.Errorf("rule %s: %w", id, err)
		}
		rule.ModalityID = id
		rule.Multipliers = append([]int(nil), rule.Multipliers...)
		sort.Ints(rule.Multipliers)
		r.rules[id] = rule
	}
	return r, nil
}

// DefaultRegistry returns a registry over BuiltinRules.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(BuiltinRules)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the rule for modalityID. When the id is unknown it returns the default
// rule with ok=false; callers must treat that as a degraded fallback.
func (r *Registry) Lookup(modalityID string) (GameRule, bool) {
	rule, ok := r.rules[NormalizeModalityID(modalityID)]
	if !ok {
		fallback := r.fallback
		fallback.ModalityID = NormalizeModalityID(modalityID)
		return fallback, false
	}
	return rule, true
}

// Rules lists all registered rules ordered by modality id.
func (r *Registry) Rules() []GameRule {
	out := make([]GameRule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModalityID < out[j].ModalityID })
	return out
}

// ParseRules decodes a YAML rule table of the form `rules: [{id: megasena, ...}]`.
func ParseRules(r io.Reader) ([]GameRule, error) {
	var doc struct {
		Rules []GameRule `yaml:"rules"`
	}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	if len(doc.Rules) == 0 {
		return nil, fmt.Errorf("decode rules: no rules defined")
	}
	return doc.Rules, nil
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeModalityID folds a modality id or display name into its canonical key:
// accents and punctuation are dropped, letters lower-cased and "+" spelled "mais".
// "Mega-Sena", "MEGA_SENA" and "megasena" all become "megasena".
func NormalizeModalityID(raw string) string {
	s, _, err := transform.String(stripMarks, strings.TrimSpace(raw))
	if err != nil {
		s = raw
	}
	s = strings.ReplaceAll(s, "+", "mais")

	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func checkRule(rule GameRule) error {
	if rule.MinNumbers < 1 || rule.MaxNumbers < rule.MinNumbers {
		return fmt.Errorf("invalid number bounds [%d,%d]", rule.MinNumbers, rule.MaxNumbers)
	}
	if rule.Pool < rule.MaxNumbers {
		return fmt.Errorf("pool %d smaller than max numbers %d", rule.Pool, rule.MaxNumbers)
	}
	for _, m := range rule.Multipliers {
		if m < 1 {
			return fmt.Errorf("invalid multiplier %d", m)
		}
	}
	if c := rule.Clovers; c != nil && (c.Min < 1 || c.Max < c.Min || c.Pool < c.Max) {
		return fmt.Errorf("invalid clover bounds [%d,%d] pool %d", c.Min, c.Max, c.Pool)
	}
	return nil
}
