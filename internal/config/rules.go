package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/R3E-Network/lotterybets/pkg/logger"
	"github.com/R3E-Network/lotterybets/services/bets"
)

// DefaultRulesPath is where the rule table is looked up when no path is configured.
var DefaultRulesPath = filepath.Join("config", "rules.yaml")

// LoadRulesFromPath loads and validates a rule table from a YAML file.
func LoadRulesFromPath(path string) (*bets.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules config: %w", err)
	}

	rules, err := bets.ParseRules(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse rules config: %w", err)
	}

	registry, err := bets.NewRegistry(rules)
	if err != nil {
		return nil, fmt.Errorf("invalid rules config: %w", err)
	}
	return registry, nil
}

// LoadRulesOrDefault loads the rule table at path (DefaultRulesPath when empty) or falls
// back to the built-in table if the file is missing or invalid.
func LoadRulesOrDefault(path string, log *logger.Logger) *bets.Registry {
	if path == "" {
		path = DefaultRulesPath
	}
	registry, err := LoadRulesFromPath(path)
	if err != nil {
		if log != nil {
			log.WithError(err).WithField("path", path).Warn("using built-in rule table")
		}
		return bets.DefaultRegistry()
	}
	return registry
}
