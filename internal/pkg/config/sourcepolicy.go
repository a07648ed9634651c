package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SourcePolicy is a static, operator-maintained list of sources to seed
// into the coordination store at crawl-host startup: known sources the
// catalog API hasn't reported yet, and rate overrides that should be in
// effect before the regulator's first override-check tick.
type SourcePolicy struct {
	Sources []SourceOverride `yaml:"sources"`
}

// SourceOverride is one entry of a SourcePolicy.
type SourceOverride struct {
	Name        string   `yaml:"name"`
	OverrideRPS *float64 `yaml:"override_rps"`
	SeedAsKnown bool     `yaml:"seed_as_known"`
}

// LoadSourcePolicy loads a source policy from a YAML file. path is expected
// to come from a trusted source (an operator-supplied flag or env var), not
// user input.
func LoadSourcePolicy(path string) (*SourcePolicy, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is operator-supplied, not user input
	if err != nil {
		return nil, fmt.Errorf("read source policy file: %w", err)
	}

	var policy SourcePolicy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("parse source policy file: %w", err)
	}

	if err := validateSourcePolicy(&policy); err != nil {
		return nil, fmt.Errorf("source policy validation failed: %w", err)
	}

	return &policy, nil
}

func validateSourcePolicy(policy *SourcePolicy) error {
	seen := make(map[string]struct{}, len(policy.Sources))
	for _, entry := range policy.Sources {
		if entry.Name == "" {
			return fmt.Errorf("source entry missing name")
		}
		if _, dup := seen[entry.Name]; dup {
			return fmt.Errorf("source %q listed more than once", entry.Name)
		}
		seen[entry.Name] = struct{}{}

		if entry.OverrideRPS != nil && *entry.OverrideRPS <= 0 {
			return fmt.Errorf("source %q: override_rps must be positive", entry.Name)
		}
	}
	return nil
}
