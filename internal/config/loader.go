package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${NAME} and ${NAME:-fallback}. A fallback may
// contain any character except an unescaped closing brace.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Load reads the YAML file at path, substitutes environment variables,
// and decodes the result. Structural checks on the decoded values are
// Validate's job; Load only fails on unreadable files, unresolvable
// variables, and malformed YAML.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	expanded, err := substituteEnv(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// substituteEnv rewrites every ${NAME} and ${NAME:-fallback} occurrence
// in the raw YAML. A set variable always wins over its fallback. Every
// variable that is neither set nor given a fallback is reported in one
// error, so a broken config surfaces all its gaps at once.
func substituteEnv(raw []byte) ([]byte, error) {
	var missing []string

	result := envVarPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		groups := envVarPattern.FindSubmatch(match)
		name := string(groups[1])

		if value, ok := os.LookupEnv(name); ok {
			return []byte(value)
		}
		if fallback := groups[2]; fallback != nil {
			return fallback
		}

		missing = append(missing, name)
		return match
	})

	if len(missing) > 0 {
		return nil, fmt.Errorf("unresolved variables: %s", strings.Join(missing, ", "))
	}
	return result, nil
}
