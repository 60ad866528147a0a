package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// envRef matches ${VAR} and ${VAR:-default} references. Defaults may not
// contain "}".
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// Load reads a YAML configuration file, expands environment references,
// parses it into a Config, and applies defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	expanded, err := expand(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.Defaults()
	return &cfg, nil
}

// expand substitutes every ${VAR} and ${VAR:-default} reference in raw.
// A reference with neither an environment value nor a default is an error;
// all such names are reported at once.
func expand(raw []byte) ([]byte, error) {
	var missing []string

	out := envRef.ReplaceAllFunc(raw, func(ref []byte) []byte {
		groups := envRef.FindSubmatch(ref)
		if value, ok := os.LookupEnv(string(groups[1])); ok {
			return []byte(value)
		}
		if groups[2] != nil {
			return groups[2]
		}
		missing = append(missing, string(groups[1]))
		return ref
	})

	if len(missing) > 0 {
		return nil, fmt.Errorf("unset variables without defaults: %s", strings.Join(missing, ", "))
	}
	return out, nil
}
