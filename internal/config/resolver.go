package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// Resolve returns a sorted list of module IDs from the configuration.
// The deterministic order ensures consistent module loading.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// FindPath returns explicit when set, otherwise the first existing file in
// the standard locations: $XDG_CONFIG_HOME/cronclaw/cronclaw.yaml,
// ~/.config/cronclaw/cronclaw.yaml, ./cronclaw.yaml.
func FindPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	file := AppName + ".yaml"
	var candidates []string
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, AppName, file))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", AppName, file))
	}
	candidates = append(candidates, file)

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("config: no configuration file found (searched: %v)", candidates)
}
