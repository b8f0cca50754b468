package reload

import (
	"testing"

	"github.com/flemzord/cronclaw/internal/config"
	"gopkg.in/yaml.v3"
)

func mustConfig(t *testing.T, raw string) *config.Config {
	t.Helper()
	var cfg config.Config
	if err := yaml.Unmarshal([]byte(raw), &cfg); err != nil {
		t.Fatal(err)
	}
	cfg.ApplyDefaults()
	return &cfg
}
