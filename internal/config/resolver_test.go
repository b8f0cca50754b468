package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestResolve_Sorted(t *testing.T) {
	t.Parallel()

	cfg := &Config{Modules: map[string]yaml.Node{
		"gateway.http":    {},
		"channel.discord": {},
	}}
	got := Resolve(cfg)
	if !slices.Equal(got, []string{"channel.discord", "gateway.http"}) {
		t.Errorf("Resolve = %v", got)
	}
}

func TestFindPath_Explicit(t *testing.T) {
	t.Parallel()

	got, err := FindPath("/etc/cronclaw.yaml")
	if err != nil || got != "/etc/cronclaw.yaml" {
		t.Errorf("FindPath = %q, %v", got, err)
	}
}

func TestFindPath_XDGConfigHome(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, AppName, AppName+".yaml")
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfgPath, []byte(`version: "1"`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("XDG_CONFIG_HOME", dir)

	got, err := FindPath("")
	if err != nil {
		t.Fatalf("FindPath: %v", err)
	}
	if got != cfgPath {
		t.Errorf("got %q, want %q", got, cfgPath)
	}
}

func TestFindPath_NotFound(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/nonexistent/path")
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	if _, err := FindPath(""); err == nil {
		t.Error("expected error when no config file found")
	}
}

func TestDefaultDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got := DefaultDir(); got != filepath.Join("/custom/config", AppName) {
		t.Errorf("DefaultDir = %q", got)
	}
}
