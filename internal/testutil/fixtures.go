package testutil

import (
	"embed"
	"os"
	"path/filepath"
	"testing"

	"github.com/BHPAV/dev-container-launcher/internal/config"
)

//go:embed fixtures/*
var fixturesFS embed.FS

// LoadFixture loads a fixture file by name.
func LoadFixture(name string) ([]byte, error) {
	return fixturesFS.ReadFile("fixtures/" + name)
}

// WriteFixture copies a fixture to dir and returns its path.
func WriteFixture(t *testing.T, name, dir string) string {
	t.Helper()
	data, err := LoadFixture(name)
	if err != nil {
		t.Fatalf("Failed to load fixture %s: %v", name, err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatalf("Failed to create %s: %v", dir, err)
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("Failed to write fixture %s: %v", name, err)
	}
	return path
}

// LoadConfigFixture merges a TOML fixture over the defaults for home.
func LoadConfigFixture(t *testing.T, name, home string) (*config.Config, error) {
	t.Helper()
	path := WriteFixture(t, name, t.TempDir())
	cfg := config.Default(home)
	if err := cfg.LoadFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MixedSSHConfig returns an ssh config with a wildcard block, forwards,
// a Match block and a devctl entry for "demo".
func MixedSSHConfig() string {
	data, _ := LoadFixture("ssh_config")
	return string(data)
}
