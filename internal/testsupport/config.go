package testsupport

import (
	"path/filepath"
	"testing"

	"scout/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.InputDir = filepath.Join(base, "incoming")
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.DictionaryPath = filepath.Join(base, "brands.yaml")
	cfg.Server.Bind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithDictionaryPath overrides the dictionary location on the test config.
func WithDictionaryPath(path string) ConfigOption {
	return func(c *config.Config) {
		c.Paths.DictionaryPath = path
	}
}

// WithInputDir overrides the bronze input directory on the test config.
func WithInputDir(dir string) ConfigOption {
	return func(c *config.Config) {
		c.Paths.InputDir = dir
	}
}
