package autobib

import (
	"os"
	"path/filepath"
)

// Paths resolves the three on-disk locations autobib needs, honoring
// environment overrides before falling back to XDG defaults (spec §6).
type Paths struct {
	Database      string
	Config        string
	ResponseCache string
}

// ResolvePaths applies AUTOBIB_DATABASE_PATH, AUTOBIB_CONFIG_PATH and
// AUTOBIB_RESPONSE_CACHE_PATH, falling back to
// $XDG_DATA_HOME/autobib/records.db, $XDG_CONFIG_HOME/autobib/config.yaml
// and $XDG_DATA_HOME/autobib/response_cache.ndjson respectively.
func ResolvePaths() Paths {
	return Paths{
		Database:      envOr("AUTOBIB_DATABASE_PATH", filepath.Join(xdgDataHome(), "autobib", "records.db")),
		Config:        envOr("AUTOBIB_CONFIG_PATH", filepath.Join(xdgConfigHome(), "autobib", "config.yaml")),
		ResponseCache: envOr("AUTOBIB_RESPONSE_CACHE_PATH", filepath.Join(xdgDataHome(), "autobib", "response_cache.ndjson")),
	}
}

// EnsureDirs creates the parent directories of Database and
// ResponseCache (not Config: autobib never writes a config file on the
// user's behalf).
func (p Paths) EnsureDirs() error {
	for _, path := range []string{p.Database, p.ResponseCache} {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return newConfigError("create directory for " + path + ": " + err.Error())
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func xdgDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	return filepath.Join(homeDir(), ".local", "share")
}

func xdgConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	return filepath.Join(homeDir(), ".config")
}

func homeDir() string {
	if h, err := os.UserHomeDir(); err == nil && h != "" {
		return h
	}
	return "."
}
