package config

import (
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	// StorageDir holds the state documents (anchor, rules, pending
	// queues, settings). Empty means the XDG data dir.
	StorageDir string `koanf:"storage_dir"`

	// Last.fm API and web session credentials
	Lastfm LastfmConfig `koanf:"lastfm"`

	// Run loop settings
	Scrubber ScrubberConfig `koanf:"scrubber"`

	// Suggestion provider toggles
	Providers ProvidersConfig `koanf:"providers"`
}

// LastfmConfig holds Last.fm credentials. The API key pair drives
// history reads; the web session pair drives edit submission.
type LastfmConfig struct {
	APIKey    string `koanf:"api_key"`
	APISecret string `koanf:"api_secret"`
	Username  string `koanf:"username"`
	CSRFToken string `koanf:"csrf_token"` // from the browser session
	SessionID string `koanf:"session_id"` // from the browser session
}

// ScrubberConfig holds run loop configuration.
type ScrubberConfig struct {
	IntervalSeconds int  `koanf:"interval_seconds"` // seconds between cycles (default: 300)
	BatchSize       int  `koanf:"batch_size"`       // tracks per batch (default: 50)
	DryRun          bool `koanf:"dry_run"`          // never submit edits

	RequireConfirmation         *bool `koanf:"require_confirmation"`           // global gate (default: true)
	RequireConfirmationForEdits *bool `koanf:"require_confirmation_for_edits"` // default: true
	RequireConfirmationForRules *bool `koanf:"require_confirmation_for_rules"` // default: true
}

// ProvidersConfig toggles suggestion providers.
type ProvidersConfig struct {
	Rules     *bool `koanf:"rules"`     // rewrite-rule provider (default: true)
	Canonical *bool `koanf:"canonical"` // compilation-to-canonical provider (default: false)
}

func Load() (*Config, error) {
	return LoadFrom(getConfigPaths()...)
}

// LoadFrom loads configuration from explicit paths, later paths
// overriding earlier ones. Missing files are skipped.
func LoadFrom(paths ...string) (*Config, error) {
	k := koanf.New(".")

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	if cfg.StorageDir != "" {
		cfg.StorageDir = expandPath(cfg.StorageDir)
	}

	return cfg, nil
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. ~/.config/scrubber/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "scrubber", "config.toml"))
	}

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// HasLastfmConfig returns true if the Last.fm API pair is configured.
func (c *Config) HasLastfmConfig() bool {
	return c.Lastfm.APIKey != "" && c.Lastfm.APISecret != ""
}

// HasEditSession returns true if the web session pair for edit
// submission is configured.
func (c *Config) HasEditSession() bool {
	return c.Lastfm.Username != "" && c.Lastfm.CSRFToken != "" && c.Lastfm.SessionID != ""
}

// GetScrubberConfig returns the run loop configuration with defaults applied.
func (c *Config) GetScrubberConfig() ScrubberConfig {
	cfg := c.Scrubber

	if cfg.IntervalSeconds <= 0 {
		cfg.IntervalSeconds = 300
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}

	return cfg
}

// RulesEnabled returns whether the rewrite-rule provider is on.
func (c *Config) RulesEnabled() bool {
	return boolOr(c.Providers.Rules, true)
}

// CanonicalEnabled returns whether the canonicalization provider is on.
func (c *Config) CanonicalEnabled() bool {
	return boolOr(c.Providers.Canonical, false)
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
