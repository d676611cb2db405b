// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// Required settings are checked by Validate, which reports every missing key at once.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime settings. Values come from the environment
// (optionally seeded from a .env file by the caller).
type Config struct {
	// Discovery
	Channels         []string `env:"CHANNELS" envSeparator:","`
	APIKey           string   `env:"YT_API_KEY"`
	UseSearch        bool     `env:"USE_SEARCH"`
	UploadsScanLimit int      `env:"UPLOADS_SCAN_LIMIT" envDefault:"10"`
	MaxResults       int      `env:"MAX_RESULTS" envDefault:"5"`

	// Ledger
	OutputFile string `env:"OUTPUT_FILE" envDefault:"livestreams.txt"`
	Timestamps bool   `env:"TIMESTAMPS" envDefault:"true"`

	// Orchestration
	RunOnce        bool          `env:"RUN_ONCE"`
	PollInterval   time.Duration `env:"POLL_INTERVAL" envDefault:"60s"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	HTTPAddr       string        `env:"HTTP_ADDR"`

	// Playlist sync
	PlaylistSync  bool   `env:"PLAYLIST_SYNC"`
	PlaylistID    string `env:"PLAYLIST_ID"`
	PlaylistTitle string `env:"PLAYLIST_TITLE" envDefault:"Live Streams"`
	QueueFile     string `env:"QUEUE_FILE"`
	SyncStateFile string `env:"SYNC_STATE_FILE"`

	// Delegated auth
	AccessToken    string `env:"YT_ACCESS_TOKEN"`
	ClientID       string `env:"YT_CLIENT_ID"`
	ClientSecret   string `env:"YT_CLIENT_SECRET"`
	RefreshToken   string `env:"YT_REFRESH_TOKEN"`
	TokenCacheFile string `env:"TOKEN_CACHE_FILE" envDefault:".youtube-token.json"`
	TokenCacheKey  string `env:"TOKEN_CACHE_KEY"`
	AuthSetup      bool   `env:"AUTH_SETUP"`
}

// ConfigurationError reports missing or invalid required settings. It is
// fatal and non-retryable; the message lists every problem found.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + strings.Join(e.Problems, "; ")
}

// Load reads environment variables and applies defaults. Derived file paths
// (retry queue, sync state) default next to the output file when unset.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	for i, c := range cfg.Channels {
		cfg.Channels[i] = strings.TrimSpace(c)
	}
	cfg.Channels = compact(cfg.Channels)
	if cfg.QueueFile == "" {
		cfg.QueueFile = cfg.OutputFile + ".queue"
	}
	if cfg.SyncStateFile == "" {
		cfg.SyncStateFile = cfg.OutputFile + ".sync.json"
	}
	// The uploads scan reads at most one page of 50 playlist items.
	if cfg.UploadsScanLimit < 1 {
		cfg.UploadsScanLimit = 1
	}
	if cfg.UploadsScanLimit > 50 {
		cfg.UploadsScanLimit = 50
	}
	return cfg, nil
}

// Validate checks the settings needed for a discovery run. Playlist-sync and
// auth credentials are validated lazily by the components that need them, so
// a ledger-only setup stays minimal.
func (c *Config) Validate() error {
	var problems []string
	if len(c.Channels) == 0 {
		problems = append(problems, "CHANNELS is required (comma-separated channel IDs, @handles, or URLs)")
	}
	if c.APIKey == "" && !c.HasOAuthCreds() {
		problems = append(problems, "YT_API_KEY is required unless OAuth credentials (YT_CLIENT_ID/YT_CLIENT_SECRET or YT_ACCESS_TOKEN) are set")
	}
	if c.MaxResults < 1 {
		problems = append(problems, "MAX_RESULTS must be at least 1")
	}
	if c.PollInterval <= 0 {
		problems = append(problems, "POLL_INTERVAL must be positive")
	}
	if c.RequestTimeout <= 0 {
		problems = append(problems, "REQUEST_TIMEOUT must be positive")
	}
	if len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
	}
	return nil
}

// HasOAuthCreds reports whether any delegated-auth path could produce a
// bearer token with the current settings.
func (c *Config) HasOAuthCreds() bool {
	return c.AccessToken != "" || (c.ClientID != "" && c.ClientSecret != "")
}

func compact(ss []string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
