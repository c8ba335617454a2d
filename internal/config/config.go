// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// ErrEncryptionKeyMissing is returned by Load when CRYPTO_KEY is unset or blank.
// The process must not start without it.
var ErrEncryptionKeyMissing = errors.New("CRYPTO_KEY environment variable is missing")

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DiscordToken    string `env:"DISCORD_BOT_TOKEN,required,notEmpty"`
	OverseerrURL    string `env:"OVERSEERR_URL,required,notEmpty"`
	OverseerrAPIKey string `env:"OVERSEERR_API_KEY,required,notEmpty"`

	PlexBaseURL  string `env:"PLEX_BASE_URL"  envDefault:"https://plex.tv"`
	PlexClientID string `env:"PLEX_CLIENT_ID" envDefault:"johnny-cage-bot"`
	PlexLinkURL  string `env:"PLEX_LINK_URL"  envDefault:"https://plex.tv/link"`

	CommandPrefix     string `env:"COMMAND_PREFIX"      envDefault:"!"`
	SearchResultLimit int    `env:"SEARCH_RESULT_LIMIT" envDefault:"5"`

	LinkPollInterval    time.Duration `env:"LINK_POLL_INTERVAL"     envDefault:"3s"`
	LinkDefaultTTL      time.Duration `env:"LINK_DEFAULT_TTL"       envDefault:"120s"`
	LinkMaxPollFailures int           `env:"LINK_MAX_POLL_FAILURES" envDefault:"10"`

	DBPath     string     `env:"DB_PATH"     envDefault:"tokens.db"`
	ListenAddr string     `env:"LISTEN_ADDR" envDefault:"127.0.0.1:8080"`
	LogLevel   slog.Level `env:"LOG_LEVEL"   envDefault:"info"`

	// EncryptionKey is the 32-byte AES-256 key derived from CRYPTO_KEY.
	EncryptionKey []byte `env:"-"`
}

// Load reads configuration from environment variables and returns a validated Config.
// DISCORD_BOT_TOKEN, OVERSEERR_URL, OVERSEERR_API_KEY and CRYPTO_KEY are required;
// everything else has a default.
func Load() (*Config, error) {
	rawKey := strings.TrimSpace(os.Getenv("CRYPTO_KEY"))
	if rawKey == "" {
		return nil, ErrEncryptionKeyMissing
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	key, err := DeriveKey(rawKey)
	if err != nil {
		return nil, err
	}
	cfg.EncryptionKey = key

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.OverseerrURL = strings.TrimRight(cfg.OverseerrURL, "/")
	cfg.PlexBaseURL = strings.TrimRight(cfg.PlexBaseURL, "/")

	return &cfg, nil
}

func (c *Config) validate() error {
	if err := validateBaseURL("OVERSEERR_URL", c.OverseerrURL); err != nil {
		return err
	}
	if err := validateBaseURL("PLEX_BASE_URL", c.PlexBaseURL); err != nil {
		return err
	}
	if c.CommandPrefix == "" {
		return errors.New("COMMAND_PREFIX must not be empty")
	}
	if c.LinkPollInterval <= 0 {
		return fmt.Errorf("LINK_POLL_INTERVAL must be positive, got %s", c.LinkPollInterval)
	}
	if c.LinkDefaultTTL <= 0 {
		return fmt.Errorf("LINK_DEFAULT_TTL must be positive, got %s", c.LinkDefaultTTL)
	}
	if c.LinkMaxPollFailures < 0 {
		return fmt.Errorf("LINK_MAX_POLL_FAILURES must not be negative, got %d", c.LinkMaxPollFailures)
	}
	if c.SearchResultLimit < 1 || c.SearchResultLimit > 25 {
		// Discord caps an embed at 25 fields.
		return fmt.Errorf("SEARCH_RESULT_LIMIT must be between 1 and 25, got %d", c.SearchResultLimit)
	}
	return nil
}

func validateBaseURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s has invalid URL %q: %w", name, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", name, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s has no host: %q", name, raw)
	}
	return nil
}
