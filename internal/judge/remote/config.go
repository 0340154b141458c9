package remote

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvID      = "AEDIFICIUM_ID"
	EnvBaseURL = "AEDIFICIUM_BASE_URL"

	DefaultBaseURL = "https://31pwr5t6ij.execute-api.eu-west-2.amazonaws.com/"
)

// Config holds the judge credentials and the HTTP retry policy.
type Config struct {
	ID      string
	BaseURL string
	// Timeout bounds a single HTTP request.
	Timeout time.Duration
	// Attempts is the number of tries per request, including the first.
	Attempts uint
	// Delay is the first backoff delay; it doubles up to MaxDelay.
	Delay    time.Duration
	MaxDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseURL:  DefaultBaseURL,
		Timeout:  30 * time.Second,
		Attempts: 10,
		Delay:    time.Second,
		MaxDelay: 32 * time.Second,
	}
}

// LoadConfig reads the judge credentials from the environment after loading
// the given .env files (".env" when none are given). Missing files are
// ignored; variables already set in the environment win.
func LoadConfig(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("error loading env file: %w", err)
	}
	cfg := DefaultConfig()
	cfg.ID = os.Getenv(EnvID)
	if base := os.Getenv(EnvBaseURL); base != "" {
		cfg.BaseURL = base
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("judge id not configured, set %s", EnvID)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("judge base url not configured, set %s", EnvBaseURL)
	}
	if c.Attempts == 0 {
		return fmt.Errorf("retry attempts must be positive")
	}
	return nil
}

func (c Config) endpoint(name string) string {
	return strings.TrimSuffix(c.BaseURL, "/") + "/" + name
}
