package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all application configuration settings.
type Config struct {
	Environment string `envconfig:"ENV" default:"development"`

	Token      string        `envconfig:"TOKEN"`
	Production bool          `envconfig:"PRODUCTION" default:"true"`
	Timeout    time.Duration `envconfig:"TIMEOUT" default:"60s"`

	OutPath          string        `envconfig:"OUT_PATH" default:"output"`
	DownloadThreads  int           `envconfig:"DOWNLOAD_THREADS" default:"2"`
	ShowProgress     bool          `envconfig:"SHOW_PROGRESS" default:"true"`
	ProgressInterval time.Duration `envconfig:"PROGRESS_INTERVAL" default:"100ms"`

	HTTPPort    int           `envconfig:"HTTP_PORT" default:"8080"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"15s"`
	StateFile   string        `envconfig:"STATE_FILE" default:"./state/batches.json"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

// Validate checks the configuration for invalid or missing values.
// Returns an error describing the first invalid setting found.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("ONC token cannot be empty")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("request timeout must be positive: %s", c.Timeout)
	}

	if c.DownloadThreads <= 0 {
		return fmt.Errorf("download threads must be positive: %d", c.DownloadThreads)
	}

	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	if c.StateFile == "" {
		return fmt.Errorf("state file cannot be empty")
	}

	return nil
}

// SanitizeOutPath normalises separators to forward slashes and drops a
// trailing slash, so "out\\data\\" becomes "out/data".
func SanitizeOutPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}
