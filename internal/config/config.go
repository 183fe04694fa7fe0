// Package config holds runtime configuration, read from the environment
// after godotenv has populated it, plus the persisted config.json with
// the user's provider preferences.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/docker/go-units"
)

// Config is the resolved runtime configuration.
type Config struct {
	Port           int
	DataDir        string
	PublicDir      string
	LogLevel       string
	LogPretty      bool
	MaxUploadBytes int64
	WatchFiles     bool
}

// Load resolves the configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:      3000,
		DataDir:   ".",
		PublicDir: "public",
		LogLevel:  "info",
		LogPretty: true,

		WatchFiles: true,
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Port = port
	}
	if v := os.Getenv("CAUSETTE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("CAUSETTE_PUBLIC_DIR"); v != "" {
		cfg.PublicDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOG_PRETTY"); v != "" {
		cfg.LogPretty = v != "false" && v != "0"
	}
	if v := os.Getenv("CAUSETTE_WATCH_FILES"); v != "" {
		cfg.WatchFiles = v != "false" && v != "0"
	}

	// Human-readable size, e.g. "10MB" or "512KB".
	maxUpload := os.Getenv("MAX_UPLOAD_SIZE")
	if maxUpload == "" {
		maxUpload = "10MB"
	}
	maxBytes, err := units.FromHumanSize(maxUpload)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_SIZE %q: %w", maxUpload, err)
	}
	cfg.MaxUploadBytes = maxBytes

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	return cfg, nil
}

// HistoryPath is the discussion collection file.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.DataDir, "history.json")
}

// PromptsPath is the prompt template file.
func (c *Config) PromptsPath() string {
	return filepath.Join(c.DataDir, "prompts.json")
}

// UploadsDir receives attachment bytes.
func (c *Config) UploadsDir() string {
	return filepath.Join(c.DataDir, "uploads")
}

// AttachmentsDBPath is the attachment metadata database.
func (c *Config) AttachmentsDBPath() string {
	return filepath.Join(c.DataDir, "uploads.db")
}
