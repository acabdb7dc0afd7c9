// Package config handles loading and persisting user configuration
// for the tianji CLI. Configuration is stored in ~/.tianji/config.json.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const (
	dirName         = ".tianji"
	fileName        = "config.json"
	defaultBaseURL  = "http://localhost:8000/api"
	defaultPageSize = 50
	envKeyBase      = "TIANJI_API_BASE"
	envKeyTTS       = "TIANJI_TTS"
)

// Config holds the user's configuration.
type Config struct {
	BaseURL  string `json:"base_url"`
	TTS      bool   `json:"tts,omitempty"`
	PageSize int    `json:"page_size,omitempty"`
	Debug    bool   `json:"debug,omitempty"`
}

// Dir returns the configuration directory path.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, dirName)
}

func configPath() string {
	return filepath.Join(Dir(), fileName)
}

// Load reads the configuration from disk, a local .env file, and
// environment variables. Environment values win over the file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		BaseURL:  defaultBaseURL,
		PageSize: defaultPageSize,
	}

	data, err := os.ReadFile(configPath())
	if err == nil {
		_ = json.Unmarshal(data, cfg)
	}

	if base := os.Getenv(envKeyBase); base != "" {
		cfg.BaseURL = base
	}
	if tts := os.Getenv(envKeyTTS); tts != "" {
		cfg.TTS = tts == "1" || tts == "true"
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}

	return cfg, nil
}

// save persists the config to disk.
func save(cfg *Config) error {
	if err := os.MkdirAll(Dir(), 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath(), data, 0o600)
}

func update(mutate func(*Config)) error {
	cfg := &Config{BaseURL: defaultBaseURL, PageSize: defaultPageSize}

	data, err := os.ReadFile(configPath())
	if err == nil {
		_ = json.Unmarshal(data, cfg)
	}

	mutate(cfg)
	return save(cfg)
}

// SetBaseURL saves the backend base URL to the config file.
func SetBaseURL(base string) error {
	return update(func(cfg *Config) { cfg.BaseURL = base })
}

// SetTTS saves the default text-to-speech preference.
func SetTTS(enabled bool) error {
	return update(func(cfg *Config) { cfg.TTS = enabled })
}

// SetDebug toggles debug logging to the log file.
func SetDebug(enabled bool) error {
	return update(func(cfg *Config) { cfg.Debug = enabled })
}
