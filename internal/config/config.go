// Package config handles loading and persisting user configuration
// for ask. Configuration is stored in ~/.ask-cli/config.json and can be
// overridden per invocation through ASK_* environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	dirName  = ".ask-cli"
	fileName = "config.json"

	DefaultBaseURL    = "http://localhost:8080"
	DefaultOllamaURL  = "http://localhost:11434"
	DefaultModel      = "llama3.2:latest"
	DefaultListenAddr = ":8080"
	DefaultTimeout    = 120 * time.Second

	envKeyBaseURL   = "ASK_BASE_URL"
	envKeyModel     = "ASK_MODEL"
	envKeyOllamaURL = "ASK_OLLAMA_URL"
	envKeyTimeout   = "ASK_TIMEOUT"
)

// Config holds the user's configuration.
type Config struct {
	// BaseURL is where the chat endpoint lives; requests go to BaseURL/api/chat.
	BaseURL string `json:"base_url"`
	// Model is the Ollama model `ask serve` answers with.
	Model string `json:"model"`
	// OllamaURL is the Ollama server `ask serve` talks to.
	OllamaURL string `json:"ollama_url"`
	// ListenAddr is the address `ask serve` binds.
	ListenAddr string `json:"listen_addr"`
	// TimeoutSeconds bounds a single question, stream included.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
	// UsersDB is the SQLite file holding known users. Empty means Dir()/users.db.
	UsersDB string `json:"users_db,omitempty"`
}

// Timeout returns the per-question timeout.
func (c *Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// UsersPath returns the SQLite path for the user registry.
func (c *Config) UsersPath() string {
	if c.UsersDB != "" {
		return c.UsersDB
	}
	return filepath.Join(Dir(), "users.db")
}

// Dir returns the configuration directory path.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, dirName)
}

func configPath() string {
	return filepath.Join(Dir(), fileName)
}

func defaults() *Config {
	return &Config{
		BaseURL:    DefaultBaseURL,
		Model:      DefaultModel,
		OllamaURL:  DefaultOllamaURL,
		ListenAddr: DefaultListenAddr,
	}
}

// readFile overlays the on-disk config onto cfg. A missing file is not an error.
func readFile(cfg *Config) error {
	data, err := os.ReadFile(configPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("invalid %s: %w", configPath(), err)
	}
	return nil
}

// Load reads the configuration from disk and environment variables.
func Load() (*Config, error) {
	cfg := defaults()
	if err := readFile(cfg); err != nil {
		return nil, err
	}

	if v := os.Getenv(envKeyBaseURL); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv(envKeyModel); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv(envKeyOllamaURL); v != "" {
		cfg.OllamaURL = v
	}
	if v := os.Getenv(envKeyTimeout); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("%s must be a positive number of seconds, got %q", envKeyTimeout, v)
		}
		cfg.TimeoutSeconds = secs
	}

	// Fill defaults for anything a partial file blanked out.
	d := defaults()
	if cfg.BaseURL == "" {
		cfg.BaseURL = d.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = d.Model
	}
	if cfg.OllamaURL == "" {
		cfg.OllamaURL = d.OllamaURL
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = d.ListenAddr
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.OllamaURL = strings.TrimRight(cfg.OllamaURL, "/")

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

func update(fn func(cfg *Config)) error {
	cfg := defaults()
	if err := readFile(cfg); err != nil {
		return err
	}
	fn(cfg)
	return save(cfg)
}

// SetBaseURL saves the chat endpoint URL to the config file.
func SetBaseURL(url string) error {
	return update(func(cfg *Config) { cfg.BaseURL = strings.TrimRight(url, "/") })
}

// SetModel saves the model preference to the config file.
func SetModel(model string) error {
	return update(func(cfg *Config) { cfg.Model = model })
}
