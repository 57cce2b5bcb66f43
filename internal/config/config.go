package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	DefaultBaseURL         = "http://localhost:3000"
	DefaultConnectionsPath = "/api/trpc/llmApiKey.all"
	DefaultCreatePath      = "/api/trpc/llmApiKey.create"
	DefaultChatPath        = "/api/chatCompletion"
	DefaultSessionCookie   = "next-auth.session-token"
	DefaultTemperature     = 0.7
)

type Config struct {
	Backend struct {
		BaseURL         string `toml:"base_url"`
		ConnectionsPath string `toml:"connections_path"`
		CreatePath      string `toml:"create_path"`
		ChatPath        string `toml:"chat_path"`
		SessionCookie   string `toml:"session_cookie"`
		TimeoutSeconds  int    `toml:"timeout_seconds"`
		Retries         int    `toml:"retries"`
	} `toml:"backend"`
	Project struct {
		ID   string `toml:"id"`
		File string `toml:"file"`
	} `toml:"project"`
	Playground struct {
		Streaming   bool    `toml:"streaming"`
		Temperature float64 `toml:"temperature"`
		Panels      int     `toml:"panels"`
	} `toml:"playground"`
	State struct {
		DBPath string `toml:"db_path"`
	} `toml:"state"`
	Log struct {
		Level string `toml:"level"`
		File  string `toml:"file"`
	} `toml:"log"`
}

func configDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "playground")
}

func GetConfigPath() string {
	return filepath.Join(configDir(), "config.toml")
}

// Default returns a config with every field set to its default.
func Default() *Config {
	var cfg Config
	dir := configDir()

	cfg.Backend.BaseURL = DefaultBaseURL
	cfg.Backend.ConnectionsPath = DefaultConnectionsPath
	cfg.Backend.CreatePath = DefaultCreatePath
	cfg.Backend.ChatPath = DefaultChatPath
	cfg.Backend.SessionCookie = DefaultSessionCookie
	cfg.Backend.TimeoutSeconds = 30
	cfg.Backend.Retries = 2
	cfg.Playground.Streaming = false
	cfg.Playground.Temperature = DefaultTemperature
	cfg.Playground.Panels = 1
	cfg.State.DBPath = filepath.Join(dir, "playground.db")
	cfg.Log.Level = "info"
	cfg.Log.File = filepath.Join(dir, "playground.log")
	return &cfg
}

func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom reads the TOML file at path over the defaults, then applies
// .env and PLAYGROUND_* environment overrides. A missing file is not an error.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return cfg, fmt.Errorf("decode config %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("stat config %s: %w", path, err)
	}

	_ = godotenv.Load()
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	env := func(key string) string { return strings.TrimSpace(getenv(key)) }

	c.Backend.BaseURL = firstNonEmpty(env("PLAYGROUND_BASE_URL"), c.Backend.BaseURL)
	c.Backend.SessionCookie = firstNonEmpty(env("PLAYGROUND_SESSION_COOKIE"), c.Backend.SessionCookie)
	c.Project.ID = firstNonEmpty(env("PLAYGROUND_PROJECT_ID"), c.Project.ID)
	c.Project.File = firstNonEmpty(env("PLAYGROUND_PROJECT_FILE"), c.Project.File)
	c.State.DBPath = firstNonEmpty(env("PLAYGROUND_DB_PATH"), c.State.DBPath)
	c.Log.Level = firstNonEmpty(env("PLAYGROUND_LOG_LEVEL"), c.Log.Level)
	c.Log.File = firstNonEmpty(env("PLAYGROUND_LOG_FILE"), c.Log.File)

	if raw := env("PLAYGROUND_STREAMING"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("PLAYGROUND_STREAMING: %w", err)
		}
		c.Playground.Streaming = v
	}
	if raw := env("PLAYGROUND_TEMPERATURE"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("PLAYGROUND_TEMPERATURE: %w", err)
		}
		c.Playground.Temperature = v
	}
	return nil
}

func (c *Config) normalize() {
	c.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(c.Backend.BaseURL), "/")
	if c.Backend.ConnectionsPath == "" {
		c.Backend.ConnectionsPath = DefaultConnectionsPath
	}
	if c.Backend.CreatePath == "" {
		c.Backend.CreatePath = DefaultCreatePath
	}
	if c.Backend.ChatPath == "" {
		c.Backend.ChatPath = DefaultChatPath
	}
	if c.Backend.TimeoutSeconds <= 0 {
		c.Backend.TimeoutSeconds = 30
	}
	if c.Backend.Retries < 0 {
		c.Backend.Retries = 0
	}
	if c.Playground.Panels < 1 {
		c.Playground.Panels = 1
	}
}

// Timeout bounds discovery and connection-management calls. Chat calls are
// not bounded by it.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
