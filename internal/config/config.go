package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Hevy      HevyConfig      `yaml:"hevy"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// HevyConfig describes the remote API: endpoint, credential, and sync
// cadence. AuthScheme picks how the credential is attached: "bearer" sends
// Authorization: Bearer <key>; anything else names the header directly
// ("api-key" by default).
type HevyConfig struct {
	BaseURL             string `yaml:"base_url"`
	APIKey              string `yaml:"api_key"`
	AuthScheme          string `yaml:"auth_scheme"`
	PageSize            int    `yaml:"page_size"`
	TimeoutSeconds      int    `yaml:"timeout_seconds"`
	SyncIntervalMinutes int    `yaml:"sync_interval_minutes"`
	IncrementalPages    int    `yaml:"incremental_pages"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"` // protects the mutating sync endpoints
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// AuthHeader returns the header name/value pair carrying the credential.
func (h HevyConfig) AuthHeader() (name, value string) {
	if h.AuthScheme == "bearer" {
		return "Authorization", "Bearer " + h.APIKey
	}
	name = h.AuthScheme
	if name == "" {
		name = "api-key"
	}
	return name, h.APIKey
}

// Timeout returns the page-fetch timeout.
func (h HevyConfig) Timeout() time.Duration {
	if h.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(h.TimeoutSeconds) * time.Second
}

// SyncInterval returns the periodic sync interval.
func (h HevyConfig) SyncInterval() time.Duration {
	if h.SyncIntervalMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(h.SyncIntervalMinutes) * time.Minute
}

// Load reads config from a YAML file, then applies environment variable
// overrides. Env vars use the prefix REPSYNC_ and underscore-separated
// paths:
//
//	REPSYNC_SERVER_HOST, REPSYNC_SERVER_PORT,
//	REPSYNC_DB_HOST, REPSYNC_DB_PORT, REPSYNC_DB_NAME,
//	REPSYNC_DB_USER, REPSYNC_DB_PASSWORD, REPSYNC_DB_SSLMODE,
//	REPSYNC_HEVY_BASE_URL, REPSYNC_HEVY_API_KEY, REPSYNC_HEVY_AUTH_SCHEME,
//	REPSYNC_AUTH_API_KEY
func Load(path string) (*Config, error) {
	cfg := &Config{
		Hevy: HevyConfig{
			BaseURL:  "https://api.hevyapp.com",
			PageSize: 10,
		},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REPSYNC_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("REPSYNC_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("REPSYNC_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("REPSYNC_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("REPSYNC_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("REPSYNC_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("REPSYNC_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("REPSYNC_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("REPSYNC_HEVY_BASE_URL"); v != "" {
		cfg.Hevy.BaseURL = v
	}
	if v := os.Getenv("REPSYNC_HEVY_API_KEY"); v != "" {
		cfg.Hevy.APIKey = v
	}
	if v := os.Getenv("REPSYNC_HEVY_AUTH_SCHEME"); v != "" {
		cfg.Hevy.AuthScheme = v
	}
	if v := os.Getenv("REPSYNC_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Hevy.APIKey == "" {
		return fmt.Errorf("hevy.api_key is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	return nil
}
