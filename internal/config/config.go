// Package config loads the agent builder's configuration from a YAML file,
// an optional .env file and AGENTBUILDER_* environment variables, in that
// order of increasing precedence.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/im-knots/ea-monorepo/internal/adapters/events"
	"github.com/im-knots/ea-monorepo/pkg/logger"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "AGENTBUILDER_"

// Config is the complete host configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Services  ServicesConfig  `yaml:"services"`
	Poller    PollerConfig    `yaml:"poller"`
	Snapshots SnapshotsConfig `yaml:"snapshots"`
	Events    events.Config   `yaml:"events"`
	Log       logger.Config   `yaml:"log"`
}

// ServerConfig controls the session API listener.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// RequireAuth rejects session API calls without a bearer token.
	RequireAuth bool `yaml:"require_auth"`
}

// ServicesConfig locates the remote collaborators.
type ServicesConfig struct {
	AgentManagerURL string        `yaml:"agent_manager_url"`
	JobAPIURL       string        `yaml:"job_api_url"`
	UserManagerURL  string        `yaml:"user_manager_url"`
	Token           string        `yaml:"token"`
	Timeout         time.Duration `yaml:"timeout"`
}

// PollerConfig controls execution status polling.
type PollerConfig struct {
	Interval     time.Duration `yaml:"interval"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// SnapshotsConfig selects the draft snapshot store.
type SnapshotsConfig struct {
	Driver      string `yaml:"driver"`
	DSN         string `yaml:"dsn"`
	Codec       string `yaml:"codec"`
	Compression string `yaml:"compression"`
	// EncryptionKey is hex encoded; 16, 24 or 32 bytes once decoded.
	EncryptionKey string        `yaml:"encryption_key"`
	TTL           time.Duration `yaml:"ttl"`
	MaxEntries    int           `yaml:"max_entries"`
}

// Key decodes EncryptionKey. An empty key disables encryption.
func (s SnapshotsConfig) Key() ([]byte, error) {
	if s.EncryptionKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(s.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("snapshots.encryption_key: %w", err)
	}
	return key, nil
}

// Load reads path (optional), then envFile (optional, missing is fine), then
// the environment, and fills in defaults.
func Load(path, envFile string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// applyEnv overrides fields from AGENTBUILDER_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	str("SERVER_ADDRESS", &c.Server.Address)
	boolean("REQUIRE_AUTH", &c.Server.RequireAuth)
	str("AGENT_MANAGER_URL", &c.Services.AgentManagerURL)
	str("JOB_API_URL", &c.Services.JobAPIURL)
	str("USER_MANAGER_URL", &c.Services.UserManagerURL)
	str("API_TOKEN", &c.Services.Token)
	dur("HTTP_TIMEOUT", &c.Services.Timeout)
	dur("POLL_INTERVAL", &c.Poller.Interval)
	dur("POLL_FETCH_TIMEOUT", &c.Poller.FetchTimeout)
	str("SNAPSHOT_DRIVER", &c.Snapshots.Driver)
	str("SNAPSHOT_DSN", &c.Snapshots.DSN)
	str("SNAPSHOT_ENCRYPTION_KEY", &c.Snapshots.EncryptionKey)
	str("EVENTS_DRIVER", &c.Events.Driver)
	str("REDIS_ADDRESS", &c.Events.Redis.Address)
	str("REDIS_PASSWORD", &c.Events.Redis.Password)
	str("RABBITMQ_URL", &c.Events.RabbitMQ.URL)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	return errors.Join(errs...)
}

// applyDefaults sets reasonable values for everything left empty.
func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Services.AgentManagerURL == "" {
		c.Services.AgentManagerURL = "http://api.ea.erulabs.local/agent-manager/api/v1"
	}
	if c.Services.JobAPIURL == "" {
		c.Services.JobAPIURL = "http://api.ea.erulabs.local/job-api/api/v1"
	}
	if c.Services.UserManagerURL == "" {
		c.Services.UserManagerURL = "http://api.ea.erulabs.local/ainu-manager/api/v1"
	}
	if c.Services.Timeout <= 0 {
		c.Services.Timeout = 15 * time.Second
	}
	if c.Poller.Interval <= 0 {
		c.Poller.Interval = 5 * time.Second
	}
	if c.Poller.FetchTimeout <= 0 {
		c.Poller.FetchTimeout = 10 * time.Second
	}
	if c.Snapshots.Driver == "" {
		c.Snapshots.Driver = "memory"
	}
	if c.Snapshots.Codec == "" {
		c.Snapshots.Codec = "msgpack"
	}
	if c.Snapshots.Compression == "" {
		c.Snapshots.Compression = "zstd"
	}
	if c.Snapshots.MaxEntries <= 0 {
		c.Snapshots.MaxEntries = 1000
	}
	if c.Events.Driver == "" {
		c.Events.Driver = "none"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Snapshots.Driver) {
	case "memory", "none":
	case "sqlite", "postgres":
		if c.Snapshots.DSN == "" {
			return fmt.Errorf("snapshots.dsn is required for driver %q", c.Snapshots.Driver)
		}
	default:
		return fmt.Errorf("snapshots.driver %q is not supported", c.Snapshots.Driver)
	}
	if _, err := c.Snapshots.Key(); err != nil {
		return err
	}
	return nil
}
