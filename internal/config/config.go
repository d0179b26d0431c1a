// Package config handles loading and validation of service configuration.
// Supports both development (env vars) and production (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"gopkg.in/yaml.v3"

	"cartsync/internal/mirror"
	"cartsync/internal/transport"
)

// Defaults.
const (
	DefaultBackendTimeout = 30 * time.Second
	DefaultMirrorTTL      = 24 * time.Hour
)

// Config holds all service configuration.
// Environment determines whether secrets load from env vars (development) or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject string
	SecretID   string

	// TraceStdout writes finished spans to stdout.
	TraceStdout bool

	Backend BackendConfig
	Mirror  MirrorConfig
}

// BackendConfig describes the remote cart backend.
type BackendConfig struct {
	URL       string
	Transport transport.Kind
	Timeout   time.Duration
}

// MirrorConfig describes where session mirrors live.
// An empty RedisURL selects the in-process mirror (development only).
type MirrorConfig struct {
	RedisURL string
	Prefix   string
	TTL      time.Duration
}

// Secrets is the JSON payload stored in Secret Manager.
type Secrets struct {
	BackendURL string `json:"backend_url"`
	RedisURL   string `json:"redis_url"`
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars / Secret Manager.
// Validates all required fields and returns an error if any are missing.
func Load(ctx context.Context) (*Config, error) {
	// If CONFIG_FILE is set, load everything from the JSON or YAML file
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	// Otherwise, use ENV vars / Secret Manager approach
	cfg := &Config{
		Port:        envOrDefault("PORT", "8080"),
		Environment: envOrDefault("ENVIRONMENT", "development"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		GCPProject:  os.Getenv("GCP_PROJECT"),
		SecretID:    os.Getenv("SECRET_ID"),
	}
	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}

	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		if cfg.SecretID == "" {
			return nil, fmt.Errorf("SECRET_ID required in production environment")
		}
		if err := cfg.loadFromSecretManager(ctx); err != nil {
			return nil, fmt.Errorf("loading secrets: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// fileConfig matches the CONFIG_FILE layout in both JSON and YAML.
type fileConfig struct {
	Port        string `json:"port" yaml:"port"`
	Environment string `json:"environment" yaml:"environment"`
	LogLevel    string `json:"log_level" yaml:"log_level"`
	TraceStdout bool   `json:"trace_stdout" yaml:"trace_stdout"`
	Backend     struct {
		URL       string `json:"url" yaml:"url"`
		Transport string `json:"transport" yaml:"transport"`
		Timeout   string `json:"timeout" yaml:"timeout"`
	} `json:"backend" yaml:"backend"`
	Mirror struct {
		RedisURL string `json:"redis_url" yaml:"redis_url"`
		Prefix   string `json:"prefix" yaml:"prefix"`
		TTL      string `json:"ttl" yaml:"ttl"`
	} `json:"mirror" yaml:"mirror"`
}

// loadFromFile reads all configuration from a JSON or YAML file, chosen by
// extension. Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:        withDefault(fc.Port, "8080"),
		Environment: withDefault(fc.Environment, "development"),
		LogLevel:    withDefault(fc.LogLevel, "info"),
		TraceStdout: fc.TraceStdout,
		Backend:     BackendConfig{URL: fc.Backend.URL},
		Mirror: MirrorConfig{
			RedisURL: fc.Mirror.RedisURL,
			Prefix:   withDefault(fc.Mirror.Prefix, mirror.DefaultPrefix),
		},
	}

	if cfg.Backend.Transport, err = transport.ParseKind(fc.Backend.Transport); err != nil {
		return nil, fmt.Errorf("backend.transport: %w", err)
	}
	if cfg.Backend.Timeout, err = parseDuration("backend.timeout", fc.Backend.Timeout, DefaultBackendTimeout); err != nil {
		return nil, err
	}
	if cfg.Mirror.TTL, err = parseDuration("mirror.ttl", fc.Mirror.TTL, DefaultMirrorTTL); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// loadFromSecretManager fetches backend and Redis URLs from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{secret_id}/versions/latest
// Non-empty secret values override the environment.
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.SecretID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	return c.applySecrets(result.Payload.Data)
}

// applySecrets merges a Secrets JSON payload into the config.
func (c *Config) applySecrets(data []byte) error {
	var s Secrets
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}
	if s.BackendURL != "" {
		c.Backend.URL = s.BackendURL
	}
	if s.RedisURL != "" {
		c.Mirror.RedisURL = s.RedisURL
	}
	return nil
}

// loadFromEnv reads backend, mirror and tracing settings from environment variables.
func (c *Config) loadFromEnv() error {
	var err error

	c.Backend.URL = os.Getenv("BACKEND_URL")
	if c.Backend.Transport, err = transport.ParseKind(os.Getenv("BACKEND_TRANSPORT")); err != nil {
		return fmt.Errorf("BACKEND_TRANSPORT: %w", err)
	}
	if c.Backend.Timeout, err = parseDuration("BACKEND_TIMEOUT", os.Getenv("BACKEND_TIMEOUT"), DefaultBackendTimeout); err != nil {
		return err
	}

	c.Mirror.RedisURL = os.Getenv("REDIS_URL")
	c.Mirror.Prefix = envOrDefault("MIRROR_PREFIX", mirror.DefaultPrefix)
	if c.Mirror.TTL, err = parseDuration("MIRROR_TTL", os.Getenv("MIRROR_TTL"), DefaultMirrorTTL); err != nil {
		return err
	}

	if v := os.Getenv("TRACE_STDOUT"); v != "" {
		if c.TraceStdout, err = strconv.ParseBool(v); err != nil {
			return fmt.Errorf("TRACE_STDOUT: %w", err)
		}
	}
	return nil
}

// validate checks that all required configuration fields are present.
func (c *Config) validate() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("backend url is required")
	}
	u, err := url.Parse(c.Backend.URL)
	if err != nil {
		return fmt.Errorf("invalid backend url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid backend url %q: want http(s)://host", c.Backend.URL)
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend timeout must be positive")
	}

	// The in-process mirror does not survive restarts.
	if c.Environment == "production" && c.Mirror.RedisURL == "" {
		return fmt.Errorf("redis url is required in production")
	}
	if c.Mirror.TTL < 0 {
		return fmt.Errorf("mirror ttl must not be negative")
	}

	return nil
}

// parseDuration parses a Go duration string, returning def for "".
func parseDuration(name, val string, def time.Duration) (time.Duration, error) {
	if val == "" {
		return def, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
