// ABOUTME: Configuration loading, saving, and validation for kvgate
// ABOUTME: Supports YAML (default) and TOML files with environment variable expansion

package config

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Defaults applied to fields left empty in a config file.
const (
	DefaultHTTPAddr      = "127.0.0.1:8080"
	DefaultMetricsAddr   = "127.0.0.1:9090"
	DefaultMetricsPath   = "/metrics"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
	DefaultTailscaleHost = "kvgate"
)

// secretKeyLength is the hex length of a 256-bit secret key.
const secretKeyLength = 64

// Config represents the complete kvgate configuration
type Config struct {
	Server         ServerConfig         `yaml:"server" toml:"server"`
	Authentication AuthenticationConfig `yaml:"authentication" toml:"authentication"`
	Logging        LoggingConfig        `yaml:"logging" toml:"logging"`
	Metrics        MetricsConfig        `yaml:"metrics" toml:"metrics"`
	Tailscale      TailscaleConfig      `yaml:"tailscale" toml:"tailscale"`
}

// ServerConfig holds the HTTP bind address
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// AuthenticationConfig holds the gate state and its secret material.
// RootToken is minted once by init and never re-derived.
type AuthenticationConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	RootToken string `yaml:"root_token" toml:"root_token"`
	SecretKey string `yaml:"secret_key" toml:"secret_key"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds the Prometheus endpoint configuration.
// Metrics are served on their own listener so the API surface stays fixed.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Addr    string `yaml:"addr" toml:"addr"`
	Path    string `yaml:"path" toml:"path"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
}

// Default returns a configuration with authentication disabled and no secret
// material. Callers bootstrapping a new deployment fill in the secret key and
// root token.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded. Files ending in
// .toml are parsed as TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if isTOML(path) {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Save writes cfg to path, creating the parent directory if needed. The file
// holds secret material and is written with mode 0600.
func Save(path string, cfg *Config) error {
	var buf bytes.Buffer
	buf.WriteString(fileHeader)

	if isTOML(path) {
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
	} else {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

const fileHeader = "# kvgate configuration\n# Generated by kvgate init\n\n"

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" && !c.Tailscale.Enabled {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = DefaultMetricsAddr
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Tailscale.Hostname == "" {
		c.Tailscale.Hostname = DefaultTailscaleHost
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	if c.Authentication.Enabled {
		if c.Authentication.SecretKey == "" {
			return fmt.Errorf("authentication.secret_key is required when authentication is enabled")
		}
		if err := validateSecretKey(c.Authentication.SecretKey); err != nil {
			return fmt.Errorf("authentication.secret_key: %w", err)
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q must be text or json", c.Logging.Format)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path %q must start with /", c.Metrics.Path)
	}

	return nil
}

func validateSecretKey(key string) error {
	if len(key) != secretKeyLength {
		return fmt.Errorf("must be %d hex characters, got %d", secretKeyLength, len(key))
	}
	if _, err := hex.DecodeString(key); err != nil {
		return fmt.Errorf("must be hex encoded: %w", err)
	}
	return nil
}

// GenerateSecretKey returns a new hex-encoded 256-bit secret: the SHA-256
// digest of 32 random bytes.
func GenerateSecretKey() (string, error) {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return "", fmt.Errorf("generating secret key: %w", err)
	}
	sum := sha256.Sum256(seed)
	return hex.EncodeToString(sum[:]), nil
}
