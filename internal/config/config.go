package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"

	"monitoring-agent/pkg/version"
)

var validate = validator.New()

// ConfigError reports an invalid or unusable configuration. The CLI maps it
// to its own exit status, distinct from validation and delivery failures.
type ConfigError struct {
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Message, e.Err)
	}
	return "configuration error: " + e.Message
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Config holds the agent configuration, loaded from a YAML file.
type Config struct {
	Client      ClientConfig      `yaml:"client"`
	API         APIConfig         `yaml:"api"`
	Paths       PathsConfig       `yaml:"paths"`
	Machine     MachineConfig     `yaml:"machine"`
	Fingerprint FingerprintConfig `yaml:"fingerprint"`
	Vendors     VendorsConfig     `yaml:"vendors"`
	Logging     LoggingConfig     `yaml:"logging"`

	// ResolvedAPIKey is filled in after loading, from the configured env
	// var or key file. Never serialized.
	ResolvedAPIKey string `yaml:"-"`
	// BaseDir is the directory of the config file; relative paths in the
	// config are resolved against it.
	BaseDir string `yaml:"-"`
}

// ClientConfig identifies this agent in payload metadata.
type ClientConfig struct {
	Name          string `yaml:"name" validate:"required"`
	SchemaVersion string `yaml:"schema_version" validate:"required"`
	// TimestampField renames the timestamp key in payload metadata.
	TimestampField string `yaml:"timestamp_field"`
}

// APIConfig holds the collector endpoint and delivery settings.
type APIConfig struct {
	BaseURL             string  `yaml:"base_url" validate:"required,url"`
	MetricsEndpoint     string  `yaml:"metrics_endpoint" validate:"required"`
	TimeoutSeconds      float64 `yaml:"timeout_seconds" validate:"gt=0"`
	MaxRetries          int     `yaml:"max_retries" validate:"gte=1"`
	RetryBackoffSeconds float64 `yaml:"retry_backoff_seconds" validate:"gt=0"`
	APIKeyHeader        string  `yaml:"api_key_header" validate:"required"`
	APIKeyFile          string  `yaml:"api_key_file"`
	APIKeyEnvVar        string  `yaml:"api_key_env_var"`
	VerifySSL           bool    `yaml:"verify_ssl"`
}

// Timeout returns the per-attempt HTTP timeout.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}

// RetryBackoff returns the base wait before the second delivery attempt.
func (c APIConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffSeconds * float64(time.Second))
}

// PathsConfig locates the on-disk collaborators of the pipeline.
type PathsConfig struct {
	VendorsDir string `yaml:"vendors_dir" validate:"required"`
	DataDir    string `yaml:"data_dir" validate:"required"`
}

// MachineConfig controls how the machine identity block is resolved.
type MachineConfig struct {
	HostnameSource   string `yaml:"hostname_source" validate:"oneof=system fqdn static"`
	HostnameOverride string `yaml:"hostname_override"`
	OSOverride       string `yaml:"os_override"`
}

// ResolveHostname applies the hostname_source rule.
func (c MachineConfig) ResolveHostname() string {
	hostname, _ := os.Hostname()
	switch c.HostnameSource {
	case "fqdn":
		if fqdn := lookupFQDN(hostname); fqdn != "" {
			return fqdn
		}
	case "static":
		if c.HostnameOverride != "" {
			return c.HostnameOverride
		}
	}
	return hostname
}

// ResolveOS returns the configured OS override or the runtime OS name.
func (c MachineConfig) ResolveOS() string {
	if c.OSOverride != "" {
		return c.OSOverride
	}
	return strings.ToLower(runtime.GOOS)
}

// lookupFQDN asks the resolver for the canonical name of the host. Best
// effort: an empty string means the short hostname should be used.
func lookupFQDN(hostname string) string {
	if hostname == "" {
		return ""
	}
	cname, err := net.LookupCNAME(hostname)
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(cname, ".")
}

// FingerprintConfig controls machine fingerprint generation and caching.
type FingerprintConfig struct {
	Salt           string `yaml:"salt"`
	CacheFile      string `yaml:"cache_file" validate:"required"`
	ForceRecompute bool   `yaml:"force_recompute"`
}

// VendorsConfig controls vendor metric execution.
type VendorsConfig struct {
	ExecTimeoutSeconds float64 `yaml:"exec_timeout_seconds" validate:"gt=0"`
}

// ExecTimeout returns the wall-clock timeout applied to every vendor
// command.
func (c VendorsConfig) ExecTimeout() time.Duration {
	return time.Duration(c.ExecTimeoutSeconds * float64(time.Second))
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// NewDefaultConfig returns a configuration with every optional field set to
// a sane default. The collector base URL and an API key source have no
// default and must come from the file.
func NewDefaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			Name:           "monitoring-agent",
			SchemaVersion:  "1.1.0",
			TimestampField: "timestamp",
		},
		API: APIConfig{
			MetricsEndpoint:     "/api/v1/metrics",
			TimeoutSeconds:      5,
			MaxRetries:          3,
			RetryBackoffSeconds: 1,
			APIKeyHeader:        "X-API-Key",
			VerifySSL:           true,
		},
		Paths: PathsConfig{
			VendorsDir: "vendors",
			DataDir:    "data",
		},
		Machine: MachineConfig{
			HostnameSource: "system",
		},
		Fingerprint: FingerprintConfig{
			CacheFile: "fingerprint",
		},
		Vendors: VendorsConfig{
			ExecTimeoutSeconds: 5,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads, parses and validates the configuration file, then
// resolves the API key. A missing or invalid file is a *ConfigError.
func LoadConfig(configPath string) (*Config, error) {
	cfg := NewDefaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, &ConfigError{Message: fmt.Sprintf("cannot read config file %s", configPath), Err: err}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &ConfigError{Message: fmt.Sprintf("invalid YAML in %s", configPath), Err: err}
	}

	cfg.BaseDir = filepath.Dir(configPath)

	if err := validate.Struct(cfg); err != nil {
		return nil, &ConfigError{Message: "invalid configuration", Err: err}
	}

	if err := cfg.resolveAPIKey(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// resolveAPIKey fills ResolvedAPIKey from the configured environment
// variable when set and non-empty, otherwise from the key file. At least
// one source must yield a key.
func (c *Config) resolveAPIKey() error {
	if c.API.APIKeyEnvVar != "" {
		if key := strings.TrimSpace(os.Getenv(c.API.APIKeyEnvVar)); key != "" {
			c.ResolvedAPIKey = key
			return nil
		}
	}

	if c.API.APIKeyFile != "" {
		data, err := os.ReadFile(c.ResolvePath(c.API.APIKeyFile))
		if err != nil {
			return &ConfigError{Message: "cannot read API key file", Err: err}
		}
		key := strings.TrimSpace(string(data))
		if key == "" {
			return &ConfigError{Message: "API key file is empty"}
		}
		c.ResolvedAPIKey = key
		return nil
	}

	return &ConfigError{Message: "no API key configured: set api.api_key_env_var or api.api_key_file"}
}

// ResolvePath resolves a possibly relative path against the config file's
// directory.
func (c *Config) ResolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.BaseDir, path)
}

// VendorsDir returns the absolute vendors directory.
func (c *Config) VendorsDir() string {
	return c.ResolvePath(c.Paths.VendorsDir)
}

// DataDir returns the absolute data directory.
func (c *Config) DataDir() string {
	return c.ResolvePath(c.Paths.DataDir)
}

// FingerprintCachePath returns the absolute fingerprint cache file path.
func (c *Config) FingerprintCachePath() string {
	return filepath.Join(c.DataDir(), c.Fingerprint.CacheFile)
}

// Version returns the agent version reported in payload metadata.
func (c *Config) Version() string {
	return version.GetVersion()
}
