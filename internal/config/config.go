// Package config loads the docdex configuration. The value is constructed
// once at startup and passed to the components that need it; there is no
// global mutable configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/docdex/internal/domain"
)

// Config holds the docdex worker configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Queue    QueueConfig    `yaml:"queue"`
	Batch    BatchConfig    `yaml:"batch"`
	Filter   FilterConfig   `yaml:"filter"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP API server settings.
type ServerConfig struct {
	Port        int    `yaml:"port"`
	UserHeader  string `yaml:"user_header"`
	ShutdownSec int    `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Redis connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds the relational store settings.
type StorageConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// QueueConfig holds work queue settings.
type QueueConfig struct {
	Name        string `yaml:"name"`
	Concurrency int    `yaml:"concurrency"`
}

// BatchConfig holds batch execution settings.
type BatchConfig struct {
	PageSize              int `yaml:"page_size"`
	MaxHitsPerQuery       int `yaml:"max_hits_per_query"`
	RetryMaxAttempts      int `yaml:"retry_max_attempts"`
	RetryInitialBackoffMS int `yaml:"retry_initial_backoff_ms"`
	RetryMaxBackoffMS     int `yaml:"retry_max_backoff_ms"`
}

// FilterConfig names the durable set/map instances backing the dedup filter
// and the failure report; the identifiers are deployment-owned.
type FilterConfig struct {
	Scope      string `yaml:"scope"` // batch (default) or project
	SetName    string `yaml:"set_name"`
	ReportName string `yaml:"report_name"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// Load reads configuration from a YAML file by environment name (local,
// dev, prod). A missing file is a deployment problem, reported as
// domain.ErrNotConfigured rather than a generic failure.
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, fmt.Errorf("settings file %s: %w", configPath, domain.ErrNotConfigured)
		}
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR} and ${VAR:-default}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting
// to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// applyEnvOverrides applies the enumerated environment override table.
// Every supported variable is listed here explicitly; none is discovered by
// name rewriting.
func (c *Config) applyEnvOverrides() {
	overrides := []struct {
		envVar string
		apply  func(string)
	}{
		{"DOCDEX_SERVER_PORT", func(v string) {
			if p, err := strconv.Atoi(v); err == nil {
				c.Server.Port = p
			}
		}},
		{"DOCDEX_REDIS_ADDRS", func(v string) { c.Database.Addrs = strings.Split(v, ",") }},
		{"DOCDEX_REDIS_PASSWORD", func(v string) { c.Database.Password = v }},
		{"DOCDEX_SQLITE_PATH", func(v string) { c.Storage.SQLitePath = v }},
		{"DOCDEX_QUEUE_NAME", func(v string) { c.Queue.Name = v }},
		{"DOCDEX_FILTER_SET", func(v string) { c.Filter.SetName = v }},
		{"DOCDEX_REPORT_NAME", func(v string) { c.Filter.ReportName = v }},
		{"DOCDEX_FILTER_SCOPE", func(v string) { c.Filter.Scope = v }},
		{"DOCDEX_LOG_LEVEL", func(v string) { c.Logging.Level = v }},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.envVar); v != "" {
			o.apply(v)
		}
	}
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Server.UserHeader == "" {
		c.Server.UserHeader = "X-Docdex-User"
	}
	if c.Server.ShutdownSec <= 0 {
		c.Server.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = filepath.Join("data", "docdex.db")
	}
	if c.Queue.Name == "" {
		c.Queue.Name = "batches"
	}
	if c.Queue.Concurrency <= 0 {
		c.Queue.Concurrency = 4
	}
	if c.Batch.PageSize <= 0 {
		c.Batch.PageSize = 100
	}
	if c.Batch.MaxHitsPerQuery <= 0 {
		c.Batch.MaxHitsPerQuery = 10000
	}
	if c.Batch.RetryMaxAttempts <= 0 {
		c.Batch.RetryMaxAttempts = 3
	}
	if c.Batch.RetryInitialBackoffMS <= 0 {
		c.Batch.RetryInitialBackoffMS = 200
	}
	if c.Batch.RetryMaxBackoffMS <= 0 {
		c.Batch.RetryMaxBackoffMS = 5000
	}
	if c.Filter.Scope == "" {
		c.Filter.Scope = "batch"
	}
	if c.Filter.SetName == "" {
		c.Filter.SetName = "filter"
	}
	if c.Filter.ReportName == "" {
		c.Filter.ReportName = "report"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.Filter.Scope {
	case "batch", "project":
		// ok
	default:
		return fmt.Errorf("filter.scope must be \"batch\" or \"project\", got %q", c.Filter.Scope)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
