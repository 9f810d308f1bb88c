package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/ftcatalog/internal/domain/schema"
	"github.com/kailas-cloud/ftcatalog/internal/domain/settings"
)

// Config holds the catalog daemon configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Commit   CommitConfig   `yaml:"commit"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Query    QueryConfig    `yaml:"query"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
	Schemas  []SchemaConfig `yaml:"schemas"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds admin API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds admin HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	CommandTimeoutMs int      `yaml:"command_timeout_ms"`
}

// CatalogConfig holds provider identity and runtime switches.
type CatalogConfig struct {
	SourceID string `yaml:"source_id"`
	// Structural enables the xpath side index; nil keeps it enabled.
	Structural *bool `yaml:"structural"`
	// NearestDistance is the "nearest" radius in meters; 0 keeps the default.
	NearestDistance float64 `yaml:"nearest_distance_m"`
	// GeometryMaxParts bounds the GEOSHAPE slots per geometry attribute.
	GeometryMaxParts int `yaml:"geometry_max_parts"`
}

// CommitConfig holds visibility settings.
type CommitConfig struct {
	Mode string `yaml:"mode"` // immediate (default), deferred
	// IntervalSec drives auto-commit in deferred mode; 0 disables it.
	IntervalSec int `yaml:"interval_sec"`
	BatchSize   int `yaml:"batch_size"`
}

// IngestConfig holds write settings.
type IngestConfig struct {
	BatchLimit int `yaml:"batch_limit"`
	// RatePerSec throttles write round-trips; 0 disables throttling.
	RatePerSec float64 `yaml:"rate_per_sec"`
	RateBurst  int     `yaml:"rate_burst"`
}

// QueryConfig holds query execution settings.
type QueryConfig struct {
	DefaultPageSize int `yaml:"default_page_size"`
	FetchChunk      int `yaml:"fetch_chunk"`
	TimeoutMs       int `yaml:"timeout_ms"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// SchemaConfig declares one record schema beyond the core one.
type SchemaConfig struct {
	Name       string              `yaml:"name"`
	Attributes []schema.Descriptor `yaml:"attributes"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates configuration bytes.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Catalog.SourceID == "" {
		c.Catalog.SourceID = "ftcatalog"
	}
	if c.Catalog.GeometryMaxParts <= 0 {
		c.Catalog.GeometryMaxParts = 4
	}
	if c.Commit.Mode == "" {
		c.Commit.Mode = "immediate"
	}
	if c.Commit.BatchSize <= 0 {
		c.Commit.BatchSize = 500
	}
	if c.Ingest.BatchLimit <= 0 {
		c.Ingest.BatchLimit = 500
	}
	if c.Query.DefaultPageSize <= 0 {
		c.Query.DefaultPageSize = 10
	}
	if c.Query.FetchChunk <= 0 {
		c.Query.FetchChunk = 1000
	}
	if c.Query.TimeoutMs <= 0 {
		c.Query.TimeoutMs = 30000
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "ftcatalog:"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if _, err := settings.ParseCommitMode(c.Commit.Mode); err != nil {
		return fmt.Errorf("commit.mode: %w", err)
	}
	if c.Commit.IntervalSec < 0 {
		return fmt.Errorf("commit.interval_sec must not be negative, got %d", c.Commit.IntervalSec)
	}
	if c.Ingest.RatePerSec < 0 {
		return fmt.Errorf("ingest.rate_per_sec must not be negative, got %v", c.Ingest.RatePerSec)
	}
	if _, err := c.Registry(); err != nil {
		return fmt.Errorf("schemas: %w", err)
	}
	return nil
}

// Registry builds the schema registry of the core schema plus the configured ones.
func (c *Config) Registry() (*schema.Registry, error) {
	schemas := make([]schema.Schema, 0, len(c.Schemas))
	for _, sc := range c.Schemas {
		s, err := schema.New(sc.Name, sc.Attributes)
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, s)
	}
	return schema.NewRegistry(schemas...)
}

// Settings builds the runtime switches from the configuration. The
// configuration must be valid. An out-of-range nearest distance keeps the
// default and is logged.
func (c *Config) Settings(logger *zap.Logger) *settings.Settings {
	if logger == nil {
		logger = zap.NewNop()
	}
	st := settings.New()
	mode, _ := settings.ParseCommitMode(c.Commit.Mode)
	st.SetCommitMode(mode)
	if c.Catalog.Structural != nil {
		st.SetStructuralIndex(*c.Catalog.Structural)
	}
	if c.Catalog.NearestDistance != 0 && !st.SetNearestDistance(c.Catalog.NearestDistance) {
		logger.Warn("ignoring out-of-range nearest distance",
			zap.Float64("nearest_distance_m", c.Catalog.NearestDistance),
			zap.Float64("default_m", st.NearestDistance()),
		)
	}
	return st
}

// CommitInterval returns the auto-commit period, or zero when disabled.
func (c *Config) CommitInterval() time.Duration {
	return time.Duration(c.Commit.IntervalSec) * time.Second
}

// QueryTimeout returns the default query deadline.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.Query.TimeoutMs) * time.Millisecond
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
