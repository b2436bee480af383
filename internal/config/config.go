package config

// Configuration loading and validation for labcheck

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tturner/labcheck/internal/errors"
	"github.com/tturner/labcheck/internal/logging"
)

const (
	DefaultExpectedWeek   = 11
	DefaultSecretEnv      = "ANTI_AI_SECRET"
	DefaultHashChunkBytes = 1 << 20
	DefaultTTLMinutes     = 7 * 24 * 60
	DefaultHTTPHeaderName = "X-AI-Challenge"
	DefaultDNSSuffix      = "lab.local"
	DefaultParallelism    = 4
	DefaultConfigFile     = "labcheck.yaml"
)

// DefaultBackendHeaders are the response headers counted as backend identity.
var DefaultBackendHeaders = []string{"X-Served-By", "X-Backend-ID"}

// Config is the top-level labcheck configuration
type Config struct {
	ExpectedWeek      int               `yaml:"expected_week"`
	BaseDir           string            `yaml:"base_dir,omitempty"`
	SecretEnv         string            `yaml:"secret_env"`
	HashChunkBytes    int               `yaml:"hash_chunk_bytes"`
	BackendHeaders    []string          `yaml:"backend_headers"`
	ChallengeDefaults ChallengeDefaults `yaml:"challenge_defaults"`
	ArtefactSchemas   []ArtefactSchema  `yaml:"artefact_schemas,omitempty"`
	Logging           LoggingConfig     `yaml:"logging"`
	Batch             BatchConfig       `yaml:"batch"`
}

// ChallengeDefaults seeds `challenge issue` when flags are not given
type ChallengeDefaults struct {
	TTLMinutes          int    `yaml:"ttl_minutes"`
	MinHTTPRequests     int    `yaml:"min_http_requests"`
	MinDistinctBackends int    `yaml:"min_distinct_backends"`
	HTTPHeaderName      string `yaml:"http_header_name"`
	DNSSuffix           string `yaml:"dns_suffix"` // query name is <token>.<suffix>
}

// ArtefactSchema binds a JSON Schema file to artefacts whose path matches Glob
type ArtefactSchema struct {
	Glob   string `yaml:"glob"`
	Schema string `yaml:"schema"`
}

// LoggingConfig controls the logger built by the CLI
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
	File   string `yaml:"file,omitempty"`
}

// BatchConfig controls `labcheck batch`
type BatchConfig struct {
	Parallelism int `yaml:"parallelism"`
}

// CreateDefaultConfig returns a configuration with every default applied
func CreateDefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// WriteDefaultConfig writes a default configuration to a file
func WriteDefaultConfig(path string) error {
	data, err := yaml.Marshal(CreateDefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Load loads a configuration from a YAML file.
// A missing file yields the defaults, or is written out first when autoCreate is set.
func Load(path string, autoCreate bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.WrapConfigError(fmt.Errorf("read config file: %w", err), path)
		}
		if !autoCreate {
			return CreateDefaultConfig(), nil
		}
		if err := WriteDefaultConfig(path); err != nil {
			return nil, errors.WrapConfigError(fmt.Errorf("create default config: %w", err), path)
		}
		return CreateDefaultConfig(), nil
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.WrapConfigError(err, path)
	}
	// Schema paths are relative to the config file.
	dir := filepath.Dir(path)
	for i := range cfg.ArtefactSchemas {
		if s := cfg.ArtefactSchemas[i].Schema; s != "" && !filepath.IsAbs(s) {
			cfg.ArtefactSchemas[i].Schema = filepath.Join(dir, s)
		}
	}
	return cfg, nil
}

// Parse decodes YAML, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ExpectedWeek == 0 {
		cfg.ExpectedWeek = DefaultExpectedWeek
	}
	if cfg.SecretEnv == "" {
		cfg.SecretEnv = DefaultSecretEnv
	}
	if cfg.HashChunkBytes == 0 {
		cfg.HashChunkBytes = DefaultHashChunkBytes
	}
	if len(cfg.BackendHeaders) == 0 {
		cfg.BackendHeaders = append([]string(nil), DefaultBackendHeaders...)
	}
	d := &cfg.ChallengeDefaults
	if d.TTLMinutes == 0 {
		d.TTLMinutes = DefaultTTLMinutes
	}
	if d.HTTPHeaderName == "" {
		d.HTTPHeaderName = DefaultHTTPHeaderName
	}
	if d.DNSSuffix == "" {
		d.DNSSuffix = DefaultDNSSuffix
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Batch.Parallelism == 0 {
		cfg.Batch.Parallelism = DefaultParallelism
	}
}

// Validate checks a configuration after defaults are applied
func Validate(cfg *Config) error {
	if cfg.ExpectedWeek < 1 || cfg.ExpectedWeek > 53 {
		return fmt.Errorf("expected_week must be between 1 and 53, got %d", cfg.ExpectedWeek)
	}
	if cfg.HashChunkBytes < 4096 {
		return fmt.Errorf("hash_chunk_bytes must be at least 4096, got %d", cfg.HashChunkBytes)
	}
	for i, h := range cfg.BackendHeaders {
		if !isHeaderName(h) {
			return fmt.Errorf("backend_headers[%d]: invalid header name %q", i, h)
		}
	}

	d := cfg.ChallengeDefaults
	if d.TTLMinutes < 0 {
		return fmt.Errorf("challenge_defaults.ttl_minutes must be positive, got %d", d.TTLMinutes)
	}
	if d.MinHTTPRequests < 0 || d.MinDistinctBackends < 0 {
		return fmt.Errorf("challenge_defaults minimums must not be negative")
	}
	if !isHeaderName(d.HTTPHeaderName) {
		return fmt.Errorf("challenge_defaults.http_header_name: invalid header name %q", d.HTTPHeaderName)
	}
	if strings.HasPrefix(d.DNSSuffix, ".") || strings.HasSuffix(d.DNSSuffix, ".") {
		return fmt.Errorf("challenge_defaults.dns_suffix must not start or end with a dot: %q", d.DNSSuffix)
	}

	for i, s := range cfg.ArtefactSchemas {
		if s.Glob == "" || s.Schema == "" {
			return fmt.Errorf("artefact_schemas[%d]: glob and schema are required", i)
		}
		if _, err := filepath.Match(s.Glob, ""); err != nil {
			return fmt.Errorf("artefact_schemas[%d]: bad glob %q: %w", i, s.Glob, err)
		}
	}

	if _, err := logging.ParseLogLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be text or json, got %q", cfg.Logging.Format)
	}
	if cfg.Batch.Parallelism < 1 {
		return fmt.Errorf("batch.parallelism must be at least 1, got %d", cfg.Batch.Parallelism)
	}
	return nil
}

// isHeaderName accepts RFC 7230 token characters.
func isHeaderName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("!#$%&'*+-.^_`|~", r):
		default:
			return false
		}
	}
	return true
}

// NewLogger builds the logger described by the logging section. A non-empty
// override level (from --verbose or --log-level) wins over the file.
func (cfg *Config) NewLogger(override string) (*logging.Logger, error) {
	levelName := cfg.Logging.Level
	if override != "" {
		levelName = override
	}
	level, err := logging.ParseLogLevel(levelName)
	if err != nil {
		return nil, err
	}
	return logging.NewLoggerWithOptions(level, cfg.Logging.File, cfg.Logging.Format)
}

// Secret reads the HMAC secret from the configured environment variable.
func (cfg *Config) Secret() []byte {
	if v := os.Getenv(cfg.SecretEnv); v != "" {
		return []byte(v)
	}
	return nil
}
