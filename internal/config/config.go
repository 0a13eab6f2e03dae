package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sadopc/sqlayout/internal/ddl"
	"github.com/sadopc/sqlayout/internal/resolve"
	"github.com/sadopc/sqlayout/internal/schema"
)

// EnvPrefix prefixes every environment variable that overrides a config
// value, e.g. SQLAYOUT_COMPILE_PRETTY=true.
const EnvPrefix = "SQLAYOUT_"

// Config holds all application configuration.
type Config struct {
	Compile CompileConfig `yaml:"compile"`
	Output  OutputConfig  `yaml:"output"`
	Audit   AuditConfig   `yaml:"audit"`
	History HistoryConfig `yaml:"history"`
}

// CompileConfig holds the default compiler options.
type CompileConfig struct {
	IfNotExists    bool   `yaml:"if_not_exists"`
	Transaction    bool   `yaml:"transaction"`
	Pretty         bool   `yaml:"pretty"`
	StrictChecks   bool   `yaml:"strict_checks"`
	DeferredCycles string `yaml:"deferred_cycles"` // "allow" or "reject"
}

// OutputConfig holds terminal output settings.
type OutputConfig struct {
	Color string `yaml:"color"` // "auto", "always" or "never"
	Theme string `yaml:"theme"`
}

// AuditConfig controls the apply audit log.
type AuditConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path,omitempty"`
	MaxSizeMB int    `yaml:"max_size_mb"`
}

// HistoryConfig controls the build history database.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Compile: CompileConfig{
			DeferredCycles: resolve.AllowDeferredCycles.String(),
		},
		Output: OutputConfig{
			Color: "auto",
			Theme: "default",
		},
		Audit: AuditConfig{
			MaxSizeMB: 10,
		},
		History: HistoryConfig{
			Enabled: true,
		},
	}
}

// ConfigDir returns the sqlayout configuration directory path.
// It uses os.UserConfigDir to locate the base config directory and
// appends "sqlayout" to it, typically resulting in ~/.config/sqlayout/.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config dir: %w", err)
	}
	return filepath.Join(base, "sqlayout"), nil
}

// DefaultPath returns ConfigDir()/config.yaml.
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads a Config from the YAML file at path. If the file does not exist,
// it returns DefaultConfig without error. Unknown keys are errors.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads configuration from the default path
// (ConfigDir()/config.yaml).
func LoadDefault() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// LoadEnv loads a .env file from dir into the process environment, if one
// exists, and then applies SQLAYOUT_* overrides to c. Variables already set
// in the environment win over the .env file.
func (c *Config) LoadEnv(dir string) error {
	envFile := filepath.Join(dir, ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return c.ApplyEnv(os.LookupEnv)
}

// ApplyEnv overrides c with SQLAYOUT_* variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	bools := []struct {
		key string
		dst *bool
	}{
		{"COMPILE_IF_NOT_EXISTS", &c.Compile.IfNotExists},
		{"COMPILE_TRANSACTION", &c.Compile.Transaction},
		{"COMPILE_PRETTY", &c.Compile.Pretty},
		{"COMPILE_STRICT_CHECKS", &c.Compile.StrictChecks},
		{"AUDIT_ENABLED", &c.Audit.Enabled},
		{"HISTORY_ENABLED", &c.History.Enabled},
	}
	for _, b := range bools {
		v, ok := lookup(EnvPrefix + b.key)
		if !ok {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, b.key, err)
		}
		*b.dst = parsed
	}

	strs := []struct {
		key string
		dst *string
	}{
		{"COMPILE_DEFERRED_CYCLES", &c.Compile.DeferredCycles},
		{"OUTPUT_COLOR", &c.Output.Color},
		{"OUTPUT_THEME", &c.Output.Theme},
		{"AUDIT_PATH", &c.Audit.Path},
		{"HISTORY_PATH", &c.History.Path},
	}
	for _, s := range strs {
		if v, ok := lookup(EnvPrefix + s.key); ok {
			*s.dst = v
		}
	}

	if v, ok := lookup(EnvPrefix + "AUDIT_MAX_SIZE_MB"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sAUDIT_MAX_SIZE_MB: %w", EnvPrefix, err)
		}
		c.Audit.MaxSizeMB = n
	}
	return c.Check()
}

// Check reports values that are well-formed YAML but not meaningful.
func (c *Config) Check() error {
	if _, err := resolve.ParseDeferredCycles(c.Compile.DeferredCycles); err != nil {
		return fmt.Errorf("config compile.deferred_cycles: %w", err)
	}
	switch c.Output.Color {
	case "", "auto", "always", "never":
	default:
		return fmt.Errorf("config output.color: unknown mode %q", c.Output.Color)
	}
	if c.Audit.MaxSizeMB < 0 {
		return fmt.Errorf("config audit.max_size_mb: must not be negative, got %d", c.Audit.MaxSizeMB)
	}
	return nil
}

// CompileOptions turns the compile section into compiler options.
func (c *Config) CompileOptions() []ddl.Option {
	var opts []ddl.Option
	if c.Compile.IfNotExists {
		opts = append(opts, ddl.WithIfNotExists())
	}
	if c.Compile.Transaction {
		opts = append(opts, ddl.WithTransaction())
	}
	if c.Compile.Pretty {
		opts = append(opts, ddl.WithPretty())
	}
	if c.Compile.StrictChecks {
		opts = append(opts, ddl.WithValidateOptions(schema.WithStrictChecks()))
	}
	// Check has already rejected unknown policies.
	policy, _ := resolve.ParseDeferredCycles(c.Compile.DeferredCycles)
	return append(opts, ddl.WithResolveOptions(resolve.WithDeferredCycles(policy)))
}

// AuditPath returns the configured audit log path, defaulting to
// ConfigDir()/audit.jsonl.
func (c *Config) AuditPath() (string, error) {
	return c.pathOr(c.Audit.Path, "audit.jsonl")
}

// HistoryPath returns the configured history database path, defaulting to
// ConfigDir()/history.db.
func (c *Config) HistoryPath() (string, error) {
	return c.pathOr(c.History.Path, "history.db")
}

func (c *Config) pathOr(path, name string) (string, error) {
	if path != "" {
		return path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// Save writes the Config to the YAML file at path, creating any necessary
// parent directories.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SaveDefault writes the Config to the default path
// (ConfigDir()/config.yaml).
func (c *Config) SaveDefault() error {
	path, err := DefaultPath()
	if err != nil {
		return err
	}
	return c.Save(path)
}
