// Package config loads actionmesh configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/actionmesh/logging"
	"github.com/hupe1980/actionmesh/runner"
)

// Config holds all actionmesh configuration.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Sandbox SandboxConfig `yaml:"sandbox"`
	Runner  RunnerConfig  `yaml:"runner"`
	Journal JournalConfig `yaml:"journal"`
	Model   ModelConfig   `yaml:"model"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// SandboxConfig configures the local sandbox.
type SandboxConfig struct {
	Root      string            `yaml:"root"`
	Shell     string            `yaml:"shell"`
	ShellArgs []string          `yaml:"shell_args"`
	Env       map[string]string `yaml:"env"`
}

// RunnerConfig configures action execution.
type RunnerConfig struct {
	GracePeriod    string   `yaml:"grace_period"`
	LongRunning    []string `yaml:"long_running"`
	IsolatedQueues bool     `yaml:"isolated_queues"`
}

// JournalConfig selects the execution journal.
type JournalConfig struct {
	Driver       string `yaml:"driver"` // memory, sqlite, none
	DSN          string `yaml:"dsn"`
	ChatID       string `yaml:"chat_id"`
	SkipExecuted bool   `yaml:"skip_executed"`
}

// ModelConfig configures the model used by the generate command.
type ModelConfig struct {
	Provider    string  `yaml:"provider"` // anthropic, openai, mock
	Name        string  `yaml:"name"`
	MaxTokens   int64   `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	APIKey      string  `yaml:"api_key,omitempty"`
}

// Journal drivers.
const (
	JournalMemory = "memory"
	JournalSQLite = "sqlite"
	JournalNone   = "none"
)

// ValidProviders lists all supported model providers.
var ValidProviders = []string{"anthropic", "openai", "mock"}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Sandbox: SandboxConfig{
			Root:      ".",
			Shell:     "sh",
			ShellArgs: []string{"-c"},
			Env:       map[string]string{"npm_config_yes": "true"},
		},
		Runner: RunnerConfig{
			GracePeriod: "2s",
			LongRunning: slices.Clone(runner.DefaultLongRunningPatterns),
		},
		Journal: JournalConfig{
			Driver: JournalMemory,
			DSN:    "actionmesh.db",
		},
		Model: ModelConfig{
			Provider:    "anthropic",
			MaxTokens:   8192,
			Temperature: 0,
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.ApplyEnv()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// ApplyEnv applies environment variable overrides.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("ACTIONMESH_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("ACTIONMESH_SANDBOX_ROOT"); v != "" {
		c.Sandbox.Root = v
	}
	if v := os.Getenv("ACTIONMESH_JOURNAL_DSN"); v != "" {
		c.Journal.DSN = v
	}
	if c.Model.APIKey != "" {
		return
	}
	switch c.Model.Provider {
	case "anthropic":
		c.Model.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	case "openai":
		c.Model.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		return fmt.Errorf("invalid log format: %s (valid: text, json)", c.Log.Format)
	}
	if c.Sandbox.Shell == "" {
		return fmt.Errorf("sandbox shell not configured")
	}
	if _, err := c.Runner.Grace(); err != nil {
		return err
	}
	switch c.Journal.Driver {
	case JournalMemory, JournalNone:
	case JournalSQLite:
		if c.Journal.DSN == "" {
			return fmt.Errorf("journal dsn required for driver %s", JournalSQLite)
		}
	default:
		return fmt.Errorf("invalid journal driver: %s (valid: memory, sqlite, none)", c.Journal.Driver)
	}
	if !slices.Contains(ValidProviders, c.Model.Provider) {
		return fmt.Errorf("invalid model provider: %s (valid: %v)", c.Model.Provider, ValidProviders)
	}
	return nil
}

// Grace returns the parsed grace period.
func (r RunnerConfig) Grace() (time.Duration, error) {
	if r.GracePeriod == "" {
		return 2 * time.Second, nil
	}
	d, err := time.ParseDuration(r.GracePeriod)
	if err != nil {
		return 0, fmt.Errorf("invalid grace period %q: %w", r.GracePeriod, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("grace period must not be negative: %s", r.GracePeriod)
	}
	return d, nil
}

// Patterns returns the long-running patterns for runner.Options. A nil list
// selects the runner defaults.
func (r RunnerConfig) Patterns() []string {
	if r.LongRunning == nil {
		return nil
	}
	return slices.Clone(r.LongRunning)
}

// RunnerOptions applies the sandbox and runner settings to runner options.
func (c *Config) RunnerOptions(o *runner.Options) {
	if c.Sandbox.Shell != "" {
		o.Shell = c.Sandbox.Shell
	}
	if c.Sandbox.ShellArgs != nil {
		o.ShellArgs = slices.Clone(c.Sandbox.ShellArgs)
	}
	if c.Sandbox.Env != nil {
		env := make(map[string]string, len(c.Sandbox.Env))
		for k, v := range c.Sandbox.Env {
			env[k] = v
		}
		o.Env = env
	}
	if d, err := c.Runner.Grace(); err == nil {
		o.GracePeriod = d
	}
	o.LongRunningPatterns = c.Runner.Patterns()
}
