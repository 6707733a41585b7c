// Package config loads and persists sift configuration from <home>/config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all sift configuration.
type Config struct {
	// Home is the resolved sift home directory. Not persisted.
	Home string `yaml:"-"`

	// LLM provider configuration
	Provider ProviderConfig `yaml:"provider"`

	// Document router tuning
	Router RouterConfig `yaml:"router"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ProviderConfig configures the LLM provider.
type ProviderConfig struct {
	Name               string `yaml:"name"` // anthropic, openai
	APIKey             string `yaml:"api_key"`
	Model              string `yaml:"model"`
	TranscriptionModel string `yaml:"transcription_model"`
	BaseURL            string `yaml:"base_url"`
	MaxTokens          int    `yaml:"max_tokens"`
	Timeout            string `yaml:"timeout"`
}

// RouterConfig tunes the document-to-phase router.
type RouterConfig struct {
	// KeywordThreshold is the minimum keyword hit ratio for a phase to
	// count as covered by a document.
	KeywordThreshold float64 `yaml:"keyword_threshold"`

	// MinCoveredPhases is how many phases a document must cover before
	// it is treated as multi-phase.
	MinCoveredPhases int `yaml:"min_covered_phases"`

	// MaxAnalysisChars caps how much document text is sent for analysis.
	MaxAnalysisChars int `yaml:"max_analysis_chars"`

	// MaxTokens caps the model's analysis response.
	MaxTokens int `yaml:"max_tokens"`
}

// LoggingConfig configures categorized debug logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Name:               "anthropic",
			Model:              "claude-sonnet-4-20250514",
			TranscriptionModel: "whisper-1",
			MaxTokens:          4096,
			Timeout:            "120s",
		},
		Router: RouterConfig{
			KeywordThreshold: 0.3,
			MinCoveredPhases: 2,
			MaxAnalysisChars: 15000,
			MaxTokens:        4000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultHome returns the sift home directory: $SIFT_HOME if set,
// otherwise ~/.sift.
func DefaultHome() string {
	if dir := os.Getenv("SIFT_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sift"
	}
	return filepath.Join(home, ".sift")
}

// Load loads configuration from <home>/config.yaml. A missing file
// yields defaults so first run needs no setup.
func Load(home string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Home = home

	data, err := os.ReadFile(filepath.Join(home, "config.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Home = home

	cfg.applyEnvOverrides()
	cfg.fillZeroes()

	return cfg, nil
}

// Save saves configuration to <home>/config.yaml.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.Home, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(c.Home, "config.yaml"), data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if name := os.Getenv("SIFT_PROVIDER"); name != "" {
		c.Provider.Name = name
	}
	if model := os.Getenv("SIFT_MODEL"); model != "" {
		c.Provider.Model = model
	}

	// Keys checked in priority order; an explicit provider name wins
	// over key-derived selection.
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && (c.Provider.Name == "anthropic" || c.Provider.APIKey == "") {
		c.Provider.APIKey = key
		if os.Getenv("SIFT_PROVIDER") == "" {
			c.Provider.Name = "anthropic"
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && (c.Provider.Name == "openai" || c.Provider.APIKey == "") {
		c.Provider.APIKey = key
		if os.Getenv("SIFT_PROVIDER") == "" && os.Getenv("ANTHROPIC_API_KEY") == "" {
			c.Provider.Name = "openai"
		}
	}
}

// fillZeroes restores defaults for tunables a partial config left unset.
func (c *Config) fillZeroes() {
	def := DefaultConfig()
	if c.Router.KeywordThreshold == 0 {
		c.Router.KeywordThreshold = def.Router.KeywordThreshold
	}
	if c.Router.MinCoveredPhases == 0 {
		c.Router.MinCoveredPhases = def.Router.MinCoveredPhases
	}
	if c.Router.MaxAnalysisChars == 0 {
		c.Router.MaxAnalysisChars = def.Router.MaxAnalysisChars
	}
	if c.Router.MaxTokens == 0 {
		c.Router.MaxTokens = def.Router.MaxTokens
	}
	if c.Provider.Model == "" {
		c.Provider.Model = def.Provider.Model
	}
	if c.Provider.TranscriptionModel == "" {
		c.Provider.TranscriptionModel = def.Provider.TranscriptionModel
	}
	if c.Provider.MaxTokens == 0 {
		c.Provider.MaxTokens = def.Provider.MaxTokens
	}
	if c.Provider.Timeout == "" {
		c.Provider.Timeout = def.Provider.Timeout
	}
}

// GetProviderTimeout returns the provider timeout as a duration.
func (c *Config) GetProviderTimeout() time.Duration {
	d, err := time.ParseDuration(c.Provider.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{"anthropic", "openai"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validProvider := false
	for _, p := range ValidProviders {
		if c.Provider.Name == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid provider: %s (valid: %v)", c.Provider.Name, ValidProviders)
	}

	if c.Router.KeywordThreshold < 0 || c.Router.KeywordThreshold > 1 {
		return fmt.Errorf("router keyword_threshold must be in [0,1], got %v", c.Router.KeywordThreshold)
	}
	if c.Router.MinCoveredPhases < 1 {
		return fmt.Errorf("router min_covered_phases must be >= 1, got %d", c.Router.MinCoveredPhases)
	}

	return nil
}

// ConfigPath returns the path to the config file.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.Home, "config.yaml")
}

// SessionsDir returns the directory holding all sessions.
func (c *Config) SessionsDir() string {
	return filepath.Join(c.Home, "sessions")
}

// TemplatesDir returns the template library directory.
func (c *Config) TemplatesDir() string {
	return filepath.Join(c.Home, "templates")
}

// HistoryDBPath returns the path to the activity history database.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.Home, "history.db")
}
