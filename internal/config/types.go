// Package config provides configuration loading for ethicsd.
package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration wraps time.Duration for text unmarshaling (YAML, env vars).
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if parsed < 0 {
		return fmt.Errorf("duration cannot be negative: %s", text)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration().String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Secret wraps strings that should be redacted in logs and serialization.
// Use Value() to access the actual secret value.
type Secret string

// String implements fmt.Stringer. Always returns redacted value.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// Value returns the actual secret value. Use sparingly.
func (s Secret) Value() string {
	return string(s)
}

// IsSet returns true if the secret has a non-empty value.
func (s Secret) IsSet() bool {
	return s != ""
}

// MarshalJSON implements json.Marshaler. Always returns redacted value.
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("[REDACTED]")
}

// Config is the root ethicsd configuration.
type Config struct {
	Database   DatabaseConfig   `koanf:"database"`
	Logging    LoggingConfig    `koanf:"logging"`
	Pipeline   PipelineConfig   `koanf:"pipeline"`
	Extraction ExtractionConfig `koanf:"extraction"`
	Synthesis  SynthesisConfig  `koanf:"synthesis"`
	Ontology   OntologyConfig   `koanf:"ontology"`
}

// DatabaseConfig configures the sqlite store.
type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// PipelineConfig configures the step dispatcher.
type PipelineConfig struct {
	// Workers is the size of the dispatcher pool. Each worker processes
	// one task at a time.
	Workers int `koanf:"workers"`
}

// ExtractionConfig configures the LLM extraction client.
type ExtractionConfig struct {
	// Provider selects the extraction backend: "anthropic" or "disabled".
	Provider string `koanf:"provider"`
	Model    string `koanf:"model"`
	APIKey   Secret `koanf:"api_key"`
	BaseURL  string `koanf:"base_url"`

	MaxTokens int `koanf:"max_tokens"`

	// SoftTimeout bounds a single extraction call; hitting it aborts the
	// session gracefully, preserving candidates already written.
	SoftTimeout Duration `koanf:"soft_timeout"`
	// HardTimeout bounds the whole step task; hitting it terminates the task.
	HardTimeout Duration `koanf:"hard_timeout"`

	MaxRetries int     `koanf:"max_retries"`
	RateLimit  float64 `koanf:"rate_limit"` // requests per second
	Burst      int     `koanf:"burst"`
}

// ConflictRule declares that two obligation-type tags cannot both be fully
// satisfied. Tags are matched unordered.
type ConflictRule struct {
	TagA      string `koanf:"tag_a"`
	TagB      string `koanf:"tag_b"`
	Rationale string `koanf:"rationale"`
}

// SynthesisConfig configures decision-point synthesis.
type SynthesisConfig struct {
	// ConflictRules is the obligation-conflict rule table. Empty means use
	// the built-in defaults; entries here replace them entirely.
	ConflictRules []ConflictRule `koanf:"conflict_rules"`
}

// OntologyConfig configures the read-only class catalog client.
type OntologyConfig struct {
	BaseURL string   `koanf:"base_url"`
	Timeout Duration `koanf:"timeout"`
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if _, ok := levelNames[c.Logging.Level]; !ok {
		return fmt.Errorf("logging.level %q is not valid", c.Logging.Level)
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be at least 1, got %d", c.Pipeline.Workers)
	}
	switch c.Extraction.Provider {
	case "anthropic", "disabled":
	default:
		return fmt.Errorf("extraction.provider %q is not supported", c.Extraction.Provider)
	}
	if c.Extraction.Provider == "anthropic" && !c.Extraction.APIKey.IsSet() {
		return fmt.Errorf("extraction.api_key is required for provider anthropic")
	}
	if c.Extraction.SoftTimeout.Duration() > c.Extraction.HardTimeout.Duration() {
		return fmt.Errorf("extraction.soft_timeout (%s) exceeds hard_timeout (%s)",
			c.Extraction.SoftTimeout.Duration(), c.Extraction.HardTimeout.Duration())
	}
	for i, r := range c.Synthesis.ConflictRules {
		if r.TagA == "" || r.TagB == "" {
			return fmt.Errorf("synthesis.conflict_rules[%d]: tag_a and tag_b are required", i)
		}
	}
	return nil
}

var levelNames = map[string]struct{}{
	"debug": {}, "info": {}, "warn": {}, "error": {},
}
