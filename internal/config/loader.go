package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// defaultYAML holds the built-in defaults, loaded before any file or
// environment override.
const defaultYAML = `
database:
  path: ethicsd.db
logging:
  level: info
  format: json
pipeline:
  workers: 4
extraction:
  provider: disabled
  model: claude-3-5-sonnet-20241022
  base_url: https://api.anthropic.com
  max_tokens: 2048
  soft_timeout: 60s
  hard_timeout: 5m
  max_retries: 3
  rate_limit: 0.83
  burst: 5
ontology:
  timeout: 10s
`

// Load loads configuration with precedence (highest to lowest):
//
//  1. Environment variables (ETHICSD_DATABASE_PATH, ETHICSD_EXTRACTION_API_KEY, ...)
//  2. YAML config file, if configPath is non-empty and the file exists
//  3. Built-in defaults
//
// Environment variables are uppercased with underscore separators; the first
// underscore after the prefix splits section from field:
//
//	ETHICSD_DATABASE_PATH       -> database.path
//	ETHICSD_EXTRACTION_API_KEY  -> extraction.api_key
//	ETHICSD_LOGGING_LEVEL       -> logging.level
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider([]byte(defaultYAML)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			content, err := readConfigFile(configPath)
			if err != nil {
				return nil, err
			}
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.Provider("ETHICSD_", ".", func(s string) string {
		// ETHICSD_EXTRACTION_API_KEY -> extraction.api_key: split on the
		// first underscore only, keep underscores inside the field name.
		trimmed := strings.ToLower(strings.TrimPrefix(s, "ETHICSD_"))
		parts := strings.SplitN(trimmed, "_", 2)
		if len(parts) == 1 {
			return trimmed
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// readConfigFile opens and reads a config file, enforcing the size limit
// against resource exhaustion.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}
