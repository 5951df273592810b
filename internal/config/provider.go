package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// Config holds the DNS provider type, engine options, and provider-specific
// connection settings.
type Config struct {
	Provider     string            `yaml:"provider"`
	AllowDeletes bool              `yaml:"allow_deletes"`
	Concurrency  int               `yaml:"concurrency"`
	Settings     map[string]string `yaml:"settings"`
}

// Load reads the configuration from the path specified by the
// DNS_PROVIDER_PATH environment variable, defaulting to
// "configs/dns-provider.yaml".
func Load() (*Config, error) {
	path := os.Getenv("DNS_PROVIDER_PATH")
	if path == "" {
		path = "configs/dns-provider.yaml"
	}
	return LoadFromPath(path)
}

// LoadFromPath reads the configuration from the given file path.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading provider config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing provider config file: %w", err)
	}

	if cfg.Provider == "" {
		return nil, fmt.Errorf("provider config: missing required field 'provider'")
	}
	if cfg.Concurrency < 0 {
		return nil, fmt.Errorf("provider config: concurrency must not be negative")
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 4
	}

	// Expand ${ENV_VAR} references in setting values.
	for k, v := range cfg.Settings {
		cfg.Settings[k] = os.ExpandEnv(v)
	}

	return &cfg, nil
}
