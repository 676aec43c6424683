package bot

import (
	"fmt"
	"os"

	coreconfig "github.com/Edaad/gg-support-bot/core/config"
	"github.com/Edaad/gg-support-bot/core/database"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config aggregates the core bot configuration with the app-level
// database settings.
type Config struct {
	Core     coreconfig.Config `yaml:",inline"`
	Database database.Config   `yaml:"database"`
}

// LoadConfig reads YAML configuration and environment overrides. A
// missing file is tolerated so the bot can run from environment alone.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse YAML config: %w", err)
			}
		case os.IsNotExist(err):
			// env-only run
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, err
	}
	return &cfg, nil
}
