package app

import (
	"github.com/jobhunter/server/internal/infra/config"
)

// LoadConfig loads and validates application configuration.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
