package config

import "go.uber.org/fx"

// NewProvider supplies *Config to the fx graph. A nil customConfig is loaded from the
// environment, and a load or validation failure aborts application start.
func NewProvider(customConfig *Config) fx.Option {
	if customConfig != nil {
		return fx.Supply(customConfig)
	}

	return fx.Provide(func() (*Config, error) {
		cfg := &Config{}
		if err := LoadConfig(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	})
}
