package config

import "time"

// DefaultBuilders returns the compiled-in builder catalog.
func DefaultBuilders() []BuilderConfig {
	return []BuilderConfig{
		{
			Name:        "Titan",
			Kind:        "titan",
			Endpoint:    "https://rpc.titanbuilder.xyz",
			MarketShare: 0.50,
			Active:      true,
			Aliases:     []string{"titanbuilder"},
		},
		{
			Name:        "BuilderNet",
			Kind:        "buildernet",
			Endpoint:    "https://relay.flashbots.net",
			MarketShare: 0.30,
			Active:      true,
			Aliases:     []string{"flashbots"},
		},
		{
			Name:        "Quasar",
			Kind:        "quasar",
			Endpoint:    "https://rpc.quasar.win",
			MarketShare: 0.16,
			Active:      true,
		},
		{
			Name:        "Rsync",
			Kind:        "rsync",
			Endpoint:    "https://rsync-builder.xyz",
			MarketShare: 0.10,
			Active:      true,
			Aliases:     []string{"rsync-builder"},
		},
		{
			Name:        "beaverbuild",
			Kind:        "generic",
			Endpoint:    "https://rpc.beaverbuild.org",
			MarketShare: 0.12,
			Active:      false,
			Aliases:     []string{"beaver"},
		},
	}
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		ChainID:  1,
		Manager: ManagerConfig{
			TopN:          4,
			EnableLogging: true,
			HealthTimeout: 5 * time.Second,
			SubmitTimeout: 10 * time.Second,
			SubmitRetries: 0,
		},
		Builders: DefaultBuilders(),
		MarketShare: MarketShareConfig{
			Timeout: 5 * time.Second,
		},
		API: APIConfig{
			Host:       "127.0.0.1",
			Port:       8080,
			UserHeader: "Cf-Access-Authenticated-User-Email",
			TokenKey:   "",
		},
	}
}
