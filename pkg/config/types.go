// Package config handles configuration loading and validation for bundloor.
package config

import "time"

// Config represents the complete configuration for the bundloor application.
type Config struct {
	LogLevel    string            `yaml:"log_level" json:"log_level"`
	ELRPC       string            `yaml:"el_rpc" json:"el_rpc,omitempty"`             // Optional: target block and chain ID lookup
	SearcherKey string            `yaml:"searcher_key" json:"searcher_key,omitempty"` // Optional: signs requests and validation txs
	ChainID     uint64            `yaml:"chain_id" json:"chain_id"`                   // Used when no EL RPC is configured
	Manager     ManagerConfig     `yaml:"manager" json:"manager"`
	Builders    []BuilderConfig   `yaml:"builders" json:"builders"`
	MarketShare MarketShareConfig `yaml:"marketshare" json:"marketshare"`
	API         APIConfig         `yaml:"api" json:"api"`
}

// ManagerConfig controls builder selection and timeouts.
type ManagerConfig struct {
	TopN          int           `yaml:"top_n" json:"top_n"`
	EnableLogging bool          `yaml:"enable_logging" json:"enable_logging"`
	HealthTimeout time.Duration `yaml:"health_timeout" json:"health_timeout"`
	SubmitTimeout time.Duration `yaml:"submit_timeout" json:"submit_timeout"`
	SubmitRetries int           `yaml:"submit_retries" json:"submit_retries"` // 0 = single attempt
}

// BuilderConfig is one builder catalog entry. Kind is one of titan,
// buildernet, quasar, rsync or generic.
type BuilderConfig struct {
	Name        string   `yaml:"name" json:"name"`
	Kind        string   `yaml:"kind" json:"kind"`
	Endpoint    string   `yaml:"endpoint" json:"endpoint"`
	HealthURL   string   `yaml:"health_url" json:"health_url,omitempty"`
	MarketShare float64  `yaml:"market_share" json:"market_share"`
	Active      bool     `yaml:"active" json:"active"`
	Aliases     []string `yaml:"aliases" json:"aliases,omitempty"`
	RateLimit   float64  `yaml:"rate_limit" json:"rate_limit"`     // req/s, 0 = unlimited
	Method      string   `yaml:"method" json:"method,omitempty"` // generic only: eth_sendBundle or mev_sendBundle
}

// MarketShareConfig enables live share refresh. Disabled when URL is empty.
type MarketShareConfig struct {
	URL     string        `yaml:"url" json:"url,omitempty"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// APIConfig configures the HTTP API of the serve command.
type APIConfig struct {
	Host       string `yaml:"host" json:"host"`
	Port       int    `yaml:"port" json:"port"`
	UserHeader string `yaml:"user_header" json:"user_header"` // Optional: header to use for authentication
	TokenKey   string `yaml:"token_key" json:"token_key"`     // Optional: key to use for API token authentication
}
