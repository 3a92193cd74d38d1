package config

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/bundloor/pkg/manager"
	"github.com/ethpandaops/bundloor/pkg/registry"
)

// Loader handles configuration loading from files and flags.
type Loader struct {
	log logrus.FieldLogger
}

// NewLoader creates a new configuration loader.
func NewLoader(log logrus.FieldLogger) *Loader {
	return &Loader{
		log: log.WithField("component", "config"),
	}
}

// LoadConfig loads configuration from a YAML file on top of the defaults.
// A builders list in the file replaces the default catalog.
func (l *Loader) LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	l.log.WithFields(logrus.Fields{
		"path":     path,
		"builders": len(cfg.Builders),
	}).Debug("Loaded config file")

	return cfg, nil
}

// LoadConfigFromFlags applies every flag or env value that was explicitly set
// onto a copy of base. A nil base starts from the defaults.
func (l *Loader) LoadConfigFromFlags(v *viper.Viper, base *Config) (*Config, error) {
	cfg := DefaultConfig()
	if base != nil {
		copied := *base
		copied.Builders = append([]BuilderConfig(nil), base.Builders...)
		cfg = &copied
	}

	if v.IsSet("log-level") {
		cfg.LogLevel = v.GetString("log-level")
	}

	if v.IsSet("el-rpc") {
		cfg.ELRPC = v.GetString("el-rpc")
	}

	if v.IsSet("searcher-key") {
		cfg.SearcherKey = v.GetString("searcher-key")
	}

	if v.IsSet("chain-id") {
		cfg.ChainID = v.GetUint64("chain-id")
	}

	// Manager settings
	if v.IsSet("top-n") {
		cfg.Manager.TopN = v.GetInt("top-n")
	}

	if v.IsSet("enable-logging") {
		cfg.Manager.EnableLogging = v.GetBool("enable-logging")
	}

	if v.IsSet("health-timeout") {
		cfg.Manager.HealthTimeout = v.GetDuration("health-timeout")
	}

	if v.IsSet("submit-timeout") {
		cfg.Manager.SubmitTimeout = v.GetDuration("submit-timeout")
	}

	if v.IsSet("submit-retries") {
		cfg.Manager.SubmitRetries = v.GetInt("submit-retries")
	}

	if v.IsSet("marketshare-url") {
		cfg.MarketShare.URL = v.GetString("marketshare-url")
	}

	// API settings
	if v.IsSet("api-host") {
		cfg.API.Host = v.GetString("api-host")
	}

	if v.IsSet("api-port") {
		cfg.API.Port = v.GetInt("api-port")
	}

	if v.IsSet("api-user-header") {
		cfg.API.UserHeader = v.GetString("api-user-header")
	}

	if v.IsSet("api-token-key") {
		cfg.API.TokenKey = v.GetString("api-token-key")
	}

	return cfg, nil
}

// ValidateConfig validates the configuration for consistency and completeness.
func ValidateConfig(cfg *Config) error {
	// Searcher key validation (32 bytes hex)
	if cfg.SearcherKey != "" {
		privkey := strings.TrimPrefix(cfg.SearcherKey, "0x")
		decoded, err := hex.DecodeString(privkey)

		if err != nil {
			return fmt.Errorf("searcher_key: invalid hex encoding: %w", err)
		}

		if len(decoded) != 32 {
			return fmt.Errorf("searcher_key: must be 32 bytes, got %d", len(decoded))
		}
	}

	if cfg.ELRPC != "" {
		if _, err := url.Parse(cfg.ELRPC); err != nil {
			return fmt.Errorf("el_rpc: invalid URL: %w", err)
		}
	}

	if cfg.ELRPC == "" && cfg.ChainID == 0 {
		return fmt.Errorf("chain_id is required when el_rpc is not set")
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	// Manager validation
	if cfg.Manager.TopN < 1 {
		return fmt.Errorf("manager.top_n must be >= 1")
	}

	if cfg.Manager.HealthTimeout <= 0 {
		return fmt.Errorf("manager.health_timeout must be > 0")
	}

	if cfg.Manager.SubmitTimeout <= 0 {
		return fmt.Errorf("manager.submit_timeout must be > 0")
	}

	if cfg.Manager.SubmitRetries < 0 {
		return fmt.Errorf("manager.submit_retries must be >= 0")
	}

	// Builder catalog validation
	if len(cfg.Builders) == 0 {
		return fmt.Errorf("builders: catalog is empty")
	}

	active := 0

	for i, b := range cfg.Builders {
		if b.RateLimit < 0 {
			return fmt.Errorf("builders[%d].rate_limit must be >= 0", i)
		}

		if b.Method != "" && registry.Kind(b.Kind) != registry.KindGeneric {
			return fmt.Errorf("builders[%d].method is only supported for generic builders", i)
		}

		if b.Active {
			active++
		}
	}

	if active == 0 {
		return fmt.Errorf("builders: no active builder configured")
	}

	if _, err := cfg.Registry(); err != nil {
		return fmt.Errorf("builders: %w", err)
	}

	// Market share refresh
	if cfg.MarketShare.URL != "" {
		u, err := url.Parse(cfg.MarketShare.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("marketshare.url: invalid URL %q", cfg.MarketShare.URL)
		}
	}

	if cfg.API.Port < 0 || cfg.API.Port > 65535 {
		return fmt.Errorf("api.port: out of range")
	}

	return nil
}

// Registry builds the builder registry from the configured catalog.
func (c *Config) Registry() (*registry.Registry, error) {
	entries := make([]registry.Builder, 0, len(c.Builders))

	for _, b := range c.Builders {
		kind, err := registry.ParseKind(b.Kind)
		if err != nil {
			return nil, fmt.Errorf("builder %s: %w", b.Name, err)
		}

		entries = append(entries, registry.Builder{
			Name:        b.Name,
			Kind:        kind,
			Endpoint:    b.Endpoint,
			HealthURL:   b.HealthURL,
			MarketShare: b.MarketShare,
			Active:      b.Active,
			Aliases:     b.Aliases,
		})
	}

	return registry.New(entries)
}

// Builder returns the catalog entry with the given name.
func (c *Config) Builder(name string) (BuilderConfig, bool) {
	for _, b := range c.Builders {
		if strings.EqualFold(b.Name, name) {
			return b, true
		}
	}

	return BuilderConfig{}, false
}

// ManagerConfig converts the manager section into the manager's config.
func (c *Config) ManagerConfig() manager.Config {
	return manager.Config{
		TopN:          c.Manager.TopN,
		EnableLogging: c.Manager.EnableLogging,
		HealthTimeout: c.Manager.HealthTimeout,
		SubmitTimeout: c.Manager.SubmitTimeout,
		SubmitRetries: c.Manager.SubmitRetries,
	}
}
