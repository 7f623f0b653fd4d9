// Package config provides configuration management for the bracket trading assistant.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"

	apperrors "bracket-trader/internal/errors"
)

// Config holds all application configuration. It is static for the life of
// a session; the core reads it, never writes it.
type Config struct {
	Instrument InstrumentConfig `mapstructure:"instrument"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Bracket    BracketConfig    `mapstructure:"bracket"`
	Feed       FeedConfig       `mapstructure:"feed"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Journal    JournalConfig    `mapstructure:"journal"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// InstrumentConfig holds instrument metadata and the per-instance namespace.
type InstrumentConfig struct {
	Symbol string `mapstructure:"symbol"`
	// TickSize and PointValue may be zero in config; live values arrive
	// through the feed's instrument metadata and are cached once known-good.
	TickSize   float64 `mapstructure:"tick_size"`
	PointValue float64 `mapstructure:"point_value"`
	// TagPrefix namespaces drawing tags and order names so concurrent
	// instances never collide.
	TagPrefix string `mapstructure:"tag_prefix"`
}

// RiskConfig holds risk sizing configuration.
type RiskConfig struct {
	FixedRiskUSD          float64 `mapstructure:"fixed_risk_usd"`
	MaxContracts          int     `mapstructure:"max_contracts"`
	CommissionOn          bool    `mapstructure:"commission_on"`
	CommissionPerContract float64 `mapstructure:"commission_per_contract"`
	MaxRiskWarningUSD     float64 `mapstructure:"max_risk_warning_usd"`
}

// BracketConfig holds default bracket geometry in ticks.
type BracketConfig struct {
	DefaultStopTicks   int `mapstructure:"default_stop_ticks"`
	DefaultTargetTicks int `mapstructure:"default_target_ticks"`
	BreakEvenOffset    int `mapstructure:"break_even_offset_ticks"`
	TrailOffset        int `mapstructure:"trail_offset_ticks"`
}

// FeedConfig holds market feed configuration.
type FeedConfig struct {
	// Mode is "ws" for the websocket feed or "sim" for the simulated feed.
	Mode string `mapstructure:"mode"`
	URL  string `mapstructure:"url"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Console  bool   `mapstructure:"console"`
	File     bool   `mapstructure:"file"`
	FilePath string `mapstructure:"file_path"`
}

// JournalConfig holds the trade journal configuration.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// MetricsConfig holds the Prometheus endpoint configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/bracket-trader"
	}
	return filepath.Join(home, ".config", "bracket-trader")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}
	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConfigInvalid, err)
	}

	return cfg, nil
}

func loadConfigFile(configDir, name string, target interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, create template
			return createTemplateConfig(configDir, name)
		}
		return err
	}

	return v.Unmarshal(target)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("instrument.symbol", "ES")
	v.SetDefault("instrument.tag_prefix", "BT1")
	v.SetDefault("risk.fixed_risk_usd", 200.0)
	v.SetDefault("risk.max_contracts", 10)
	v.SetDefault("risk.commission_on", true)
	v.SetDefault("risk.commission_per_contract", 4.5)
	v.SetDefault("risk.max_risk_warning_usd", 500.0)
	v.SetDefault("bracket.default_stop_ticks", 20)
	v.SetDefault("bracket.default_target_ticks", 40)
	v.SetDefault("bracket.break_even_offset_ticks", 1)
	v.SetDefault("bracket.trail_offset_ticks", 20)
	v.SetDefault("feed.mode", "sim")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
	v.SetDefault("journal.enabled", true)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9187")
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BRACKET_TRADER_FEED_URL"); v != "" {
		cfg.Feed.URL = v
	}
	if v := os.Getenv("BRACKET_TRADER_SYMBOL"); v != "" {
		cfg.Instrument.Symbol = v
	}
	if v := os.Getenv("BRACKET_TRADER_TAG_PREFIX"); v != "" {
		cfg.Instrument.TagPrefix = v
	}
	if v := os.Getenv("BRACKET_TRADER_FIXED_RISK"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Risk.FixedRiskUSD = f
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Risk.FixedRiskUSD <= 0 {
		return apperrors.NewValidationError("fixed_risk_usd", c.Risk.FixedRiskUSD, "must be positive")
	}
	if c.Risk.MaxContracts <= 0 {
		return apperrors.NewValidationError("max_contracts", c.Risk.MaxContracts, "must be positive")
	}
	if c.Risk.CommissionPerContract < 0 {
		return apperrors.NewValidationError("commission_per_contract", c.Risk.CommissionPerContract, "must be non-negative")
	}
	if c.Bracket.DefaultStopTicks <= 0 {
		return apperrors.NewValidationError("default_stop_ticks", c.Bracket.DefaultStopTicks, "must be positive")
	}
	if c.Bracket.DefaultTargetTicks <= 0 {
		return apperrors.NewValidationError("default_target_ticks", c.Bracket.DefaultTargetTicks, "must be positive")
	}
	if c.Bracket.TrailOffset <= 0 {
		return apperrors.NewValidationError("trail_offset_ticks", c.Bracket.TrailOffset, "must be positive")
	}
	if c.Instrument.TagPrefix == "" {
		return apperrors.NewValidationError("tag_prefix", c.Instrument.TagPrefix, "must not be empty")
	}
	if c.Feed.Mode != "" && c.Feed.Mode != "ws" && c.Feed.Mode != "sim" {
		return apperrors.NewValidationError("feed.mode", c.Feed.Mode, "must be 'ws' or 'sim'")
	}
	return nil
}
