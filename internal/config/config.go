// Package config defines all configuration for the trading runtime.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via TRADER_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Engine     EngineConfig     `mapstructure:"engine"`
	Risk       RiskConfig       `mapstructure:"risk"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Store      StoreConfig      `mapstructure:"store"`
	Dashboard  DashboardConfig  `mapstructure:"dashboard"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Venue      VenueConfig      `mapstructure:"venue"`
	Strategies []StrategyConfig `mapstructure:"strategies"`
}

// StrategyConfig is one entry in the compile-time strategy registry to
// instantiate and run at startup. ID must match a factory id registered by
// an internal/strategies init().
type StrategyConfig struct {
	ID         string                 `mapstructure:"id"`
	CustomName string                 `mapstructure:"custom_name"`
	Params     map[string]interface{} `mapstructure:"params"`
}

// EngineConfig tunes the Strategy Engine's dispatch loop.
//
//   - DedupWindow: signals from the same (strategy, ticker, signal type,
//     side) within this window are collapsed into one.
//   - MaxStrategies: registration cap; register rejects beyond it.
//   - MarketDataChannelCapacity: capacity of the engine's outbound signal
//     channel; once it is full, further signals are dropped with a warning.
type EngineConfig struct {
	DedupWindow               time.Duration `mapstructure:"dedup_window"`
	MaxStrategies             int           `mapstructure:"max_strategies"`
	MarketDataChannelCapacity int           `mapstructure:"market_data_channel_capacity"`
}

// RiskConfig sets the Risk Gate's ordered limits and the kill switch.
//
//   - MaxPositionPerTicker: max notional exposure in any single ticker.
//   - MaxGlobalExposure: max notional exposure across all open positions.
//   - MaxOpenPositions: cap on simultaneously open positions.
//   - MaxDailyLossPct: realized daily loss, as a percentage of starting
//     equity, that trips the kill switch.
//   - KillSwitchCooldown: how long the kill switch stays engaged once tripped.
type RiskConfig struct {
	MaxPositionPerTicker float64       `mapstructure:"max_position_per_ticker"`
	MaxGlobalExposure    float64       `mapstructure:"max_global_exposure"`
	MaxOpenPositions     int           `mapstructure:"max_open_positions"`
	MaxDailyLossPct      float64       `mapstructure:"max_daily_loss_pct"`
	KillSwitchCooldown   time.Duration `mapstructure:"kill_switch_cooldown"`
}

// RateLimitConfig selects a ratelimit.Config preset by name ("default",
// "strict") or an explicit rpm/burst pair.
type RateLimitConfig struct {
	Preset            string `mapstructure:"preset"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
	BurstSize         int    `mapstructure:"burst_size"`
	Disabled          bool   `mapstructure:"disabled"`
}

// StoreConfig points at the SQLite database file.
type StoreConfig struct {
	DSN string `mapstructure:"dsn"`
}

// DashboardConfig controls the REST + WebSocket dashboard server.
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// EventBufferSize bounds the WebSocket hub's broadcast queue and each
	// client's outbound queue. <= 0 uses defaultEventBufferSize.
	EventBufferSize int `mapstructure:"event_buffer_size"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SimulationConfig parameterizes the simulated matching engine and the
// equity curve's starting point.
type SimulationConfig struct {
	FeeRate        float64            `mapstructure:"fee_rate"`
	SlippageRate   float64            `mapstructure:"slippage_rate"`
	TickSizes      map[string]float64 `mapstructure:"tick_sizes"`
	InitialCapital float64            `mapstructure:"initial_capital"`
}

// VenueConfig points the restricted-account connector at a live venue. It
// has no API key field, and no env var supplies one, so the connector is
// built without an Authorization header.
type VenueConfig struct {
	Name        string        `mapstructure:"name"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	IsISAccount bool          `mapstructure:"is_isa_account"`
}

// Load reads config from a YAML file with env var overrides.
// Keys present in the file can be overridden with TRADER_-prefixed env vars
// (e.g. TRADER_STORE_DSN). The unprefixed RATE_LIMIT_RPM, RATE_LIMIT_DISABLED
// and DATABASE_URL env vars are also read and take precedence. No encryption
// key is read here.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("TRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if rpm := os.Getenv("RATE_LIMIT_RPM"); rpm != "" {
		fmt.Sscanf(rpm, "%d", &cfg.RateLimit.RequestsPerMinute)
	}
	if os.Getenv("RATE_LIMIT_DISABLED") == "true" || os.Getenv("RATE_LIMIT_DISABLED") == "1" {
		cfg.RateLimit.Disabled = true
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Store.DSN = dsn
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Engine.MaxStrategies <= 0 {
		return fmt.Errorf("engine.max_strategies must be > 0")
	}
	if c.Engine.DedupWindow <= 0 {
		return fmt.Errorf("engine.dedup_window must be > 0")
	}
	if c.Risk.MaxPositionPerTicker <= 0 {
		return fmt.Errorf("risk.max_position_per_ticker must be > 0")
	}
	if c.Risk.MaxGlobalExposure <= 0 {
		return fmt.Errorf("risk.max_global_exposure must be > 0")
	}
	if c.Risk.MaxOpenPositions <= 0 {
		return fmt.Errorf("risk.max_open_positions must be > 0")
	}
	if c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required (set DATABASE_URL or store.dsn)")
	}
	if c.Simulation.InitialCapital <= 0 {
		return fmt.Errorf("simulation.initial_capital must be > 0")
	}
	if !c.RateLimit.Disabled && c.RateLimit.Preset == "" && c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate_limit.preset or rate_limit.requests_per_minute is required unless rate_limit.disabled")
	}
	return nil
}

// RatelimitPreset resolves the preset/explicit pair into a preset name plus
// the requests-per-minute and burst size to build a ratelimit.Config from,
// so cmd/trader doesn't duplicate preset logic.
func (c RateLimitConfig) RatelimitPreset() (name string, requestsPerMinute, burstSize int) {
	switch c.Preset {
	case "strict":
		return "strict", c.RequestsPerMinute, 0
	case "default", "":
		if c.RequestsPerMinute > 0 {
			return "custom", c.RequestsPerMinute, c.BurstSize
		}
		return "default", 1200, 50
	default:
		return "custom", c.RequestsPerMinute, c.BurstSize
	}
}
