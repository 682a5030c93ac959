package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"papertrade/internal/persistence"
	"papertrade/internal/risk"
	"papertrade/internal/sim"
)

// Config is the full runtime configuration. Values come from the YAML config
// file when present, overridden by PAPER_-prefixed environment variables.
type Config struct {
	Desk        DeskConfig              `mapstructure:"desk"`
	Fill        sim.FillConfig          `mapstructure:"fill"`
	Fee         sim.FeeConfig           `mapstructure:"fee"`
	Latency     LatencyConfig           `mapstructure:"latency"`
	Risk        risk.Config             `mapstructure:"risk"`
	Persistence PersistenceConfig       `mapstructure:"persistence"`
	Redis       persistence.RedisConfig `mapstructure:"redis"`
	Metrics     MetricsConfig           `mapstructure:"metrics"`
	Logging     LoggingConfig           `mapstructure:"logging"`
}

type DeskConfig struct {
	// InitialBalances seeds the ledger, asset symbol to amount.
	InitialBalances map[string]float64 `mapstructure:"initial_balances"`

	// EventLogCapacity bounds the in-memory event ring; oldest entries are
	// discarded first.
	EventLogCapacity int `mapstructure:"event_log_capacity"`
}

type LatencyConfig struct {
	// Preset selects a named profile: none, fast, realistic, paper.
	Preset string `mapstructure:"preset"`

	// Explicit values override the preset when any is non-zero.
	BaseMs   int64 `mapstructure:"base_ms"`
	InsertMs int64 `mapstructure:"insert_ms"`
	CancelMs int64 `mapstructure:"cancel_ms"`
}

// Model resolves the effective latency model.
func (c LatencyConfig) Model() sim.LatencyModel {
	if c.BaseMs != 0 || c.InsertMs != 0 || c.CancelMs != 0 {
		return sim.LatencyModel{BaseMs: c.BaseMs, InsertMs: c.InsertMs, CancelMs: c.CancelMs}
	}
	return sim.LatencyPreset(c.Preset)
}

type PersistenceConfig struct {
	SnapshotPath string        `mapstructure:"snapshot_path"`
	JournalPath  string        `mapstructure:"journal_path"`
	SaveInterval time.Duration `mapstructure:"save_interval"`
	UseRedis     bool          `mapstructure:"use_redis"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from configPath (or the default search path when
// empty), applies defaults, and overlays environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("papertrade")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/papertrade")
	}

	v.SetEnvPrefix("PAPER")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No config file; defaults and environment only.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("desk.initial_balances", map[string]float64{"USDT": 10_000})
	v.SetDefault("desk.event_log_capacity", 10_000)

	v.SetDefault("fill.model", "queue")
	v.SetDefault("fill.prob_fill_on_touch", 0.35)
	v.SetDefault("fill.depth_fraction_min", 0.05)
	v.SetDefault("fill.depth_fraction_max", 0.25)
	v.SetDefault("fill.partial_ratio_min", 0.25)
	v.SetDefault("fill.partial_ratio_max", 1.0)
	v.SetDefault("fill.slippage_bps", 1.0)
	v.SetDefault("fill.adverse_bps", 1.5)
	v.SetDefault("fill.extra_slip_prob", 0.05)
	v.SetDefault("fill.max_participation", 0.1)
	v.SetDefault("fill.seed", 1)

	v.SetDefault("fee.model", "makertaker")

	v.SetDefault("latency.preset", "paper")

	v.SetDefault("risk.warn_ratio", 2.0)
	v.SetDefault("risk.critical_ratio", 1.5)
	v.SetDefault("risk.liquidate_ratio", 1.1)
	v.SetDefault("risk.max_drawdown", 0.25)
	v.SetDefault("risk.instrument_notional_cap", 250_000)
	v.SetDefault("risk.net_exposure_cap", 500_000)
	v.SetDefault("risk.reduce_fraction", 0.5)

	v.SetDefault("persistence.snapshot_path", "./data/papertrade.json")
	v.SetDefault("persistence.journal_path", "./data/papertrade.ndjson")
	v.SetDefault("persistence.save_interval", 30*time.Second)
	v.SetDefault("persistence.use_redis", false)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.key", "papertrade:snapshot")
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9091")

	v.SetDefault("logging.level", "info")
}
