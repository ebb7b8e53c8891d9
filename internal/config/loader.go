// Package config provides configuration management for the auto-polymarket engine.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load reads and parses the configuration from file and environment variables.
// It expands environment variable placeholders in the YAML file (${VAR_NAME}).
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the configuration (${VAR} syntax)
	expanded := os.ExpandEnv(string(data))

	v := viper.New()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(bytes.NewBuffer([]byte(expanded))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	v.SetEnvPrefix("AUTO_POLY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithDefaults loads configuration with default values for optional fields.
// Missing config files are tolerated; defaults and environment variables apply.
func LoadWithDefaults(configPath string) (*Config, error) {
	v := viper.New()

	if configPath == "" {
		configPath = "config/config.yaml"
	}

	v.SetConfigType("yaml")
	v.SetEnvPrefix("AUTO_POLY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if data, err := os.ReadFile(configPath); err == nil {
		expanded := os.ExpandEnv(string(data))
		if err := v.ReadConfig(bytes.NewBuffer([]byte(expanded))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "auto-polymarket")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("gamma.gamma_url", "https://gamma-api.polymarket.com")
	v.SetDefault("gamma.clob_url", "https://clob.polymarket.com")
	v.SetDefault("gamma.stream_url", "ws-subscriptions-clob.polymarket.com")
	v.SetDefault("gamma.timeout_seconds", 15)
	v.SetDefault("gamma.retry_attempts", 3)
	v.SetDefault("gamma.rate_limit", 5.0)
	v.SetDefault("gamma.price_cache_ttl_seconds", 60)

	v.SetDefault("scan.interval_seconds", 300)
	v.SetDefault("scan.batch_size", 8)
	v.SetDefault("scan.batch_delay_ms", 500)
	v.SetDefault("scan.max_markets", 120)
	v.SetDefault("scan.min_volume_24h", 1000)
	v.SetDefault("scan.min_liquidity", 500)

	v.SetDefault("trading.kelly_fraction", 0.25)
	v.SetDefault("trading.max_position_pct", 0.15)
	v.SetDefault("trading.min_position_size", 5.0)
	v.SetDefault("trading.slippage_rate", 0.01)
	v.SetDefault("trading.arbitrage_threshold", 0.995)
	v.SetDefault("trading.arbitrage_budget", 100.0)
	v.SetDefault("trading.low_volume_threshold", 5000)
	v.SetDefault("trading.high_volume_threshold", 10000)
	v.SetDefault("trading.depth_slippage_band", 0.02)
	v.SetDefault("trading.max_concurrent_positions", 15)

	v.SetDefault("risk.category_volatility", map[string]float64{
		"geopolitical": 0.20,
		"economic":     0.15,
		"political":    0.18,
		"tech":         0.15,
		"sports":       0.10,
		"other":        0.15,
	})
	v.SetDefault("risk.trailing_activation", 0.10)
	v.SetDefault("risk.trailing_distance", 0.05)
	v.SetDefault("risk.break_even_return", 0.10)
	v.SetDefault("risk.take_profit", 0.30)
	v.SetDefault("risk.timeout_hours", 168)
	v.SetDefault("risk.spike_lock_return", 0.08)
	v.SetDefault("risk.spike_lock_age_hours", 24)
	v.SetDefault("risk.decay_age_hours", 96)
	v.SetDefault("risk.decay_penalty", 0.05)
	v.SetDefault("risk.dca_min_conviction", 60)
	v.SetDefault("risk.dca_trigger_return", -0.03)
	v.SetDefault("risk.dca_add_fraction", 0.5)

	v.SetDefault("backtest.initial_capital", 1000.0)
	v.SetDefault("backtest.train_ratio", 0.7)
	v.SetDefault("backtest.slippage_rate", 0.015)
	v.SetDefault("backtest.fee_rate", 0.02)
	v.SetDefault("backtest.min_pool_size", 30)
	v.SetDefault("backtest.max_pool_size", 500)
	v.SetDefault("backtest.winner_settlement", 0.95)
	v.SetDefault("backtest.overfit_test_roi", -10.0)
	v.SetDefault("backtest.overfit_sharpe_ratio", 0.3)
	v.SetDefault("backtest.overfit_win_rate_ratio", 0.6)

	v.SetDefault("learning.retune_cron", "0 */6 * * *")
	v.SetDefault("learning.drawdown_tolerance", 0.5)
	v.SetDefault("learning.min_strategy_trades", 5)
	v.SetDefault("learning.disable_win_rate", 0.30)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("features.stream_enabled", false)
	v.SetDefault("features.dca_enabled", true)
	v.SetDefault("features.advanced_signals", true)
}
