// Package config provides configuration management for the auto-polymarket engine.
package config

import (
	"fmt"
	"time"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	App      AppConfig      `mapstructure:"app" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Gamma    GammaConfig    `mapstructure:"gamma" validate:"required"`
	Scan     ScanConfig     `mapstructure:"scan" validate:"required"`
	Trading  TradingConfig  `mapstructure:"trading" validate:"required"`
	Risk     RiskConfig     `mapstructure:"risk" validate:"required"`
	Backtest BacktestConfig `mapstructure:"backtest" validate:"required"`
	Learning LearningConfig `mapstructure:"learning" validate:"required"`
	Metrics  MetricsConfig  `mapstructure:"metrics" validate:"required"`
	Features FeaturesConfig `mapstructure:"features"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host" validate:"required"`
	Port               int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Name               string `mapstructure:"name" validate:"required"`
	User               string `mapstructure:"user" validate:"required"`
	Password           string `mapstructure:"password" validate:"required"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"required,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"required,gt=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"required,gt=0"`
}

// GammaConfig represents Polymarket API configuration
type GammaConfig struct {
	GammaURL       string  `mapstructure:"gamma_url" validate:"required,url"`
	ClobURL        string  `mapstructure:"clob_url" validate:"required,url"`
	StreamURL      string  `mapstructure:"stream_url" validate:"required"`
	APIKey         string  `mapstructure:"api_key"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" validate:"required,gt=0"`
	RetryAttempts  int     `mapstructure:"retry_attempts" validate:"required,gte=0"`
	RateLimit      float64 `mapstructure:"rate_limit" validate:"required,gt=0"`
	PriceCacheTTL  int     `mapstructure:"price_cache_ttl_seconds" validate:"required,gt=0"`
	TensionURL     string  `mapstructure:"tension_url"`
	WhaleFeedURL   string  `mapstructure:"whale_feed_url"`
}

// ScanConfig controls the candidate-market scan cycle
type ScanConfig struct {
	IntervalSeconds int     `mapstructure:"interval_seconds" validate:"required,gt=0"`
	BatchSize       int     `mapstructure:"batch_size" validate:"required,gt=0,lte=10"`
	BatchDelayMs    int     `mapstructure:"batch_delay_ms" validate:"gte=0"`
	MaxMarkets      int     `mapstructure:"max_markets" validate:"required,gt=0"`
	MinVolume24h    float64 `mapstructure:"min_volume_24h" validate:"gte=0"`
	MinLiquidity    float64 `mapstructure:"min_liquidity" validate:"gte=0"`
}

// TradingConfig represents decision-engine and sizing configuration
type TradingConfig struct {
	KellyFraction       float64 `mapstructure:"kelly_fraction" validate:"required,gt=0,lte=1"`
	MaxPositionPct      float64 `mapstructure:"max_position_pct" validate:"required,gt=0,lte=0.5"`
	MinPositionSize     float64 `mapstructure:"min_position_size" validate:"required,gt=0"`
	SlippageRate        float64 `mapstructure:"slippage_rate" validate:"gte=0,lte=0.1"`
	ArbitrageThreshold  float64 `mapstructure:"arbitrage_threshold" validate:"required,gt=0,lt=1"`
	ArbitrageBudget     float64 `mapstructure:"arbitrage_budget" validate:"required,gt=0"`
	LowVolumeThreshold  float64 `mapstructure:"low_volume_threshold" validate:"gte=0"`
	HighVolumeThreshold float64 `mapstructure:"high_volume_threshold" validate:"gte=0"`
	DepthSlippageBand   float64 `mapstructure:"depth_slippage_band" validate:"required,gt=0,lte=0.1"`
	MaxConcurrent       int     `mapstructure:"max_concurrent_positions" validate:"required,gt=0"`
}

// RiskConfig represents exit-engine configuration
type RiskConfig struct {
	CategoryVolatility map[string]float64 `mapstructure:"category_volatility" validate:"required"`
	TrailingActivation float64            `mapstructure:"trailing_activation" validate:"required,gt=0"`
	TrailingDistance   float64            `mapstructure:"trailing_distance" validate:"required,gt=0"`
	BreakEvenReturn    float64            `mapstructure:"break_even_return" validate:"gte=0"`
	TakeProfit         float64            `mapstructure:"take_profit" validate:"required,gt=0"`
	TimeoutHours       int                `mapstructure:"timeout_hours" validate:"required,gt=0"`
	SpikeLockReturn    float64            `mapstructure:"spike_lock_return" validate:"gte=0"`
	SpikeLockAgeHours  int                `mapstructure:"spike_lock_age_hours" validate:"gte=0"`
	DecayAgeHours      int                `mapstructure:"decay_age_hours" validate:"gte=0"`
	DecayPenalty       float64            `mapstructure:"decay_penalty" validate:"gte=0"`
	DCAMinConviction   float64            `mapstructure:"dca_min_conviction" validate:"gte=0,lte=100"`
	DCATriggerReturn   float64            `mapstructure:"dca_trigger_return" validate:"lte=0"`
	DCAAddFraction     float64            `mapstructure:"dca_add_fraction" validate:"gt=0,lte=1"`
}

// BacktestConfig represents walk-forward backtest configuration
type BacktestConfig struct {
	InitialCapital   float64 `mapstructure:"initial_capital" validate:"required,gt=0"`
	TrainRatio       float64 `mapstructure:"train_ratio" validate:"required,gt=0,lt=1"`
	SlippageRate     float64 `mapstructure:"slippage_rate" validate:"gte=0,lte=0.1"`
	FeeRate          float64 `mapstructure:"fee_rate" validate:"gte=0,lte=0.1"`
	MinPoolSize      int     `mapstructure:"min_pool_size" validate:"required,gt=0"`
	MaxPoolSize      int     `mapstructure:"max_pool_size" validate:"required,gt=0"`
	WinnerSettlement float64 `mapstructure:"winner_settlement" validate:"required,gt=0.5,lte=1"`

	// Overfit gate thresholds; heuristic policy, deliberately configurable
	OverfitTestROI      float64 `mapstructure:"overfit_test_roi"`
	OverfitSharpeRatio  float64 `mapstructure:"overfit_sharpe_ratio" validate:"gt=0,lt=1"`
	OverfitWinRateRatio float64 `mapstructure:"overfit_win_rate_ratio" validate:"gt=0,lt=1"`
}

// LearningConfig represents adaptive controller configuration
type LearningConfig struct {
	RetuneCron        string  `mapstructure:"retune_cron" validate:"required"`
	DrawdownTolerance float64 `mapstructure:"drawdown_tolerance" validate:"required,gt=0"`
	MinStrategyTrades int     `mapstructure:"min_strategy_trades" validate:"required,gt=0"`
	DisableWinRate    float64 `mapstructure:"disable_win_rate" validate:"gte=0,lte=1"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Path    string `mapstructure:"path" validate:"required"`
}

// FeaturesConfig represents feature flags
type FeaturesConfig struct {
	StreamEnabled   bool `mapstructure:"stream_enabled"`
	DCAEnabled      bool `mapstructure:"dca_enabled"`
	SecretsEnabled  bool `mapstructure:"secrets_enabled"`
	AdvancedSignals bool `mapstructure:"advanced_signals"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// VolatilityFor looks up the base stop volatility for a category, falling
// back to the "other" bucket
func (r RiskConfig) VolatilityFor(category models.Category) float64 {
	if v, ok := r.CategoryVolatility[string(category)]; ok {
		return v
	}
	if v, ok := r.CategoryVolatility[string(models.CategoryOther)]; ok {
		return v
	}
	return 0.15
}

// Timeout returns the position timeout horizon
func (r RiskConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutHours) * time.Hour
}

// SpikeLockAge returns the minimum age for the spike-lock exit
func (r RiskConfig) SpikeLockAge() time.Duration {
	return time.Duration(r.SpikeLockAgeHours) * time.Hour
}

// DecayAge returns the age past which the stop is tightened
func (r RiskConfig) DecayAge() time.Duration {
	return time.Duration(r.DecayAgeHours) * time.Hour
}
