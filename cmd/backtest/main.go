// Package main provides the walk-forward backtest CLI.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/bot"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/config"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/database"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/gamma"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/logger"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/repository"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/risk"
)

var (
	configFile string
	seed       int64
	useSaved   bool
	persist    bool

	appLog *logrus.Logger
	cfg    *config.Config
	db     *database.DB
	repos  *repository.Repositories
	client *gamma.Client
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to configuration file")
	rootCmd.Flags().Int64Var(&seed, "seed", 0, "Sampler seed for reproducible runs (0 = time-based)")
	rootCmd.Flags().BoolVar(&useSaved, "use-saved", false, "Backtest with the persisted learning parameters instead of neutral")
	rootCmd.Flags().BoolVar(&persist, "persist", false, "Persist the report to the backtest_runs table")
}

var rootCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a walk-forward backtest over resolved markets",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadWithDefaults(configFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := config.Validate(cfg); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		appLog = logger.NewLogger(cfg.App.LogLevel)
		return setupDependencies(cmd.Context())
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBacktest(cmd.Context())
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func setupDependencies(ctx context.Context) error {
	var err error
	db, err = database.NewDB(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	repos = repository.NewRepositories(db)

	httpCfg := gamma.DefaultHTTPClientConfig()
	httpCfg.Timeout = time.Duration(cfg.Gamma.TimeoutSeconds) * time.Second
	httpCfg.MaxRetries = cfg.Gamma.RetryAttempts
	httpCfg.RateLimit = cfg.Gamma.RateLimit

	client = gamma.NewClient(gamma.ClientConfig{
		GammaURL:      cfg.Gamma.GammaURL,
		ClobURL:       cfg.Gamma.ClobURL,
		APIKey:        cfg.Gamma.APIKey,
		PriceCacheTTL: time.Duration(cfg.Gamma.PriceCacheTTL) * time.Second,
		HTTP:          httpCfg,
	}, appLog)
	return nil
}

func runBacktest(ctx context.Context) error {
	defer db.Close()
	defer client.Close()

	params := models.NeutralParameters()
	if useSaved {
		saved, err := repos.Learning.LoadParameters(ctx)
		if err != nil {
			return fmt.Errorf("loading saved parameters: %w", err)
		}
		if saved != nil {
			params = saved
			appLog.WithField("mode", params.Mode).Info("Using persisted learning parameters")
		} else {
			appLog.Info("No persisted parameters found, using neutral")
		}
	}

	guard := risk.NewPortfolioGuard(models.NewPortfolio(cfg.Backtest.InitialCapital))
	var results repository.BacktestResultRepository
	if persist {
		results = repos.Backtest
	}

	backtester := bot.NewEngineBacktester(cfg, client, guard, results, appLog)
	if seed != 0 {
		backtester.SetSeed(seed)
	}

	report, err := backtester.Run(ctx, params)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	printReport(report.PoolSize, report.TrainMetrics, report.TestMetrics, report.Gate.Overfit, report.Gate.Reasons)
	return nil
}

func printReport(poolSize int, train, test models.PerformanceMetrics, overfit bool, reasons []string) {
	fmt.Printf("\nWalk-forward backtest over %d resolved markets\n\n", poolSize)
	fmt.Printf("%-22s %12s %12s\n", "", "train", "test")
	fmt.Printf("%-22s %12d %12d\n", "trades", train.SampleSize, test.SampleSize)
	fmt.Printf("%-22s %11.1f%% %11.1f%%\n", "win rate", train.WinRate*100, test.WinRate*100)
	fmt.Printf("%-22s %11.2f%% %11.2f%%\n", "roi", train.ROIPct, test.ROIPct)
	fmt.Printf("%-22s %12.3f %12.3f\n", "sharpe", train.SharpeRatio, test.SharpeRatio)
	fmt.Printf("%-22s %11.2f%% %11.2f%%\n", "max drawdown", train.MaxDrawdownPct, test.MaxDrawdownPct)

	if overfit {
		fmt.Printf("\nOVERFIT: parameters failed out-of-sample validation\n")
		for _, reason := range reasons {
			fmt.Printf("  - %s\n", reason)
		}
	} else {
		fmt.Printf("\nParameters passed out-of-sample validation\n")
	}
}
