// Package main provides a one-shot adaptive retune CLI.
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
	"github.com/oscardcstudio-cell/auto-polymarket/internal/learning"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/logger"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/repository"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/risk"
)

var (
	configFile string
	dryRun     bool

	appLog *logrus.Logger
	cfg    *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to configuration file")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Run the parameter search without persisting the result")
}

var rootCmd = &cobra.Command{
	Use:   "retune",
	Short: "Run one adaptive parameter retune and print the selected regime",
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
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRetune(cmd.Context())
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func runRetune(ctx context.Context) error {
	db, err := database.NewDB(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()
	repos := repository.NewRepositories(db)

	httpCfg := gamma.DefaultHTTPClientConfig()
	httpCfg.Timeout = time.Duration(cfg.Gamma.TimeoutSeconds) * time.Second
	httpCfg.MaxRetries = cfg.Gamma.RetryAttempts
	httpCfg.RateLimit = cfg.Gamma.RateLimit

	client := gamma.NewClient(gamma.ClientConfig{
		GammaURL:      cfg.Gamma.GammaURL,
		ClobURL:       cfg.Gamma.ClobURL,
		APIKey:        cfg.Gamma.APIKey,
		PriceCacheTTL: time.Duration(cfg.Gamma.PriceCacheTTL) * time.Second,
		HTTP:          httpCfg,
	}, appLog)
	defer client.Close()

	auditLog := logger.NewAuditLogger(appLog)
	guard := risk.NewPortfolioGuard(models.NewPortfolio(cfg.Backtest.InitialCapital))
	backtester := bot.NewEngineBacktester(cfg, client, guard, repos.Backtest, appLog)

	var store learning.Store = repos.Learning
	if dryRun {
		store = discardStore{}
	}
	controller := learning.NewController(cfg.Learning, backtester, store, auditLog, appLog)
	if err := controller.LoadPersisted(ctx); err != nil {
		appLog.WithError(err).Warn("Could not load persisted parameters, starting neutral")
	}

	params, err := controller.Retune(ctx)
	if err != nil {
		return fmt.Errorf("retune failed: %w", err)
	}

	fmt.Printf("\nSelected regime: %s\n", params.Mode)
	fmt.Printf("  size multiplier:       %.2f\n", params.SizeMultiplier)
	fmt.Printf("  confidence multiplier: %.2f\n", params.ConfidenceMultiplier)
	fmt.Printf("  reason:                %s\n", params.Reason)
	if len(params.DisabledStrategies) > 0 {
		fmt.Printf("  disabled strategies:   %v\n", params.DisabledStrategies)
	}
	for category, mult := range params.CategoryMultipliers {
		fmt.Printf("  category %-12s  %.2f\n", category, mult)
	}
	if dryRun {
		fmt.Println("\n(dry run, parameters not persisted)")
	}
	return nil
}

// discardStore satisfies learning.Store for dry runs.
type discardStore struct{}

func (discardStore) SaveParameters(ctx context.Context, params *models.LearningParameters) error {
	return nil
}

func (discardStore) LoadParameters(ctx context.Context) (*models.LearningParameters, error) {
	return nil, nil
}
