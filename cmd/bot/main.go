// Package main provides the entry point for the trading bot.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/bot"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/config"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/database"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/engine"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/gamma"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/health"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/learning"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/logger"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/metrics"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/repository"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/risk"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/signals"
)

func main() {
	configPath := os.Getenv("AUTO_POLY_CONFIG")
	cfg, err := config.LoadWithDefaults(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Features.SecretsEnabled {
		region := os.Getenv("AWS_REGION")
		secretName := os.Getenv("AWS_SECRET_NAME")
		if region == "" || secretName == "" {
			log.Fatalf("AWS_REGION and AWS_SECRET_NAME must be set when secrets are enabled")
		}
		if err := config.LoadSecretsFromAWS(cfg, region, secretName); err != nil {
			log.Fatalf("Failed to load secrets: %v", err)
		}
	}

	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	appLog := logger.NewLogger(cfg.App.LogLevel)
	auditLog := logger.NewAuditLogger(appLog)
	strategyLog := logger.NewStrategyLogger(appLog)

	appLog.WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
		"log_level":   cfg.App.LogLevel,
	}).Info("Auto-Polymarket trading bot starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewDB(ctx, &cfg.Database)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		appLog.WithError(err).Fatal("Failed to apply database schema")
	}
	appLog.Info("Database connection established")

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

	signalClient := gamma.NewSignalClient(gamma.SignalClientConfig{
		TensionURL:   cfg.Gamma.TensionURL,
		WhaleFeedURL: cfg.Gamma.WhaleFeedURL,
		HTTP:         httpCfg,
	}, cfg.Trading.ArbitrageThreshold, appLog)
	defer signalClient.Close()

	pf, err := bot.RecoverPortfolio(ctx, repos.Position, cfg.Backtest.InitialCapital, auditLog)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to recover portfolio")
	}
	guard := risk.NewPortfolioGuard(pf)

	backtester := bot.NewEngineBacktester(cfg, client, guard, repos.Backtest, appLog)
	controller := learning.NewController(cfg.Learning, backtester, repos.Learning, auditLog, appLog)
	if err := controller.LoadPersisted(ctx); err != nil {
		appLog.WithError(err).Warn("Could not load persisted learning parameters, starting neutral")
	}

	advisor := signals.NewAdvisor(cfg.Features.AdvancedSignals)
	decisionEngine := engine.NewEngine(cfg.Trading, client, client, advisor, controller, appLog)
	exitEngine := risk.NewExitEngine(cfg.Risk, client, auditLog, cfg.Features.DCAEnabled, appLog)

	var stream *gamma.StreamClient
	if cfg.Features.StreamEnabled {
		stream = gamma.NewStreamClient(cfg.Gamma.StreamURL, appLog)
	}

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		metricsHandler = metrics.Handler()
	}

	orchestrator := bot.NewOrchestrator(cfg, bot.Components{
		Markets:   client,
		Signals:   signalClient,
		Advisor:   advisor,
		Decider:   decisionEngine,
		Exits:     exitEngine,
		Learning:  controller,
		Guard:     guard,
		Positions: repos.Position,
		Stream:    stream,
		Trades:    client,
		Audit:     auditLog,
		Strategy:  strategyLog,
		Logger:    appLog,
	})

	healthServer := health.NewServer(health.Config{
		ServiceName: cfg.App.Name,
		Port:        fmt.Sprintf("%d", cfg.Metrics.Port),
		Logger:      appLog,
		DB:          db,
		Metrics:     metricsHandler,
		MetricsPath: cfg.Metrics.Path,
		Status: func() health.TradingStatus {
			st := orchestrator.GetStatus()
			return health.TradingStatus{
				Capital:       st.Capital,
				OpenPositions: st.OpenPositions,
				TotalExposure: st.TotalExposure,
				DrawdownPct:   st.Drawdown * 100,
				CircuitState:  string(st.CircuitState),
				Mode:          string(st.Mode),
			}
		},
	})
	if err := healthServer.Start(ctx); err != nil {
		appLog.WithError(err).Fatal("Failed to start health server")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := orchestrator.Start(ctx); err != nil {
		appLog.WithError(err).Fatal("Failed to start orchestrator")
	}
	healthServer.SetReady(true)

	status := orchestrator.GetStatus()
	appLog.WithFields(logrus.Fields{
		"capital":        status.Capital,
		"open_positions": status.OpenPositions,
		"mode":           status.Mode,
		"next_run":       status.NextRun,
	}).Info("Bot is running")

	sig := <-sigChan
	appLog.WithField("signal", sig).Info("Shutdown signal received")

	healthServer.SetReady(false)
	cancel()

	if err := orchestrator.Stop(); err != nil {
		appLog.WithError(err).Error("Error during orchestrator shutdown")
	}

	appLog.Info("Auto-Polymarket trading bot shut down")
}
