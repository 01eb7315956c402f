package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rewired-gh/comparisonsync/internal/config"
	"github.com/rewired-gh/comparisonsync/internal/logger"
	"github.com/rewired-gh/comparisonsync/internal/pipeline"
	"github.com/rewired-gh/comparisonsync/internal/provider"
	"github.com/rewired-gh/comparisonsync/internal/provider/fixture"
	"github.com/rewired-gh/comparisonsync/internal/provider/tcbs"
	"github.com/rewired-gh/comparisonsync/internal/provider/vci"
	"github.com/rewired-gh/comparisonsync/internal/storage"
	"github.com/rewired-gh/comparisonsync/internal/telegram"
)

var configPath = flag.String("config", "", "Path to configuration file (optional)")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()
	if *configPath != "" {
		logger.Info("Configuration loaded from %s", *configPath)
	}

	if err := run(cfg); err != nil {
		logger.Fatal("Comparison sync failed: %v", err)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	screener, quotes, err := newProviders(cfg)
	if err != nil {
		return err
	}

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram client: %w", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	sink, err := storage.Open(ctx, cfg.Database.URI)
	if err != nil {
		notifyFailure(telegramClient, err)
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Error("Failed to close database: %v", err)
		}
	}()
	logger.Debug("Connected to %s database", sink.Dialect())

	p := pipeline.New(screener, quotes, sink, pipeline.Config{
		Filter: provider.Filter{
			Exchanges:    cfg.Screener.Exchanges,
			MarketCapMin: cfg.Screener.MarketCapMin,
			MarketCapMax: cfg.Screener.MarketCapMax,
			Limit:        cfg.Screener.Limit,
			Lang:         cfg.Screener.Lang,
		},
		Namespace: cfg.Database.Namespace,
		Table:     cfg.Database.Table,
	})

	res, err := p.Run(ctx)
	if err != nil {
		notifyFailure(telegramClient, err)
		return err
	}

	if telegramClient != nil {
		if err := telegramClient.SendSummary(res, cfg.Database.Namespace, cfg.Database.Table); err != nil {
			logger.Warn("Failed to send summary to Telegram: %v", err)
		}
	}
	return nil
}

func newProviders(cfg *config.Config) (provider.Screener, provider.QuoteSource, error) {
	switch cfg.Provider.Mode {
	case "fixture":
		p, err := fixture.Load(cfg.Provider.FixturePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load fixture: %w", err)
		}
		logger.Info("Using fixture provider from %s", cfg.Provider.FixturePath)
		return p, p, nil
	default:
		live := provider.Live{
			Screener: tcbs.NewClient(
				tcbs.WithBaseURL(cfg.Screener.BaseURL),
				tcbs.WithTimeout(cfg.HTTP.Timeout),
			),
			QuoteSource: vci.NewClient(
				vci.WithBaseURL(cfg.Quotes.BaseURL),
				vci.WithTimeout(cfg.HTTP.Timeout),
				vci.WithChunkSize(cfg.Quotes.ChunkSize),
			),
		}
		return live, live, nil
	}
}

func notifyFailure(c *telegram.Client, runErr error) {
	if c == nil {
		return
	}
	if err := c.SendError(runErr); err != nil {
		logger.Warn("Failed to send error notification to Telegram: %v", err)
	}
}
