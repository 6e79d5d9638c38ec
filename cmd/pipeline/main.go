package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/KevanReatha/flight-price-tracker/configs"
	"github.com/KevanReatha/flight-price-tracker/internal/breaker"
	"github.com/KevanReatha/flight-price-tracker/internal/collector"
	"github.com/KevanReatha/flight-price-tracker/internal/models"
	"github.com/KevanReatha/flight-price-tracker/internal/notifier"
	"github.com/KevanReatha/flight-price-tracker/internal/pipeline"
	"github.com/KevanReatha/flight-price-tracker/internal/provider"
	"github.com/KevanReatha/flight-price-tracker/internal/transform"
	"github.com/KevanReatha/flight-price-tracker/internal/warehouse"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := configs.AppLoad()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Provider.APIKey == "" {
		logger.Warn("TEQUILA_API_KEY not set - every cell will be skipped")
	}

	// The provider client is shared across runs so its rate limiter keeps
	// bounding outbound requests in scheduled mode.
	client := provider.NewClient(cfg.Provider, logger)

	newWriter := func(ctx context.Context) (pipeline.Writer, error) {
		return warehouse.New(ctx, cfg.Warehouse.DSN, logger)
	}
	newCollector := func(routes []models.Route) pipeline.Collector {
		return collector.New(client, routes, collector.Config{
			HorizonDays: cfg.HorizonDays,
			Source:      cfg.SourceName,
			CaptureRaw:  cfg.StoreRaw,
		}, logger)
	}

	run := pipeline.New(
		newWriter,
		newCollector,
		breaker.NewFileStore(cfg.BreakerPath),
		transform.NewDBT(cfg.Transform, logger),
		warehouse.NewClassifier(cfg.Warehouse.TransientSQLStates),
		pipeline.Config{
			StaticRoutes: cfg.StaticRoutes(),
			RetryDelays:  cfg.Ingest.RetryDelays,
		},
		logger,
	)

	tg := notifier.NewTelegram(cfg.Notifier.BotToken, cfg.Notifier.ChatID, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runOnce := func() pipeline.Report {
		report := run.Run(ctx)
		logger.WithFields(logrus.Fields{
			"outcome":  report.Outcome.String(),
			"quotes":   report.QuotesWritten,
			"attempts": report.Attempts,
		}).Info(report.Summary())
		tg.Report(ctx, report)
		return report
	}

	if cfg.ScheduleCron == "" {
		if report := runOnce(); report.Failed() {
			os.Exit(1)
		}
		return
	}

	// Scheduled mode: one run per cron tick until terminated.
	c := cron.New()
	if _, err := c.AddFunc(cfg.ScheduleCron, func() { runOnce() }); err != nil {
		logger.Fatalf("Invalid SCHEDULE_CRON %q: %v", cfg.ScheduleCron, err)
	}
	c.Start()
	logger.WithField("cron", cfg.ScheduleCron).Info("Scheduler started")

	<-ctx.Done()
	c.Stop()
	logger.Info("Scheduler stopped")
}
