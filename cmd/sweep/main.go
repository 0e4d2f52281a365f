package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Freeeeeet/trenergram/internal/app"
	"github.com/Freeeeeet/trenergram/internal/config"
	"go.uber.org/zap"
)

// Разовый проход для cron и ручного запуска
func main() {
	job := flag.String("job", "all", "Sweep to run: reminders|ledger|retries|all")
	flag.Parse()

	switch *job {
	case "reminders", "ledger", "retries", "all":
	default:
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment, "sweep")
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer a.Close()

	logger = logger.With(zap.String("job", *job))

	switch *job {
	case "reminders":
		report, err := a.Reminders.RunReminderSweep(ctx)
		if err != nil {
			logger.Error("Reminder sweep failed", zap.Error(err))
			return
		}
		logger.Info("Done",
			zap.Int("candidates", report.Candidates),
			zap.Int("fired", report.Total()),
			zap.Int("failed", report.Failed))

	case "ledger":
		report, err := a.Ledger.RunLedgerSweep(ctx)
		if err != nil {
			logger.Error("Ledger sweep failed", zap.Error(err))
			return
		}
		logger.Info("Done", zap.Int("candidates", report.Candidates), zap.Int("failed", report.Failed))

	case "retries":
		report, err := a.Retries.RunRetrySweep(ctx)
		if err != nil {
			logger.Error("Retry sweep failed", zap.Error(err))
			return
		}
		logger.Info("Done",
			zap.Int("due", report.Due),
			zap.Int("delivered", report.Delivered),
			zap.Int("exhausted", report.Exhausted))

	case "all":
		app.NewScheduler(a.Reminders, a.Ledger, a.Retries, cfg.SweepInterval, logger).RunOnce(ctx)
		logger.Info("Done")
	}
}
