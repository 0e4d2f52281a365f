package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Freeeeeet/trenergram/internal/app"
	"github.com/Freeeeeet/trenergram/internal/config"
	"github.com/Freeeeeet/trenergram/internal/controller"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment, "bot")
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting trenergram bot",
		zap.String("transport", cfg.NotifyTransport),
		zap.Duration("sweep_interval", cfg.SweepInterval),
		zap.Int("sweep_workers", cfg.SweepWorkers))

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("Failed to release resources", zap.Error(err))
		}
	}()

	scheduler := app.NewScheduler(a.Reminders, a.Ledger, a.Retries, cfg.SweepInterval, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	// Без Telegram бот не нужен: работает только планировщик
	if a.Bot == nil {
		logger.Info("Bot is disabled, running scheduler only")
		<-ctx.Done()
		logger.Info("Shutting down")
		return
	}

	botController := controller.NewBotController(a.Bot, a.Users, a.Lifecycle, a.Ledger, cfg.WebAppURL, logger)
	if err := botController.RegisterHandlers(ctx); err != nil {
		logger.Warn("Bot commands were not set", zap.Error(err))
	}

	// Блокируется до отмены контекста
	botController.Start(ctx)
	logger.Info("Shutting down")
}
