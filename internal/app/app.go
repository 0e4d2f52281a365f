package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/trenergram/internal/config"
	"github.com/Freeeeeet/trenergram/internal/localtime"
	"github.com/Freeeeeet/trenergram/internal/notify"
	"github.com/Freeeeeet/trenergram/internal/repository"
	"github.com/Freeeeeet/trenergram/internal/service"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// App - собранные зависимости процесса
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Pool   *pgxpool.Pool
	// Bot - nil, если транспорт уведомлений не telegram
	Bot *bot.Bot

	Users     *repository.UserRepository
	Lifecycle *service.LifecycleService
	Reminders *service.ReminderService
	Ledger    *service.LedgerService
	Retries   *service.RetryService

	closers []func() error
}

// New подключается к базе, применяет миграции и собирает сервисы
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	a.Pool = pool
	a.closers = append(a.closers, func() error { pool.Close(); return nil })

	if err := pool.Ping(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	migrator, err := NewMigrator(pool, cfg.MigrationsDir, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	defer migrator.Close()

	if err := migrator.Run(ctx); err != nil {
		a.Close()
		return nil, err
	}

	gateway, err := a.newGateway()
	if err != nil {
		a.Close()
		return nil, err
	}

	bookings := repository.NewBookingRepository(pool)
	a.Users = repository.NewUserRepository(pool)
	ledger := repository.NewTrainerClientRepository(pool)
	retries := repository.NewNotificationRetryRepository(pool)

	resolver := localtime.NewResolver(cfg.DefaultTimezone, logger)
	dispatcher := service.NewDispatcher(gateway, retries, service.DispatchConfig{
		Timeout:     cfg.DispatchTimeout,
		MaxAttempts: cfg.DispatchMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
	}, time.Now, logger)

	a.Lifecycle = service.NewLifecycleService(bookings, a.Users, dispatcher, resolver, time.Now, logger)
	a.Reminders = service.NewReminderService(bookings, a.Users, a.Lifecycle, dispatcher, resolver, time.Now, cfg.SweepWorkers, logger)
	a.Ledger = service.NewLedgerService(bookings, a.Users, ledger, dispatcher, time.Now, cfg.SweepWorkers, logger)
	a.Retries = service.NewRetryService(retries, bookings, a.Users, dispatcher, resolver, time.Now, logger)

	return a, nil
}

// newGateway выбирает транспорт уведомлений по NOTIFY_TRANSPORT
func (a *App) newGateway() (notify.Gateway, error) {
	switch a.Config.NotifyTransport {
	case config.TransportTelegram:
		b, err := bot.New(a.Config.TelegramToken)
		if err != nil {
			return nil, fmt.Errorf("create bot: %w", err)
		}
		a.Bot = b
		return notify.NewTelegramGateway(b), nil

	case config.TransportAMQP:
		g, err := notify.NewAMQPGateway(a.Config.AMQPURL, a.Config.AMQPExchange)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, g.Close)
		a.Logger.Info("Notifications are published to AMQP", zap.String("exchange", a.Config.AMQPExchange))
		return g, nil

	case config.TransportLog:
		a.Logger.Warn("Notifications are only logged")
		return notify.NewLogGateway(a.Logger), nil
	}

	return nil, fmt.Errorf("unknown notify transport %q", a.Config.NotifyTransport)
}

// Close освобождает ресурсы в обратном порядке
func (a *App) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	a.closers = nil
	return err
}
