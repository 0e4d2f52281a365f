package app

import (
	"context"
	"sync"
	"time"

	"github.com/Freeeeeet/trenergram/internal/service"
	"go.uber.org/zap"
)

// Scheduler управляет фоновыми проходами
type Scheduler struct {
	reminders *service.ReminderService
	ledger    *service.LedgerService
	retries   *service.RetryService
	interval  time.Duration
	logger    *zap.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler создаёт новый планировщик
func NewScheduler(
	reminders *service.ReminderService,
	ledger *service.LedgerService,
	retries *service.RetryService,
	interval time.Duration,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		reminders: reminders,
		ledger:    ledger,
		retries:   retries,
		interval:  interval,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler", zap.Duration("interval", s.interval))

	s.wg.Add(1)
	go s.runSweepTask(ctx)
}

// Stop останавливает фоновые задачи и ждёт завершения текущего прохода
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping background scheduler")
		close(s.stopChan)
	})
	s.wg.Wait()
}

// runSweepTask периодически запускает проходы напоминаний, списаний и повторов
func (s *Scheduler) runSweepTask(ctx context.Context) {
	defer s.wg.Done()

	// Первый запуск сразу при старте
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-s.stopChan:
			s.logger.Info("Sweep task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Sweep task cancelled")
			return
		}
	}
}

// RunOnce выполняет все три прохода последовательно. Ошибка одного
// прохода не отменяет остальные
func (s *Scheduler) RunOnce(ctx context.Context) {
	if _, err := s.reminders.RunReminderSweep(ctx); err != nil {
		s.logger.Error("Reminder sweep failed", zap.Error(err))
	}
	if ctx.Err() != nil {
		return
	}

	if _, err := s.ledger.RunLedgerSweep(ctx); err != nil {
		s.logger.Error("Ledger sweep failed", zap.Error(err))
	}
	if ctx.Err() != nil {
		return
	}

	report, err := s.retries.RunRetrySweep(ctx)
	if err != nil {
		s.logger.Error("Retry sweep failed", zap.Error(err))
		return
	}
	if report.Due > 0 {
		s.logger.Info("Retry sweep finished",
			zap.String("sweep_id", report.SweepID),
			zap.Int("due", report.Due),
			zap.Int("delivered", report.Delivered),
			zap.Int("failed", report.Failed),
			zap.Int("exhausted", report.Exhausted),
			zap.Int("skipped", report.Skipped))
	}
}
