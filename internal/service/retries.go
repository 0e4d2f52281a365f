package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/trenergram/internal/localtime"
	"github.com/Freeeeeet/trenergram/internal/model"
	"go.uber.org/zap"
)

// DefaultRetryBatch - сколько повторов обрабатывается за проход
const DefaultRetryBatch = 100

// RetryService повторяет доставку уведомлений уже отмеченных этапов.
// Условия этапа повторно не проверяются
type RetryService struct {
	retries    RetryStore
	bookings   BookingStore
	users      UserStore
	dispatcher *Dispatcher
	resolver   *localtime.Resolver
	now        func() time.Time
	logger     *zap.Logger
}

func NewRetryService(
	retries RetryStore,
	bookings BookingStore,
	users UserStore,
	dispatcher *Dispatcher,
	resolver *localtime.Resolver,
	now func() time.Time,
	logger *zap.Logger,
) *RetryService {
	if now == nil {
		now = time.Now
	}
	return &RetryService{
		retries:    retries,
		bookings:   bookings,
		users:      users,
		dispatcher: dispatcher,
		resolver:   resolver,
		now:        now,
		logger:     logger,
	}
}

// RetryReport - итог прохода повторов
type RetryReport struct {
	SweepID   string
	Due       int
	Delivered int
	Failed    int
	Exhausted int
	// Skipped - напоминания по бронированиям, которые уже не активны
	Skipped int
}

// RunRetrySweep повторяет доставку для повторов, время которых наступило.
// Каждый повтор сначала захватывается, поэтому параллельные проходы не отправляют его дважды
func (s *RetryService) RunRetrySweep(ctx context.Context) (*RetryReport, error) {
	now := s.now()
	report := &RetryReport{SweepID: newSweepID()}
	logger := s.logger.With(zap.String("sweep", "retries"), zap.String("sweep_id", report.SweepID))

	// Захват должен пережить отправку и чтение бронирования
	leaseUntil := now.Add(2*s.dispatcher.Timeout() + time.Minute)

	for report.Due < DefaultRetryBatch {
		if ctx.Err() != nil {
			break
		}

		item, err := s.retries.ClaimNext(ctx, now, leaseUntil)
		if err != nil {
			return report, fmt.Errorf("claim retry: %w", err)
		}
		if item == nil {
			break
		}
		report.Due++

		s.process(ctx, logger, report, item, now)
	}

	return report, nil
}

// process отправляет захваченный повтор и записывает исход
func (s *RetryService) process(ctx context.Context, logger *zap.Logger, report *RetryReport, item *model.NotificationRetry, now time.Time) {
	lease := item.NextAttemptAt
	logger = logger.With(
		zap.Int64("retry_id", item.ID),
		zap.Int64("booking_id", item.BookingID),
		zap.String("stage", string(item.Stage)))

	sendErr := s.attempt(ctx, item)
	switch {
	case sendErr == nil:
		if err := s.retries.MarkDelivered(ctx, item.ID, lease, now); err != nil {
			logger.Error("Failed to mark retry delivered", zap.Error(err))
		}
		report.Delivered++
		logger.Info("Notification delivered on retry", zap.Int("attempt", item.Attempts+1))
		return

	case errors.Is(sendErr, model.ErrBookingInactive):
		// Напоминание с кнопками по отменённой или завершённой записи не отправляем
		report.Skipped++
		logger.Info("Retry dropped, booking is no longer active")
		if err := s.retries.MarkFailed(ctx, item.ID, lease, item.Attempts, sendErr.Error(), now, model.RetryStateExhausted); err != nil {
			logger.Error("Failed to update retry", zap.Error(err))
		}
		return
	}

	attempts := item.Attempts + 1
	state := model.RetryStatePending
	next := now.Add(s.dispatcher.RetryDelay(attempts))
	if attempts >= s.dispatcher.MaxAttempts() {
		state = model.RetryStateExhausted
		report.Exhausted++
		logger.Error("Notification retries exhausted",
			zap.Int("attempts", attempts),
			zap.Error(sendErr))
	} else {
		report.Failed++
		logger.Warn("Notification retry failed",
			zap.Int("attempts", attempts),
			zap.Time("next_attempt_at", next),
			zap.Error(sendErr))
	}

	if err := s.retries.MarkFailed(ctx, item.ID, lease, attempts, sendErr.Error(), next, state); err != nil {
		logger.Error("Failed to update retry", zap.Error(err))
	}
}

// attempt восстанавливает сообщение этапа и отправляет его
func (s *RetryService) attempt(ctx context.Context, item *model.NotificationRetry) error {
	b, err := s.bookings.GetByID(ctx, item.BookingID)
	if err != nil {
		return fmt.Errorf("get booking: %w", err)
	}
	if b == nil {
		return model.ErrBookingNotFound
	}
	// Уведомление об автоотмене по определению приходит по отменённой записи
	if item.Stage != model.StageAutoCancel && !b.Status.IsActive() {
		return fmt.Errorf("%w: %s", model.ErrBookingInactive, b.Status)
	}

	trainer, client, err := loadParticipants(ctx, s.users, b)
	if err != nil {
		return err
	}

	loc, _ := s.resolver.Location(trainer.Timezone)
	msg, err := stageMessage(item.Stage, b, trainer, client, loc)
	if err != nil {
		return err
	}

	return s.dispatcher.Send(ctx, msg)
}
