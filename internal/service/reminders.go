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

// Stage1Tolerance - окно вокруг reminder_1_time, границы включительно
const Stage1Tolerance = 5 * time.Minute

// ReminderService - периодический проход по активным бронированиям:
// напоминания 1-3, автоотмена pending и напоминания перед началом
type ReminderService struct {
	bookings   BookingStore
	users      UserStore
	lifecycle  *LifecycleService
	dispatcher *Dispatcher
	resolver   *localtime.Resolver
	now        func() time.Time
	workers    int
	logger     *zap.Logger
}

func NewReminderService(
	bookings BookingStore,
	users UserStore,
	lifecycle *LifecycleService,
	dispatcher *Dispatcher,
	resolver *localtime.Resolver,
	now func() time.Time,
	workers int,
	logger *zap.Logger,
) *ReminderService {
	if now == nil {
		now = time.Now
	}
	return &ReminderService{
		bookings:   bookings,
		users:      users,
		lifecycle:  lifecycle,
		dispatcher: dispatcher,
		resolver:   resolver,
		now:        now,
		workers:    workers,
		logger:     logger,
	}
}

// RunReminderSweep выполняет один проход. Безопасен при параллельном запуске:
// каждый флаг выставляется условной записью до отправки уведомления
func (s *ReminderService) RunReminderSweep(ctx context.Context) (*SweepReport, error) {
	sweepID := newSweepID()
	now := s.now()
	logger := s.logger.With(zap.String("sweep", "reminders"), zap.String("sweep_id", sweepID))

	bookings, err := s.bookings.ListActiveUpcoming(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list active bookings: %w", err)
	}

	logger.Info("Reminder sweep started", zap.Int("candidates", len(bookings)))

	report := forEachBooking(ctx, sweepID, bookings, s.workers, func(ctx context.Context, b *model.Booking) ([]model.ReminderStage, error) {
		return s.processBooking(ctx, logger, b, now)
	})

	if report.Err != nil {
		logger.Error("Reminder sweep finished with errors",
			zap.Int("failed", report.Failed),
			zap.Error(report.Err))
	}

	logger.Info("Reminder sweep finished",
		zap.Int("candidates", report.Candidates),
		zap.Int("fired", report.Total()),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))

	return report, nil
}

func (s *ReminderService) processBooking(ctx context.Context, logger *zap.Logger, b *model.Booking, now time.Time) ([]model.ReminderStage, error) {
	logger = logger.With(zap.Int64("booking_id", b.ID))

	trainer, client, err := loadParticipants(ctx, s.users, b)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			logger.Warn("Skipping booking: participant not found", zap.Error(err))
			return nil, errSkipped
		}
		return nil, err
	}

	settings, warnings := trainer.ReminderSettings()
	for _, w := range warnings {
		logger.Warn("Trainer reminder settings adjusted",
			zap.Int64("trainer_id", trainer.ID),
			zap.String("warning", w))
	}

	local := s.resolver.LocalNow(settings.Timezone, now)

	var fired []model.ReminderStage

	if stage, ok := DueEscalation(b, settings, local); ok {
		done, err := s.fireEscalation(ctx, logger, b, stage, trainer, client, local.Location, now)
		if err != nil {
			return fired, err
		}
		if done {
			fired = append(fired, stage)
		}
	}

	if b.Status == model.BookingStatusConfirmed {
		for _, r := range model.PreStartReminders {
			if !client.PreStartEnabled(r.Stage) || !DuePreStart(b, r, now) {
				continue
			}
			done, err := s.markAndSend(ctx, logger, b, r.Stage, trainer, client, local.Location, now)
			if err != nil {
				return fired, err
			}
			if done {
				fired = append(fired, r.Stage)
			}
		}
	}

	return fired, nil
}

// DueEscalation определяет следующий шаг эскалации, если он наступил.
// За один проход срабатывает не больше одного шага
func DueEscalation(b *model.Booking, s model.ReminderSettings, local localtime.LocalTime) (model.ReminderStage, bool) {
	now := local.Time

	switch {
	case b.Reminder1SentAt == nil:
		if localtime.DaysBetween(now, b.StartAt, local.Location) != s.Reminder1DaysBefore {
			return "", false
		}
		diff := now.Sub(local.At(s.Reminder1Hour, s.Reminder1Minute))
		if diff < -Stage1Tolerance || diff > Stage1Tolerance {
			return "", false
		}
		return model.StageReminder1, true

	case b.Reminder2SentAt == nil:
		if now.Sub(*b.Reminder1SentAt) >= s.Reminder2After {
			return model.StageReminder2, true
		}

	case b.Reminder3SentAt == nil:
		if now.Sub(*b.Reminder2SentAt) >= s.Reminder3After {
			return model.StageReminder3, true
		}

	case b.Status == model.BookingStatusPending:
		if now.Sub(*b.Reminder3SentAt) >= s.AutoCancelAfter {
			return model.StageAutoCancel, true
		}
	}

	return "", false
}

// DuePreStart - попадает ли now в окно напоминания перед началом
func DuePreStart(b *model.Booking, r model.PreStartReminder, now time.Time) bool {
	if b.StageSent(r.Stage) {
		return false
	}
	diff := b.StartAt.Sub(now) - r.Before
	return diff >= -r.Tolerance && diff <= r.Tolerance
}

func (s *ReminderService) fireEscalation(
	ctx context.Context,
	logger *zap.Logger,
	b *model.Booking,
	stage model.ReminderStage,
	trainer, client *model.User,
	loc *time.Location,
	now time.Time,
) (bool, error) {
	if stage != model.StageAutoCancel {
		return s.markAndSend(ctx, logger, b, stage, trainer, client, loc, now)
	}

	err := s.lifecycle.AutoCancel(ctx, b)
	if err != nil {
		var tErr *model.TransitionError
		if errors.Is(err, model.ErrStaleBooking) || errors.As(err, &tErr) {
			logger.Info("Auto-cancel skipped: booking changed", zap.Error(err))
			return false, nil
		}
		return false, fmt.Errorf("auto-cancel: %w", err)
	}

	logger.Info("Booking auto-cancelled", zap.Time("reminder_3_sent_at", *b.Reminder3SentAt))

	msg, err := stageMessage(model.StageAutoCancel, b, trainer, client, loc)
	if err != nil {
		return true, err
	}
	_ = s.dispatcher.SendStage(ctx, b.ID, model.StageAutoCancel, client.ID, msg)

	return true, nil
}

// markAndSend: сначала условно выставляет флаг, затем отправляет уведомление.
// Повторная отправка при гонке двух проходов невозможна, потерянное
// уведомление уходит в очередь повторов
func (s *ReminderService) markAndSend(
	ctx context.Context,
	logger *zap.Logger,
	b *model.Booking,
	stage model.ReminderStage,
	trainer, client *model.User,
	loc *time.Location,
	now time.Time,
) (bool, error) {
	msg, err := stageMessage(stage, b, trainer, client, loc)
	if err != nil {
		return false, err
	}

	marked, err := s.bookings.MarkStage(ctx, b.ID, stage, now)
	if err != nil {
		return false, fmt.Errorf("mark %s: %w", stage, err)
	}
	if !marked {
		logger.Debug("Stage already marked by another sweep", zap.String("stage", string(stage)))
		return false, nil
	}
	b.MarkStage(stage, now)

	if err := s.dispatcher.SendStage(ctx, b.ID, stage, client.ID, msg); err != nil {
		logger.Warn("Stage marked but not delivered", zap.String("stage", string(stage)), zap.Error(err))
	} else {
		logger.Info("Reminder sent", zap.String("stage", string(stage)))
	}

	return true, nil
}
