package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/trenergram/internal/localtime"
	"github.com/Freeeeeet/trenergram/internal/model"
	"github.com/Freeeeeet/trenergram/internal/notify"
	"go.uber.org/zap"
)

// LifecycleService - единственное место, где меняется статус бронирования
type LifecycleService struct {
	bookings   BookingStore
	users      UserStore
	dispatcher *Dispatcher
	resolver   *localtime.Resolver
	now        func() time.Time
	logger     *zap.Logger
}

func NewLifecycleService(
	bookings BookingStore,
	users UserStore,
	dispatcher *Dispatcher,
	resolver *localtime.Resolver,
	now func() time.Time,
	logger *zap.Logger,
) *LifecycleService {
	if now == nil {
		now = time.Now
	}
	return &LifecycleService{
		bookings:   bookings,
		users:      users,
		dispatcher: dispatcher,
		resolver:   resolver,
		now:        now,
		logger:     logger,
	}
}

type CreateBookingParams struct {
	TrainerID       int64
	ClientID        int64
	StartAt         time.Time
	DurationMinutes int // 0 - длительность тренера
	Price           int // 0 - цена тренера
	Notes           string
	CreatedBy       model.Creator
	// AutoConfirm - запись клиента сразу подтверждена (без одобрения тренером)
	AutoConfirm bool
}

// Create создаёт бронирование, если у тренера нет активной записи на это же время
func (s *LifecycleService) Create(ctx context.Context, p CreateBookingParams) (*model.Booking, error) {
	now := s.now()
	if !p.StartAt.After(now) {
		return nil, model.ErrBookingInPast
	}

	trainer, err := s.users.GetByID(ctx, p.TrainerID)
	if err != nil {
		return nil, fmt.Errorf("get trainer: %w", err)
	}
	if trainer == nil {
		return nil, fmt.Errorf("trainer %d: %w", p.TrainerID, model.ErrUserNotFound)
	}
	if !trainer.IsTrainer() {
		return nil, model.ErrNotTrainer
	}

	client, err := s.users.GetByID(ctx, p.ClientID)
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("client %d: %w", p.ClientID, model.ErrUserNotFound)
	}
	if !client.IsClient() {
		return nil, model.ErrNotClient
	}

	duration := p.DurationMinutes
	if duration <= 0 {
		duration = trainer.SessionDuration
	}
	if duration <= 0 {
		duration = model.DefaultDurationMinutes
	}

	price := p.Price
	if price <= 0 {
		price = trainer.Price
	}

	creator := model.ParseCreator(string(p.CreatedBy))

	booking := &model.Booking{
		TrainerID:       trainer.ID,
		ClientID:        client.ID,
		StartAt:         p.StartAt,
		DurationMinutes: duration,
		Price:           price,
		Status:          model.BookingStatusPending,
		CreatedBy:       creator,
		Notes:           p.Notes,
	}

	if creator == model.CreatorClient && p.AutoConfirm {
		booking.Status = model.BookingStatusConfirmed
		booking.ConfirmedAt = &now
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		if errors.Is(err, model.ErrBookingConflict) {
			return nil, model.ErrBookingConflict
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.logger.Info("Booking created",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("trainer_id", trainer.ID),
		zap.Int64("client_id", client.ID),
		zap.Time("start_at", booking.StartAt),
		zap.String("status", string(booking.Status)),
		zap.String("created_by", string(creator)))

	s.notifyCreated(ctx, booking, trainer, client)

	return booking, nil
}

// notifyCreated - политика уведомлений по тому, кто создал запись
func (s *LifecycleService) notifyCreated(ctx context.Context, b *model.Booking, trainer, client *model.User) {
	switch b.CreatedBy {
	case model.CreatorTrainer:
		// Первым уведомлением клиенту станет первое напоминание
		s.logger.Debug("Booking created by trainer, no notification", zap.Int64("booking_id", b.ID))
	case model.CreatorClient:
		loc := s.location(trainer)
		if b.Status == model.BookingStatusPending {
			s.dispatcher.Notify(ctx, notify.BookingRequest(b, notify.PartyOf(trainer), notify.PartyOf(client), loc))
		} else {
			s.dispatcher.Notify(ctx, notify.BookingConfirmed(b, notify.PartyOf(trainer), notify.PartyOf(client), loc))
		}
		s.dispatcher.Notify(ctx, notify.BookingRequestAck(b, notify.PartyOf(trainer), notify.PartyOf(client), loc))
	case model.CreatorUnknown:
		s.logger.Warn("Booking creator is unknown, no notification", zap.Int64("booking_id", b.ID))
	}
}

// Confirm подтверждает pending бронирование
func (s *LifecycleService) Confirm(ctx context.Context, bookingID, actorID int64) (*model.Booking, error) {
	b, err := s.getForActor(ctx, bookingID, actorID)
	if err != nil {
		return nil, err
	}

	if err := s.transition(ctx, b, model.BookingStatusConfirmed, ""); err != nil {
		return nil, err
	}

	trainer, client, err := loadParticipants(ctx, s.users, b)
	if err != nil {
		s.logger.Warn("Booking confirmed, participants not loaded", zap.Int64("booking_id", b.ID), zap.Error(err))
		return b, nil
	}

	loc := s.location(trainer)
	if actorID == b.ClientID {
		s.dispatcher.Notify(ctx, notify.BookingConfirmed(b, notify.PartyOf(trainer), notify.PartyOf(client), loc))
	} else {
		s.dispatcher.Notify(ctx, notify.BookingApproved(b, notify.PartyOf(trainer), notify.PartyOf(client), loc))
	}

	return b, nil
}

// Complete отмечает тренировку проведённой
func (s *LifecycleService) Complete(ctx context.Context, bookingID, trainerID int64) (*model.Booking, error) {
	return s.finish(ctx, bookingID, trainerID, model.BookingStatusCompleted)
}

// MarkNoShow отмечает, что клиент не пришёл
func (s *LifecycleService) MarkNoShow(ctx context.Context, bookingID, trainerID int64) (*model.Booking, error) {
	return s.finish(ctx, bookingID, trainerID, model.BookingStatusNoShow)
}

func (s *LifecycleService) finish(ctx context.Context, bookingID, trainerID int64, to model.BookingStatus) (*model.Booking, error) {
	b, err := s.getForActor(ctx, bookingID, trainerID)
	if err != nil {
		return nil, err
	}
	if b.TrainerID != trainerID {
		return nil, model.ErrNotParticipant
	}

	if err := s.transition(ctx, b, to, ""); err != nil {
		return nil, err
	}
	return b, nil
}

type CancelParams struct {
	BookingID int64
	ActorID   int64
	Reason    string
}

type CancelResult struct {
	Booking *model.Booking
	// Late - до начала осталось меньше, чем cancellation_hours тренера
	Late bool
}

// Cancel отменяет pending или confirmed бронирование. Отмена разрешена всегда,
// поздняя отмена помечается в уведомлении второй стороне.
// Списанные деньги не возвращаются
func (s *LifecycleService) Cancel(ctx context.Context, p CancelParams) (*CancelResult, error) {
	b, err := s.getForActor(ctx, p.BookingID, p.ActorID)
	if err != nil {
		return nil, err
	}

	if err := s.transition(ctx, b, model.BookingStatusCancelled, p.Reason); err != nil {
		return nil, err
	}

	result := &CancelResult{Booking: b}

	trainer, client, err := loadParticipants(ctx, s.users, b)
	if err != nil {
		s.logger.Warn("Booking cancelled, participants not loaded", zap.Int64("booking_id", b.ID), zap.Error(err))
		return result, nil
	}

	settings, _ := trainer.ReminderSettings()
	result.Late = b.StartAt.Sub(s.now()) < time.Duration(settings.CancellationHours)*time.Hour

	byTrainer := p.ActorID == b.TrainerID
	s.dispatcher.Notify(ctx, notify.Cancelled(b, notify.PartyOf(trainer), notify.PartyOf(client), byTrainer, result.Late, p.Reason, s.location(trainer)))

	if b.IsCharged {
		s.logger.Info("Charged booking cancelled, charge is kept",
			zap.Int64("booking_id", b.ID),
			zap.Int("price", b.Price))
	}

	return result, nil
}

// AutoCancel отменяет неподтверждённое бронирование после третьего напоминания.
// Подтверждённые бронирования автоматически не отменяются
func (s *LifecycleService) AutoCancel(ctx context.Context, b *model.Booking) error {
	if b.Status != model.BookingStatusPending {
		return &model.TransitionError{From: b.Status, To: model.BookingStatusCancelled}
	}
	return s.transition(ctx, b, model.BookingStatusCancelled, model.AutoCancelReason)
}

type RescheduleParams struct {
	BookingID int64
	ActorID   int64
	NewStart  time.Time
}

// Reschedule переносит бронирование. Флаги напоминаний сбрасываются,
// отметка о списании остаётся
func (s *LifecycleService) Reschedule(ctx context.Context, p RescheduleParams) (*model.Booking, error) {
	b, err := s.getForActor(ctx, p.BookingID, p.ActorID)
	if err != nil {
		return nil, err
	}

	if !b.Status.IsActive() {
		return nil, model.ErrBookingInactive
	}

	now := s.now()
	if !p.NewStart.After(now) {
		return nil, model.ErrBookingInPast
	}
	if p.NewStart.Equal(b.StartAt) {
		return b, nil
	}

	oldStart := b.StartAt
	err = s.bookings.Reschedule(ctx, b.ID, b.Status, oldStart, p.NewStart, now)
	if err != nil {
		if errors.Is(err, model.ErrBookingConflict) || errors.Is(err, model.ErrStaleBooking) {
			return nil, err
		}
		return nil, fmt.Errorf("reschedule booking: %w", err)
	}

	b.StartAt = p.NewStart
	b.ResetReminders()
	b.UpdatedAt = now

	s.logger.Info("Booking rescheduled",
		zap.Int64("booking_id", b.ID),
		zap.Int64("actor_id", p.ActorID),
		zap.Time("old_start", oldStart),
		zap.Time("new_start", p.NewStart))

	trainer, client, err := loadParticipants(ctx, s.users, b)
	if err != nil {
		s.logger.Warn("Booking rescheduled, participants not loaded", zap.Int64("booking_id", b.ID), zap.Error(err))
		return b, nil
	}

	byTrainer := p.ActorID == b.TrainerID
	s.dispatcher.Notify(ctx, notify.Rescheduled(b, oldStart, notify.PartyOf(trainer), notify.PartyOf(client), byTrainer, s.location(trainer)))

	return b, nil
}

// getForActor загружает бронирование и проверяет, что actor - его участник
func (s *LifecycleService) getForActor(ctx context.Context, bookingID, actorID int64) (*model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if b == nil {
		return nil, model.ErrBookingNotFound
	}
	if actorID != b.TrainerID && actorID != b.ClientID {
		return nil, model.ErrNotParticipant
	}
	return b, nil
}

// transition проверяет и условно применяет переход, обновляя b в памяти
func (s *LifecycleService) transition(ctx context.Context, b *model.Booking, to model.BookingStatus, reason string) error {
	if err := model.ValidateTransition(b.Status, to); err != nil {
		return err
	}

	now := s.now()
	change := model.StatusChange{
		BookingID: b.ID,
		From:      b.Status,
		To:        to,
		At:        now,
		Reason:    reason,
	}

	if err := s.bookings.UpdateStatus(ctx, change); err != nil {
		if errors.Is(err, model.ErrStaleBooking) || errors.Is(err, model.ErrBookingNotFound) {
			return err
		}
		return fmt.Errorf("update booking status: %w", err)
	}

	b.Status = to
	b.UpdatedAt = now
	switch to {
	case model.BookingStatusConfirmed:
		b.ConfirmedAt = &now
	case model.BookingStatusCancelled:
		b.CancelledAt = &now
		b.CancellationReason = reason
	case model.BookingStatusCompleted:
		b.CompletedAt = &now
	}

	s.logger.Info("Booking status changed",
		zap.Int64("booking_id", b.ID),
		zap.String("from", string(change.From)),
		zap.String("to", string(to)),
		zap.String("reason", reason))

	return nil
}

func (s *LifecycleService) location(trainer *model.User) *time.Location {
	loc, _ := s.resolver.Location(trainer.Timezone)
	return loc
}
