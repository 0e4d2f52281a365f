package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/trenergram/internal/model"
	"github.com/Freeeeeet/trenergram/internal/notify"
	"go.uber.org/zap"
)

// StageCharge - метка списания в отчёте прохода
const StageCharge model.ReminderStage = "charge"

// LedgerService списывает стоимость подтверждённых тренировок с баланса
// клиента, когда до начала остаётся меньше cancellation_hours тренера
type LedgerService struct {
	bookings   BookingStore
	users      UserStore
	ledger     LedgerStore
	dispatcher *Dispatcher
	now        func() time.Time
	workers    int
	logger     *zap.Logger
}

func NewLedgerService(
	bookings BookingStore,
	users UserStore,
	ledger LedgerStore,
	dispatcher *Dispatcher,
	now func() time.Time,
	workers int,
	logger *zap.Logger,
) *LedgerService {
	if now == nil {
		now = time.Now
	}
	return &LedgerService{
		bookings:   bookings,
		users:      users,
		ledger:     ledger,
		dispatcher: dispatcher,
		now:        now,
		workers:    workers,
		logger:     logger,
	}
}

// RunLedgerSweep выполняет один проход списаний. Баланс может уйти в минус
func (s *LedgerService) RunLedgerSweep(ctx context.Context) (*SweepReport, error) {
	sweepID := newSweepID()
	now := s.now()
	logger := s.logger.With(zap.String("sweep", "ledger"), zap.String("sweep_id", sweepID))

	bookings, err := s.bookings.ListChargeable(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list chargeable bookings: %w", err)
	}

	logger.Info("Ledger sweep started", zap.Int("candidates", len(bookings)))

	report := forEachBooking(ctx, sweepID, bookings, s.workers, func(ctx context.Context, b *model.Booking) ([]model.ReminderStage, error) {
		charged, err := s.chargeBooking(ctx, logger, b, now)
		if charged {
			return []model.ReminderStage{StageCharge}, err
		}
		return nil, err
	})

	if report.Err != nil {
		logger.Error("Ledger sweep finished with errors",
			zap.Int("failed", report.Failed),
			zap.Error(report.Err))
	}

	logger.Info("Ledger sweep finished",
		zap.Int("candidates", report.Candidates),
		zap.Int("charged", report.Fired[StageCharge]),
		zap.Int("skipped", report.Skipped))

	return report, nil
}

func (s *LedgerService) chargeBooking(ctx context.Context, logger *zap.Logger, b *model.Booking, now time.Time) (bool, error) {
	logger = logger.With(zap.Int64("booking_id", b.ID))

	if b.IsCharged || b.Status != model.BookingStatusConfirmed {
		return false, nil
	}

	trainer, _, err := loadParticipants(ctx, s.users, b)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			logger.Warn("Skipping charge: participant not found", zap.Error(err))
			return false, errSkipped
		}
		return false, err
	}

	settings, _ := trainer.ReminderSettings()
	deadline := time.Duration(settings.CancellationHours) * time.Hour
	untilStart := b.StartAt.Sub(now)
	if untilStart > deadline {
		return false, nil
	}

	balance, err := s.bookings.Charge(ctx, b.ID, now)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrLedgerNotFound):
			logger.Error("Skipping charge: trainer-client relationship not found",
				zap.Int64("trainer_id", b.TrainerID),
				zap.Int64("client_id", b.ClientID))
			return false, errSkipped
		case errors.Is(err, model.ErrStaleBooking):
			logger.Debug("Booking already charged or no longer confirmed")
			return false, nil
		}
		return false, fmt.Errorf("charge booking: %w", err)
	}

	b.IsCharged = true
	b.ChargedAt = &now

	logger.Info("Booking charged",
		zap.Int("amount", b.Price),
		zap.Int("balance", balance),
		zap.Float64("hours_until_start", untilStart.Hours()),
		zap.Int("deadline_hours", settings.CancellationHours))

	return true, nil
}

// TopUp пополняет баланс клиента у тренера (balance += amount)
func (s *LedgerService) TopUp(ctx context.Context, trainerID, clientID int64, amount int) (int, error) {
	if amount <= 0 {
		return 0, model.ErrInvalidAmount
	}

	balance, err := s.ledger.TopUp(ctx, trainerID, clientID, amount)
	if err != nil {
		if errors.Is(err, model.ErrLedgerNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("top up balance: %w", err)
	}

	s.logger.Info("Balance topped up",
		zap.Int64("trainer_id", trainerID),
		zap.Int64("client_id", clientID),
		zap.Int("amount", amount),
		zap.Int("balance", balance))

	return balance, nil
}

// Balance возвращает связь тренер-клиент с балансом
func (s *LedgerService) Balance(ctx context.Context, trainerID, clientID int64) (*model.TrainerClient, error) {
	tc, err := s.ledger.Get(ctx, trainerID, clientID)
	if err != nil {
		return nil, fmt.Errorf("get ledger: %w", err)
	}
	if tc == nil {
		return nil, model.ErrLedgerNotFound
	}
	return tc, nil
}

// ClientTrainers возвращает связи клиента со всеми его тренерами
func (s *LedgerService) ClientTrainers(ctx context.Context, clientID int64) ([]*model.TrainerClient, error) {
	ledgers, err := s.ledger.ListByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("list client trainers: %w", err)
	}
	return ledgers, nil
}

// RequestTopUp сообщает тренеру, что клиент пополнил баланс на amount копеек.
// Баланс меняется только после подтверждения тренером (TopUp)
func (s *LedgerService) RequestTopUp(ctx context.Context, trainerID, clientID int64, amount int) error {
	if amount <= 0 {
		return model.ErrInvalidAmount
	}

	trainer, err := s.users.GetByID(ctx, trainerID)
	if err != nil {
		return fmt.Errorf("get trainer: %w", err)
	}
	if trainer == nil {
		return model.ErrUserNotFound
	}
	if !trainer.IsTrainer() {
		return model.ErrNotTrainer
	}

	client, err := s.users.GetByID(ctx, clientID)
	if err != nil {
		return fmt.Errorf("get client: %w", err)
	}
	if client == nil {
		return model.ErrUserNotFound
	}

	tc, err := s.Balance(ctx, trainerID, clientID)
	if err != nil {
		return err
	}

	msg := notify.TopUpRequest(notify.PartyOf(trainer), notify.PartyOf(client), amount, tc.Balance)
	if err := s.dispatcher.Send(ctx, msg); err != nil {
		return err
	}

	s.logger.Info("Top up requested",
		zap.Int64("trainer_id", trainerID),
		zap.Int64("client_id", clientID),
		zap.Int("amount", amount),
		zap.Int("balance", tc.Balance))

	return nil
}
