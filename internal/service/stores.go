package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/trenergram/internal/model"
)

// BookingStore - хранилище бронирований. Все изменения флагов и статусов
// выполняются условной записью: при несовпадении ожидаемого состояния
// ничего не меняется
type BookingStore interface {
	// Create вставляет бронирование и обновляет счётчики связи тренер-клиент.
	// Для занятого времени возвращает model.ErrBookingConflict
	Create(ctx context.Context, booking *model.Booking) error
	// GetByID возвращает nil, nil если бронирование не найдено
	GetByID(ctx context.Context, id int64) (*model.Booking, error)
	// ListActiveUpcoming - pending и confirmed с началом позже now
	ListActiveUpcoming(ctx context.Context, now time.Time) ([]*model.Booking, error)
	// ListChargeable - confirmed, не списанные, с началом позже now
	ListChargeable(ctx context.Context, now time.Time) ([]*model.Booking, error)
	// UpdateStatus применяет переход, если статус всё ещё change.From.
	// Иначе model.ErrStaleBooking (или model.ErrBookingNotFound)
	UpdateStatus(ctx context.Context, change model.StatusChange) error
	// Reschedule переносит начало, сбрасывает флаги напоминаний и в той же
	// транзакции удаляет повторы доставки этого бронирования
	Reschedule(ctx context.Context, id int64, expected model.BookingStatus, oldStart, newStart, at time.Time) error
	// MarkStage выставляет флаг этапа, только если он ещё не выставлен.
	// false - флаг уже выставлен другим проходом или бронирование неактивно
	MarkStage(ctx context.Context, id int64, stage model.ReminderStage, at time.Time) (bool, error)
	// Charge атомарно отмечает списание и уменьшает баланс клиента у тренера.
	// Возвращает новый баланс
	Charge(ctx context.Context, id int64, at time.Time) (int, error)
}

// UserStore - тренеры и клиенты. GetByID возвращает nil, nil если не найден
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
}

// LedgerStore - балансы клиентов у тренеров
type LedgerStore interface {
	Get(ctx context.Context, trainerID, clientID int64) (*model.TrainerClient, error)
	ListByClient(ctx context.Context, clientID int64) ([]*model.TrainerClient, error)
	// TopUp увеличивает баланс, model.ErrLedgerNotFound если связи нет
	TopUp(ctx context.Context, trainerID, clientID int64, amount int) (int, error)
}

// RetryStore - очередь повторной доставки уведомлений, ключ (booking_id, stage)
type RetryStore interface {
	Enqueue(ctx context.Context, retry *model.NotificationRetry) error
	// ClaimNext захватывает наступивший повтор до leaseUntil, nil - нечего забирать
	ClaimNext(ctx context.Context, now, leaseUntil time.Time) (*model.NotificationRetry, error)
	// MarkDelivered и MarkFailed проходят только пока действует захват lease,
	// иначе model.ErrRetryClaimLost
	MarkDelivered(ctx context.Context, id int64, lease, at time.Time) error
	MarkFailed(ctx context.Context, id int64, lease time.Time, attempts int, lastError string, next time.Time, state model.RetryState) error
}
