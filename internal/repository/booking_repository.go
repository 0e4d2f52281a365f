package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/trenergram/internal/model"
	"github.com/Freeeeeet/trenergram/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// activeSlotIndex - частичный уникальный индекс (trainer_id, start_at) для активных записей
const activeSlotIndex = "bookings_trainer_start_active_idx"

const bookingColumns = `
	id, trainer_id, client_id, start_at, duration_minutes, price, status, created_by,
	notes, cancellation_reason,
	reminder_1_sent, reminder_1_sent_at, reminder_2_sent, reminder_2_sent_at,
	reminder_3_sent, reminder_3_sent_at,
	client_reminder_2h_sent, client_reminder_1h_sent, client_reminder_15m_sent,
	is_charged, charged_at, confirmed_at, cancelled_at, completed_at,
	created_at, updated_at`

type BookingRepository struct {
	*base.Repository
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{Repository: base.NewRepository(pool)}
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID,
		&b.TrainerID,
		&b.ClientID,
		&b.StartAt,
		&b.DurationMinutes,
		&b.Price,
		&b.Status,
		&b.CreatedBy,
		&b.Notes,
		&b.CancellationReason,
		&b.Reminder1Sent,
		&b.Reminder1SentAt,
		&b.Reminder2Sent,
		&b.Reminder2SentAt,
		&b.Reminder3Sent,
		&b.Reminder3SentAt,
		&b.ClientReminder2hSent,
		&b.ClientReminder1hSent,
		&b.ClientReminder15mSent,
		&b.IsCharged,
		&b.ChargedAt,
		&b.ConfirmedAt,
		&b.CancelledAt,
		&b.CompletedAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Create создаёт бронирование и обновляет счётчики связи тренер-клиент
func (r *BookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	insert := `
		INSERT INTO bookings (trainer_id, client_id, start_at, duration_minutes, price, status, created_by, notes, confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`

	upsertLedger := `
		INSERT INTO trainer_clients (trainer_id, client_id, total_bookings, last_booking_at)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (trainer_id, client_id) DO UPDATE
		SET total_bookings = trainer_clients.total_bookings + 1,
		    last_booking_at = GREATEST(trainer_clients.last_booking_at, EXCLUDED.last_booking_at)
	`

	err := r.WithTx(ctx, func(q base.Querier) error {
		err := q.QueryRow(
			ctx, insert,
			booking.TrainerID,
			booking.ClientID,
			booking.StartAt,
			booking.DurationMinutes,
			booking.Price,
			booking.Status,
			booking.CreatedBy,
			booking.Notes,
			booking.ConfirmedAt,
		).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)
		if err != nil {
			if base.IsUniqueViolation(err, activeSlotIndex) {
				return model.ErrBookingConflict
			}
			return fmt.Errorf("insert booking: %w", err)
		}

		if _, err := q.Exec(ctx, upsertLedger, booking.TrainerID, booking.ClientID, booking.StartAt); err != nil {
			return fmt.Errorf("upsert trainer client: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, model.ErrBookingConflict) {
			return err
		}
		return fmt.Errorf("create booking: %w", err)
	}

	return nil
}

// GetByID получает бронирование по ID
func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by id: %w", err)
	}

	return booking, nil
}

// ListActiveUpcoming получает pending и confirmed бронирования, которые ещё не начались
func (r *BookingRepository) ListActiveUpcoming(ctx context.Context, now time.Time) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status IN ('pending', 'confirmed') AND start_at > $1
		ORDER BY start_at ASC
	`

	return r.list(ctx, "list active bookings", query, now)
}

// ListChargeable получает подтверждённые и ещё не списанные бронирования
func (r *BookingRepository) ListChargeable(ctx context.Context, now time.Time) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = 'confirmed' AND NOT is_charged AND start_at > $1
		ORDER BY start_at ASC
	`

	return r.list(ctx, "list chargeable bookings", query, now)
}

func (r *BookingRepository) list(ctx context.Context, op, query string, args ...any) ([]*model.Booking, error) {
	rows, err := r.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return bookings, nil
}

// UpdateStatus применяет переход, только если статус не изменился с момента чтения
func (r *BookingRepository) UpdateStatus(ctx context.Context, change model.StatusChange) error {
	update := `
		UPDATE bookings
		SET status = $3::text,
		    updated_at = $4,
		    confirmed_at = CASE WHEN $3::text = 'confirmed' THEN $4 ELSE confirmed_at END,
		    cancelled_at = CASE WHEN $3::text = 'cancelled' THEN $4 ELSE cancelled_at END,
		    completed_at = CASE WHEN $3::text = 'completed' THEN $4 ELSE completed_at END,
		    cancellation_reason = CASE WHEN $3::text = 'cancelled' THEN $5 ELSE cancellation_reason END
		WHERE id = $1 AND status = $2
		RETURNING trainer_id, client_id
	`

	var counter string
	switch change.To {
	case model.BookingStatusCancelled:
		counter = "cancelled_bookings"
	case model.BookingStatusCompleted:
		counter = "completed_bookings"
	}

	return r.WithTx(ctx, func(q base.Querier) error {
		var trainerID, clientID int64
		err := q.QueryRow(ctx, update, change.BookingID, change.From, change.To, change.At, change.Reason).
			Scan(&trainerID, &clientID)
		if err != nil {
			if base.IsNotFound(err) {
				return r.missingOrStale(ctx, q, change.BookingID)
			}
			return fmt.Errorf("update booking status: %w", err)
		}

		if counter == "" {
			return nil
		}

		query := `UPDATE trainer_clients SET ` + counter + ` = ` + counter + ` + 1 WHERE trainer_id = $1 AND client_id = $2`
		if _, err := q.Exec(ctx, query, trainerID, clientID); err != nil {
			return fmt.Errorf("update trainer client counters: %w", err)
		}
		return nil
	})
}

// Reschedule переносит начало, сбрасывает флаги напоминаний и очищает очередь повторов.
// Отметка о списании не меняется
func (r *BookingRepository) Reschedule(ctx context.Context, id int64, expected model.BookingStatus, oldStart, newStart, at time.Time) error {
	query := `
		UPDATE bookings
		SET start_at = $4,
		    updated_at = $5,
		    reminder_1_sent = FALSE, reminder_1_sent_at = NULL,
		    reminder_2_sent = FALSE, reminder_2_sent_at = NULL,
		    reminder_3_sent = FALSE, reminder_3_sent_at = NULL,
		    client_reminder_2h_sent = FALSE,
		    client_reminder_1h_sent = FALSE,
		    client_reminder_15m_sent = FALSE
		WHERE id = $1 AND status = $2 AND start_at = $3
	`

	return r.WithTx(ctx, func(q base.Querier) error {
		affected, err := base.ExecAffected(ctx, q, query, id, expected, oldStart, newStart, at)
		if err != nil {
			if base.IsUniqueViolation(err, activeSlotIndex) {
				return model.ErrBookingConflict
			}
			return fmt.Errorf("reschedule booking: %w", err)
		}
		if affected == 0 {
			return r.missingOrStale(ctx, q, id)
		}

		// Повторы относятся к старому времени: этапы начнутся заново
		if _, err := q.Exec(ctx, `DELETE FROM notification_retries WHERE booking_id = $1`, id); err != nil {
			return fmt.Errorf("drop notification retries: %w", err)
		}
		return nil
	})
}

type stageGuard struct {
	set  string
	cond string
}

// stageGuards - выставление флага этапа и условие, при котором это допустимо
var stageGuards = map[model.ReminderStage]stageGuard{
	model.StageReminder1: {
		set:  "reminder_1_sent = TRUE, reminder_1_sent_at = $2",
		cond: "reminder_1_sent_at IS NULL",
	},
	model.StageReminder2: {
		set:  "reminder_2_sent = TRUE, reminder_2_sent_at = $2",
		cond: "reminder_2_sent_at IS NULL AND reminder_1_sent_at IS NOT NULL",
	},
	model.StageReminder3: {
		set:  "reminder_3_sent = TRUE, reminder_3_sent_at = $2",
		cond: "reminder_3_sent_at IS NULL AND reminder_2_sent_at IS NOT NULL",
	},
	model.StagePreStart2h: {
		set:  "client_reminder_2h_sent = TRUE",
		cond: "NOT client_reminder_2h_sent AND status = 'confirmed'",
	},
	model.StagePreStart1h: {
		set:  "client_reminder_1h_sent = TRUE",
		cond: "NOT client_reminder_1h_sent AND status = 'confirmed'",
	},
	model.StagePreStart15m: {
		set:  "client_reminder_15m_sent = TRUE",
		cond: "NOT client_reminder_15m_sent AND status = 'confirmed'",
	},
}

// MarkStage выставляет флаг этапа условной записью
func (r *BookingRepository) MarkStage(ctx context.Context, id int64, stage model.ReminderStage, at time.Time) (bool, error) {
	guard, ok := stageGuards[stage]
	if !ok {
		return false, fmt.Errorf("%w: %s", model.ErrUnsupportedStage, stage)
	}

	query := `
		UPDATE bookings
		SET ` + guard.set + `, updated_at = $2
		WHERE id = $1 AND status IN ('pending', 'confirmed') AND ` + guard.cond

	affected, err := base.ExecAffected(ctx, r.Pool(), query, id, at)
	if err != nil {
		return false, fmt.Errorf("mark booking stage %s: %w", stage, err)
	}

	return affected == 1, nil
}

// Charge отмечает списание и уменьшает баланс в одной транзакции.
// Если связи тренер-клиент нет, ничего не меняется
func (r *BookingRepository) Charge(ctx context.Context, id int64, at time.Time) (int, error) {
	markCharged := `
		UPDATE bookings
		SET is_charged = TRUE, charged_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'confirmed' AND NOT is_charged
		RETURNING trainer_id, client_id, price
	`

	debit := `
		UPDATE trainer_clients
		SET balance = balance - $3
		WHERE trainer_id = $1 AND client_id = $2
		RETURNING balance
	`

	var balance int
	err := r.WithTx(ctx, func(q base.Querier) error {
		var trainerID, clientID int64
		var price int
		err := q.QueryRow(ctx, markCharged, id, at).Scan(&trainerID, &clientID, &price)
		if err != nil {
			if base.IsNotFound(err) {
				return r.missingOrStale(ctx, q, id)
			}
			return fmt.Errorf("mark booking charged: %w", err)
		}

		if err := q.QueryRow(ctx, debit, trainerID, clientID, price).Scan(&balance); err != nil {
			if base.IsNotFound(err) {
				return model.ErrLedgerNotFound
			}
			return fmt.Errorf("debit balance: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return balance, nil
}

// missingOrStale различает отсутствующее и изменённое бронирование после неудачной условной записи
func (r *BookingRepository) missingOrStale(ctx context.Context, q base.Querier, id int64) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check booking exists: %w", err)
	}
	if !exists {
		return model.ErrBookingNotFound
	}
	return model.ErrStaleBooking
}
