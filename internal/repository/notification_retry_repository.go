package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/trenergram/internal/model"
	"github.com/Freeeeeet/trenergram/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

const retryColumns = `id, booking_id, stage, recipient_id, attempts, last_error, next_attempt_at, state, created_at, updated_at`

type NotificationRetryRepository struct {
	*base.Repository
}

func NewNotificationRetryRepository(pool *pgxpool.Pool) *NotificationRetryRepository {
	return &NotificationRetryRepository{Repository: base.NewRepository(pool)}
}

// Enqueue ставит повтор в очередь. Ожидающий повтор той же пары (booking_id, stage)
// не трогается, завершённый (доставлен или исчерпан) взводится заново
func (r *NotificationRetryRepository) Enqueue(ctx context.Context, retry *model.NotificationRetry) error {
	query := `
		INSERT INTO notification_retries (booking_id, stage, recipient_id, attempts, last_error, next_attempt_at, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (booking_id, stage) DO UPDATE
		SET recipient_id = EXCLUDED.recipient_id,
		    attempts = EXCLUDED.attempts,
		    last_error = EXCLUDED.last_error,
		    next_attempt_at = EXCLUDED.next_attempt_at,
		    state = EXCLUDED.state,
		    updated_at = NOW()
		WHERE notification_retries.state <> 'pending'
	`

	_, err := r.Pool().Exec(
		ctx, query,
		retry.BookingID,
		retry.Stage,
		retry.RecipientID,
		retry.Attempts,
		retry.LastError,
		retry.NextAttemptAt,
		retry.State,
	)
	if err != nil {
		return fmt.Errorf("enqueue notification retry: %w", err)
	}

	return nil
}

// ClaimNext забирает самый старый наступивший повтор: next_attempt_at сдвигается на leaseUntil,
// поэтому параллельный проход его не увидит. Возвращает nil, если забирать нечего.
// NextAttemptAt результата - метка захвата для MarkDelivered и MarkFailed
func (r *NotificationRetryRepository) ClaimNext(ctx context.Context, now, leaseUntil time.Time) (*model.NotificationRetry, error) {
	query := `
		UPDATE notification_retries
		SET next_attempt_at = $2, updated_at = $1
		WHERE id = (
			SELECT id FROM notification_retries
			WHERE state = 'pending' AND next_attempt_at <= $1
			ORDER BY next_attempt_at ASC, id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + retryColumns

	var item model.NotificationRetry
	err := r.Pool().QueryRow(ctx, query, now, leaseUntil).Scan(
		&item.ID,
		&item.BookingID,
		&item.Stage,
		&item.RecipientID,
		&item.Attempts,
		&item.LastError,
		&item.NextAttemptAt,
		&item.State,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim notification retry: %w", err)
	}

	return &item, nil
}

// MarkDelivered отмечает повтор доставленным, если захват lease ещё действует
func (r *NotificationRetryRepository) MarkDelivered(ctx context.Context, id int64, lease, at time.Time) error {
	query := `
		UPDATE notification_retries
		SET state = 'delivered', updated_at = $3
		WHERE id = $1 AND state = 'pending' AND next_attempt_at = $2
	`

	affected, err := base.ExecAffected(ctx, r.Pool(), query, id, lease, at)
	if err != nil {
		return fmt.Errorf("mark retry delivered: %w", err)
	}
	if affected == 0 {
		return r.missingOrLost(ctx, id)
	}

	return nil
}

// MarkFailed сохраняет неудачную попытку, если захват lease ещё действует
func (r *NotificationRetryRepository) MarkFailed(ctx context.Context, id int64, lease time.Time, attempts int, lastError string, next time.Time, state model.RetryState) error {
	query := `
		UPDATE notification_retries
		SET attempts = $3, last_error = $4, next_attempt_at = $5, state = $6, updated_at = NOW()
		WHERE id = $1 AND state = 'pending' AND next_attempt_at = $2
	`

	affected, err := base.ExecAffected(ctx, r.Pool(), query, id, lease, attempts, lastError, next, state)
	if err != nil {
		return fmt.Errorf("mark retry failed: %w", err)
	}
	if affected == 0 {
		return r.missingOrLost(ctx, id)
	}

	return nil
}

func (r *NotificationRetryRepository) missingOrLost(ctx context.Context, id int64) error {
	var exists bool
	if err := r.Pool().QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM notification_retries WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check retry exists: %w", err)
	}
	if !exists {
		return model.ErrRetryNotFound
	}
	return model.ErrRetryClaimLost
}
