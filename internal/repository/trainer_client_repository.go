package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/trenergram/internal/model"
	"github.com/Freeeeeet/trenergram/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TrainerClientRepository - балансы клиентов у тренеров
type TrainerClientRepository struct {
	*base.Repository
}

func NewTrainerClientRepository(pool *pgxpool.Pool) *TrainerClientRepository {
	return &TrainerClientRepository{Repository: base.NewRepository(pool)}
}

const trainerClientColumns = `id, trainer_id, client_id, balance, total_bookings, completed_bookings, cancelled_bookings, last_booking_at, created_at`

func scanTrainerClient(row pgx.Row) (*model.TrainerClient, error) {
	var tc model.TrainerClient
	err := row.Scan(
		&tc.ID,
		&tc.TrainerID,
		&tc.ClientID,
		&tc.Balance,
		&tc.TotalBookings,
		&tc.CompletedBookings,
		&tc.CancelledBookings,
		&tc.LastBookingAt,
		&tc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tc, nil
}

// Get получает связь тренер-клиент
func (r *TrainerClientRepository) Get(ctx context.Context, trainerID, clientID int64) (*model.TrainerClient, error) {
	query := `SELECT ` + trainerClientColumns + `
		FROM trainer_clients
		WHERE trainer_id = $1 AND client_id = $2
	`

	tc, err := scanTrainerClient(r.Pool().QueryRow(ctx, query, trainerID, clientID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get trainer client: %w", err)
	}

	return tc, nil
}

// ListByClient получает всех тренеров клиента, последние записи первыми
func (r *TrainerClientRepository) ListByClient(ctx context.Context, clientID int64) ([]*model.TrainerClient, error) {
	query := `SELECT ` + trainerClientColumns + `
		FROM trainer_clients
		WHERE client_id = $1
		ORDER BY last_booking_at DESC NULLS LAST, id ASC
	`

	rows, err := r.Pool().Query(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("list client trainers: %w", err)
	}
	defer rows.Close()

	var result []*model.TrainerClient
	for rows.Next() {
		tc, err := scanTrainerClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trainer client: %w", err)
		}
		result = append(result, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list client trainers: %w", err)
	}

	return result, nil
}

// TopUp увеличивает баланс клиента и возвращает новый баланс
func (r *TrainerClientRepository) TopUp(ctx context.Context, trainerID, clientID int64, amount int) (int, error) {
	query := `
		UPDATE trainer_clients
		SET balance = balance + $3
		WHERE trainer_id = $1 AND client_id = $2
		RETURNING balance
	`

	var balance int
	err := r.Pool().QueryRow(ctx, query, trainerID, clientID, amount).Scan(&balance)
	if err != nil {
		if base.IsNotFound(err) {
			return 0, model.ErrLedgerNotFound
		}
		return 0, fmt.Errorf("top up balance: %w", err)
	}

	return balance, nil
}
