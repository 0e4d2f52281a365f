package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/trenergram/internal/model"
	"github.com/Freeeeeet/trenergram/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `
	id, telegram_id, role, name, created_at,
	price, session_duration, timezone, cancellation_hours,
	reminder_1_days_before, reminder_1_time, reminder_2_hours_after, reminder_3_hours_after,
	auto_cancel_hours_after,
	client_reminder_2h_enabled, client_reminder_1h_enabled, client_reminder_15m_enabled`

type UserRepository struct {
	*base.Repository
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{Repository: base.NewRepository(pool)}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.TelegramID,
		&u.Role,
		&u.Name,
		&u.CreatedAt,
		&u.Price,
		&u.SessionDuration,
		&u.Timezone,
		&u.CancellationHours,
		&u.Reminder1DaysBefore,
		&u.Reminder1Time,
		&u.Reminder2HoursAfter,
		&u.Reminder3HoursAfter,
		&u.AutoCancelHoursAfter,
		&u.ClientReminder2hEnabled,
		&u.ClientReminder1hEnabled,
		&u.ClientReminder15mEnabled,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Register создаёт пользователя или обновляет имя уже существующего.
// Роль при повторной регистрации не меняется
func (r *UserRepository) Register(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (telegram_id, role, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (telegram_id) DO UPDATE SET name = EXCLUDED.name
		RETURNING ` + userColumns

	registered, err := scanUser(r.Pool().QueryRow(ctx, query, user.TelegramID, user.Role, user.Name))
	if err != nil {
		return fmt.Errorf("register user: %w", err)
	}

	*user = *registered
	return nil
}

// GetByTelegramID получает пользователя по Telegram ID
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`

	user, err := scanUser(r.Pool().QueryRow(ctx, query, telegramID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil // Пользователь не найден
		}
		return nil, fmt.Errorf("get user by telegram id: %w", err)
	}

	return user, nil
}

// GetByID получает пользователя по ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}

	return user, nil
}
