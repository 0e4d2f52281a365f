package model

import "time"

type UserRole string

const (
	UserRoleTrainer UserRole = "trainer"
	UserRoleClient  UserRole = "client"
)

type User struct {
	ID         int64     `json:"id"`
	TelegramID int64     `json:"telegram_id"`
	Role       UserRole  `json:"role"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`

	// Поля тренера (у клиентов не используются)
	Price                int    `json:"price"`            // цена тренировки по умолчанию, в копейках
	SessionDuration      int    `json:"session_duration"` // минуты
	Timezone             string `json:"timezone"`
	CancellationHours    int    `json:"cancellation_hours"`     // за сколько часов до начала списывается баланс
	Reminder1DaysBefore  int    `json:"reminder_1_days_before"` // 1, 2 или 3
	Reminder1Time        string `json:"reminder_1_time"`        // HH:MM по времени тренера
	Reminder2HoursAfter  int    `json:"reminder_2_hours_after"` // 1, 2 или 3
	Reminder3HoursAfter  int    `json:"reminder_3_hours_after"` // 1, 2 или 3
	AutoCancelHoursAfter int    `json:"auto_cancel_hours_after"`

	// Поля клиента
	ClientReminder2hEnabled  bool `json:"client_reminder_2h_enabled"`
	ClientReminder1hEnabled  bool `json:"client_reminder_1h_enabled"`
	ClientReminder15mEnabled bool `json:"client_reminder_15m_enabled"`
}

func (u *User) IsTrainer() bool {
	return u.Role == UserRoleTrainer
}

func (u *User) IsClient() bool {
	return u.Role == UserRoleClient
}

// PreStartEnabled сообщает, включено ли у клиента напоминание перед началом
func (u *User) PreStartEnabled(stage ReminderStage) bool {
	switch stage {
	case StagePreStart2h:
		return u.ClientReminder2hEnabled
	case StagePreStart1h:
		return u.ClientReminder1hEnabled
	case StagePreStart15m:
		return u.ClientReminder15mEnabled
	}
	return false
}
