package model

import "time"

// ReminderStage идентифицирует уведомление, защищённое отдельным флагом
type ReminderStage string

const (
	StageReminder1   ReminderStage = "reminder_1"
	StageReminder2   ReminderStage = "reminder_2"
	StageReminder3   ReminderStage = "reminder_3"
	StageAutoCancel  ReminderStage = "auto_cancel"
	StagePreStart2h  ReminderStage = "pre_start_2h"
	StagePreStart1h  ReminderStage = "pre_start_1h"
	StagePreStart15m ReminderStage = "pre_start_15m"
)

// PreStartReminder - фиксированное напоминание перед началом подтверждённой тренировки
type PreStartReminder struct {
	Stage     ReminderStage
	Before    time.Duration
	Tolerance time.Duration
}

// PreStartReminders - 2ч и 1ч с окном ±5 минут, 15 минут с окном ±2 минуты
var PreStartReminders = []PreStartReminder{
	{Stage: StagePreStart2h, Before: 2 * time.Hour, Tolerance: 5 * time.Minute},
	{Stage: StagePreStart1h, Before: time.Hour, Tolerance: 5 * time.Minute},
	{Stage: StagePreStart15m, Before: 15 * time.Minute, Tolerance: 2 * time.Minute},
}

type RetryState string

const (
	RetryStatePending   RetryState = "pending"
	RetryStateDelivered RetryState = "delivered"
	RetryStateExhausted RetryState = "exhausted"
)

// NotificationRetry - повторная доставка уведомления для уже отмеченного этапа
type NotificationRetry struct {
	ID            int64         `json:"id"`
	BookingID     int64         `json:"booking_id"`
	Stage         ReminderStage `json:"stage"`
	RecipientID   int64         `json:"recipient_id"` // users.id
	Attempts      int           `json:"attempts"`
	LastError     string        `json:"last_error"`
	NextAttemptAt time.Time     `json:"next_attempt_at"`
	State         RetryState    `json:"state"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
