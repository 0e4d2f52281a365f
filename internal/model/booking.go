package model

import "time"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"   // Ожидает подтверждения клиентом
	BookingStatusConfirmed BookingStatus = "confirmed" // Подтверждено
	BookingStatusCompleted BookingStatus = "completed" // Завершено
	BookingStatusCancelled BookingStatus = "cancelled" // Отменено
	BookingStatusNoShow    BookingStatus = "no_show"   // Клиент не пришёл
)

// IsActive сообщает, занимает ли бронирование время тренера
func (s BookingStatus) IsActive() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

// IsTerminal сообщает, что из статуса нет переходов
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingStatusCompleted, BookingStatusCancelled, BookingStatusNoShow:
		return true
	}
	return false
}

// AutoCancelReason записывается в cancellation_reason при автоотмене
const AutoCancelReason = "Автоотмена: не подтверждено клиентом"

// DefaultDurationMinutes используется, если ни запрос, ни тренер не задали длительность
const DefaultDurationMinutes = 60

type Booking struct {
	ID              int64         `json:"id"`
	TrainerID       int64         `json:"trainer_id"`
	ClientID        int64         `json:"client_id"`
	StartAt         time.Time     `json:"start_at"`
	DurationMinutes int           `json:"duration_minutes"`
	Price           int           `json:"price"` // в копейках
	Status          BookingStatus `json:"status"`
	CreatedBy       Creator       `json:"created_by"`

	Notes              string `json:"notes"`
	CancellationReason string `json:"cancellation_reason"`

	// Напоминания тренера (этапы 1-3). Наличие *SentAt - защита от повторной отправки
	Reminder1Sent   bool       `json:"reminder_1_sent"`
	Reminder1SentAt *time.Time `json:"reminder_1_sent_at"`
	Reminder2Sent   bool       `json:"reminder_2_sent"`
	Reminder2SentAt *time.Time `json:"reminder_2_sent_at"`
	Reminder3Sent   bool       `json:"reminder_3_sent"`
	Reminder3SentAt *time.Time `json:"reminder_3_sent_at"`

	// Напоминания клиенту перед началом подтверждённой тренировки
	ClientReminder2hSent  bool `json:"client_reminder_2h_sent"`
	ClientReminder1hSent  bool `json:"client_reminder_1h_sent"`
	ClientReminder15mSent bool `json:"client_reminder_15m_sent"`

	// Списание с баланса
	IsCharged bool       `json:"is_charged"`
	ChargedAt *time.Time `json:"charged_at"`

	ConfirmedAt *time.Time `json:"confirmed_at"`
	CancelledAt *time.Time `json:"cancelled_at"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// EndAt возвращает время окончания тренировки
func (b *Booking) EndAt() time.Time {
	duration := b.DurationMinutes
	if duration <= 0 {
		duration = DefaultDurationMinutes
	}
	return b.StartAt.Add(time.Duration(duration) * time.Minute)
}

// StageSent сообщает, отмечена ли отправка этапа
func (b *Booking) StageSent(stage ReminderStage) bool {
	switch stage {
	case StageReminder1:
		return b.Reminder1SentAt != nil
	case StageReminder2:
		return b.Reminder2SentAt != nil
	case StageReminder3:
		return b.Reminder3SentAt != nil
	case StagePreStart2h:
		return b.ClientReminder2hSent
	case StagePreStart1h:
		return b.ClientReminder1hSent
	case StagePreStart15m:
		return b.ClientReminder15mSent
	case StageAutoCancel:
		return b.Status == BookingStatusCancelled && b.CancellationReason == AutoCancelReason
	}
	return false
}

// MarkStage выставляет защитный флаг этапа в памяти (после успешной записи в хранилище)
func (b *Booking) MarkStage(stage ReminderStage, at time.Time) {
	switch stage {
	case StageReminder1:
		b.Reminder1Sent, b.Reminder1SentAt = true, &at
	case StageReminder2:
		b.Reminder2Sent, b.Reminder2SentAt = true, &at
	case StageReminder3:
		b.Reminder3Sent, b.Reminder3SentAt = true, &at
	case StagePreStart2h:
		b.ClientReminder2hSent = true
	case StagePreStart1h:
		b.ClientReminder1hSent = true
	case StagePreStart15m:
		b.ClientReminder15mSent = true
	}
}

// ResetReminders сбрасывает все флаги напоминаний (при переносе)
func (b *Booking) ResetReminders() {
	b.Reminder1Sent, b.Reminder1SentAt = false, nil
	b.Reminder2Sent, b.Reminder2SentAt = false, nil
	b.Reminder3Sent, b.Reminder3SentAt = false, nil
	b.ClientReminder2hSent = false
	b.ClientReminder1hSent = false
	b.ClientReminder15mSent = false
}

// StatusChange - условный переход: применяется, только если текущий статус равен From
type StatusChange struct {
	BookingID int64
	From      BookingStatus
	To        BookingStatus
	At        time.Time
	Reason    string // для отмены
}
