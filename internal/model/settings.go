package model

import (
	"fmt"
	"time"
)

// Значения настроек тренера по умолчанию
const (
	DefaultReminder1DaysBefore  = 1
	DefaultReminder1Time        = "20:00"
	DefaultReminder2HoursAfter  = 1
	DefaultReminder3HoursAfter  = 1
	DefaultAutoCancelHoursAfter = 1
	DefaultCancellationHours    = 24
)

// ReminderSettings - проверенные настройки напоминаний тренера
type ReminderSettings struct {
	Reminder1DaysBefore int
	Reminder1Hour       int
	Reminder1Minute     int
	Reminder2After      time.Duration
	Reminder3After      time.Duration
	AutoCancelAfter     time.Duration
	CancellationHours   int
	Timezone            string
}

// ReminderSettings возвращает настройки с подставленными значениями по умолчанию.
// Вторым значением - список замечаний о некорректных полях
func (u *User) ReminderSettings() (ReminderSettings, []string) {
	var warnings []string

	oneToThree := func(name string, value, def int) int {
		if value < 1 || value > 3 {
			if value != 0 {
				warnings = append(warnings, fmt.Sprintf("%s=%d out of range, using %d", name, value, def))
			}
			return def
		}
		return value
	}

	settings := ReminderSettings{
		Reminder1DaysBefore: oneToThree("reminder_1_days_before", u.Reminder1DaysBefore, DefaultReminder1DaysBefore),
		Reminder2After:      time.Duration(oneToThree("reminder_2_hours_after", u.Reminder2HoursAfter, DefaultReminder2HoursAfter)) * time.Hour,
		Reminder3After:      time.Duration(oneToThree("reminder_3_hours_after", u.Reminder3HoursAfter, DefaultReminder3HoursAfter)) * time.Hour,
		AutoCancelAfter:     time.Duration(oneToThree("auto_cancel_hours_after", u.AutoCancelHoursAfter, DefaultAutoCancelHoursAfter)) * time.Hour,
		CancellationHours:   u.CancellationHours,
		Timezone:            u.Timezone,
	}

	if settings.CancellationHours <= 0 {
		if u.CancellationHours < 0 {
			warnings = append(warnings, fmt.Sprintf("cancellation_hours=%d invalid, using %d", u.CancellationHours, DefaultCancellationHours))
		}
		settings.CancellationHours = DefaultCancellationHours
	}

	hour, minute, err := ParseClock(u.Reminder1Time)
	if err != nil {
		if u.Reminder1Time != "" {
			warnings = append(warnings, fmt.Sprintf("reminder_1_time=%q invalid, using %s", u.Reminder1Time, DefaultReminder1Time))
		}
		hour, minute, _ = ParseClock(DefaultReminder1Time)
	}
	settings.Reminder1Hour = hour
	settings.Reminder1Minute = minute

	return settings, warnings
}

// ParseClock разбирает время в формате HH:MM
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}
