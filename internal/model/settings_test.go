package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_ReminderSettings_Defaults(t *testing.T) {
	settings, warnings := (&User{}).ReminderSettings()

	assert.Empty(t, warnings)
	assert.Equal(t, ReminderSettings{
		Reminder1DaysBefore: 1,
		Reminder1Hour:       20,
		Reminder1Minute:     0,
		Reminder2After:      time.Hour,
		Reminder3After:      time.Hour,
		AutoCancelAfter:     time.Hour,
		CancellationHours:   24,
	}, settings)
}

func TestUser_ReminderSettings_Custom(t *testing.T) {
	u := &User{
		Reminder1DaysBefore:  3,
		Reminder1Time:        "09:30",
		Reminder2HoursAfter:  2,
		Reminder3HoursAfter:  3,
		AutoCancelHoursAfter: 2,
		CancellationHours:    12,
		Timezone:             "Asia/Novosibirsk",
	}

	settings, warnings := u.ReminderSettings()
	assert.Empty(t, warnings)
	assert.Equal(t, 3, settings.Reminder1DaysBefore)
	assert.Equal(t, 9, settings.Reminder1Hour)
	assert.Equal(t, 30, settings.Reminder1Minute)
	assert.Equal(t, 2*time.Hour, settings.Reminder2After)
	assert.Equal(t, 3*time.Hour, settings.Reminder3After)
	assert.Equal(t, 2*time.Hour, settings.AutoCancelAfter)
	assert.Equal(t, 12, settings.CancellationHours)
	assert.Equal(t, "Asia/Novosibirsk", settings.Timezone)
}

func TestUser_ReminderSettings_OutOfRange(t *testing.T) {
	u := &User{
		Reminder1DaysBefore:  7,
		Reminder1Time:        "8 pm",
		Reminder2HoursAfter:  -1,
		Reminder3HoursAfter:  4,
		AutoCancelHoursAfter: 1,
		CancellationHours:    -5,
	}

	settings, warnings := u.ReminderSettings()
	assert.Len(t, warnings, 5)
	assert.Equal(t, 1, settings.Reminder1DaysBefore)
	assert.Equal(t, 20, settings.Reminder1Hour)
	assert.Equal(t, time.Hour, settings.Reminder2After)
	assert.Equal(t, time.Hour, settings.Reminder3After)
	assert.Equal(t, 24, settings.CancellationHours)
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("07:45")
	require.NoError(t, err)
	assert.Equal(t, 7, h)
	assert.Equal(t, 45, m)

	_, _, err = ParseClock("24:00")
	assert.Error(t, err)
}

func TestUser_PreStartEnabled(t *testing.T) {
	u := &User{ClientReminder2hEnabled: true, ClientReminder15mEnabled: true}

	assert.True(t, u.PreStartEnabled(StagePreStart2h))
	assert.False(t, u.PreStartEnabled(StagePreStart1h))
	assert.True(t, u.PreStartEnabled(StagePreStart15m))
	assert.False(t, u.PreStartEnabled(StageReminder1))
}
