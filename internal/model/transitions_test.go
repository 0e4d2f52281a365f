package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	statuses := []BookingStatus{
		BookingStatusPending,
		BookingStatusConfirmed,
		BookingStatusCompleted,
		BookingStatusCancelled,
		BookingStatusNoShow,
	}

	allowed := map[[2]BookingStatus]bool{
		{BookingStatusPending, BookingStatusConfirmed}:   true,
		{BookingStatusPending, BookingStatusCancelled}:   true,
		{BookingStatusConfirmed, BookingStatusCancelled}: true,
		{BookingStatusConfirmed, BookingStatusCompleted}: true,
		{BookingStatusConfirmed, BookingStatusNoShow}:    true,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			want := allowed[[2]BookingStatus{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestValidateTransition(t *testing.T) {
	require.NoError(t, ValidateTransition(BookingStatusPending, BookingStatusConfirmed))

	err := ValidateTransition(BookingStatusCompleted, BookingStatusCancelled)
	var tErr *TransitionError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, BookingStatusCompleted, tErr.From)
	assert.Equal(t, "invalid booking transition completed -> cancelled", err.Error())
}

func TestBookingStatus(t *testing.T) {
	assert.True(t, BookingStatusPending.IsActive())
	assert.True(t, BookingStatusConfirmed.IsActive())
	assert.False(t, BookingStatusCancelled.IsActive())

	assert.True(t, BookingStatusNoShow.IsTerminal())
	assert.False(t, BookingStatusConfirmed.IsTerminal())
}

func TestBooking_StageGuards(t *testing.T) {
	now := time.Date(2025, 5, 9, 20, 0, 0, 0, time.UTC)
	b := &Booking{Status: BookingStatusConfirmed, IsCharged: true}

	for _, stage := range []ReminderStage{StageReminder1, StageReminder2, StageReminder3, StagePreStart2h, StagePreStart1h, StagePreStart15m} {
		require.False(t, b.StageSent(stage), stage)
		b.MarkStage(stage, now)
		assert.True(t, b.StageSent(stage), stage)
	}
	assert.Equal(t, now, *b.Reminder2SentAt)

	b.ResetReminders()
	for _, stage := range []ReminderStage{StageReminder1, StageReminder2, StageReminder3, StagePreStart2h, StagePreStart1h, StagePreStart15m} {
		assert.False(t, b.StageSent(stage), stage)
	}
	assert.True(t, b.IsCharged)
}

func TestParseCreator(t *testing.T) {
	assert.Equal(t, CreatorTrainer, ParseCreator("trainer"))
	assert.Equal(t, CreatorClient, ParseCreator("client"))
	assert.Equal(t, CreatorUnknown, ParseCreator(""))
	assert.Equal(t, CreatorUnknown, ParseCreator("admin"))
}
