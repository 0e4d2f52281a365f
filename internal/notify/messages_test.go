package notify

import (
	"testing"
	"time"

	"github.com/Freeeeeet/trenergram/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBooking(t *testing.T) (*model.Booking, *time.Location) {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	return &model.Booking{
		ID:              42,
		StartAt:         time.Date(2025, 5, 20, 15, 0, 0, 0, time.UTC),
		DurationMinutes: 90,
		Price:           300000,
	}, loc
}

var (
	trainer = Party{ChatID: 100, Name: "Иван"}
	client  = Party{ChatID: 200, Name: "Мария <VIP>"}
)

func TestReminder_Stages(t *testing.T) {
	b, loc := testBooking(t)

	msg, err := Reminder(model.StageReminder1, b, client, loc)
	require.NoError(t, err)
	assert.Equal(t, int64(200), msg.ChatID)
	assert.Contains(t, msg.Text, "20.05.2025 в 18:00")
	require.Len(t, msg.Buttons, 1)
	assert.Equal(t, "confirm_attendance:42", msg.Buttons[0][0].CallbackData)
	assert.Equal(t, "cancel_booking:42", msg.Buttons[0][1].CallbackData)

	msg, err = Reminder(model.StageReminder2, b, client, loc)
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "18:00-19:30")

	msg, err = Reminder(model.StageReminder3, b, client, loc)
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "будет отменена")

	_, err = Reminder(model.StagePreStart1h, b, client, loc)
	assert.ErrorIs(t, err, model.ErrUnsupportedStage)
}

func TestPreStart(t *testing.T) {
	b, loc := testBooking(t)

	msg, err := PreStart(model.StagePreStart15m, b, client, trainer, loc)
	require.NoError(t, err)
	assert.Equal(t, KindPreStart, msg.Kind)
	assert.Contains(t, msg.Text, "через 15 минут")
	assert.Empty(t, msg.Buttons)

	_, err = PreStart(model.StageReminder1, b, client, trainer, loc)
	assert.ErrorIs(t, err, model.ErrUnsupportedStage)
}

func TestCancelled_RecipientAndLateMarker(t *testing.T) {
	b, loc := testBooking(t)

	byTrainer := Cancelled(b, trainer, client, true, false, "", loc)
	assert.Equal(t, client.ChatID, byTrainer.ChatID)
	assert.NotContains(t, byTrainer.Text, "Поздняя отмена")

	byClient := Cancelled(b, trainer, client, false, true, "заболел", loc)
	assert.Equal(t, trainer.ChatID, byClient.ChatID)
	assert.Contains(t, byClient.Text, "Поздняя отмена")
	assert.Contains(t, byClient.Text, "заболел")
	assert.Contains(t, byClient.Text, "Мария &lt;VIP&gt;")
}

func TestRescheduled(t *testing.T) {
	b, loc := testBooking(t)
	old := b.StartAt.Add(-24 * time.Hour)

	msg := Rescheduled(b, old, trainer, client, true, loc)
	assert.Equal(t, client.ChatID, msg.ChatID)
	assert.Contains(t, msg.Text, "19.05.2025 в 18:00")
	assert.Contains(t, msg.Text, "20.05.2025 в 18:00")
	require.Len(t, msg.Buttons, 1)
	assert.Equal(t, "accept_reschedule:42", msg.Buttons[0][0].CallbackData)

	msg = Rescheduled(b, old, trainer, client, false, loc)
	assert.Equal(t, trainer.ChatID, msg.ChatID)
	assert.Empty(t, msg.Buttons)
}

func TestBookingRequest(t *testing.T) {
	b, loc := testBooking(t)

	msg := BookingRequest(b, trainer, client, loc)
	assert.Equal(t, trainer.ChatID, msg.ChatID)
	assert.Contains(t, msg.Text, "3000 ₽")
	assert.Equal(t, "confirm_booking:42", msg.Buttons[0][0].CallbackData)

	ack := BookingRequestAck(b, trainer, client, loc)
	assert.Equal(t, client.ChatID, ack.ChatID)
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "3000 ₽", FormatPrice(300000))
	assert.Equal(t, "12.50 ₽", FormatPrice(1250))
	assert.Equal(t, "-30 ₽", FormatPrice(-3000))
}

func TestInlineKeyboard(t *testing.T) {
	assert.Nil(t, inlineKeyboard(nil))
	assert.Nil(t, inlineKeyboard([][]Button{{}}))

	markup := inlineKeyboard(attendanceButtons(7))
	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 1)
	assert.Equal(t, "confirm_attendance:7", markup.InlineKeyboard[0][0].CallbackData)
}

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "notification.reminder", RoutingKey(Message{Kind: KindReminder}))
	assert.Equal(t, "notification.generic", RoutingKey(Message{}))
}

func TestTopUpRequest(t *testing.T) {
	msg := TopUpRequest(Party{ChatID: 100, Name: "Иван"}, Party{ChatID: 200, Name: "<Мария>"}, 150050, -300000)

	assert.Equal(t, int64(100), msg.ChatID)
	assert.Equal(t, KindTopUpRequest, msg.Kind)
	assert.Contains(t, msg.Text, "&lt;Мария&gt;")
	assert.Contains(t, msg.Text, "1500.50 ₽")
	assert.Contains(t, msg.Text, "-3000 ₽")
	assert.Equal(t, "topup_confirm:100:200:150050", msg.Buttons[0][0].CallbackData)
	assert.Equal(t, "topup_pending:100:200:150050", msg.Buttons[1][0].CallbackData)
}
