package controller

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Freeeeeet/trenergram/internal/model"
	"github.com/Freeeeeet/trenergram/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIDFromCallback(t *testing.T) {
	id, err := ParseIDFromCallback("confirm_attendance:123")
	require.NoError(t, err)
	assert.Equal(t, int64(123), id)

	for _, data := range []string{"confirm_attendance", "confirm_attendance:", "confirm_attendance:abc", "cancel_booking:1:2", "cancel_booking:-5"} {
		_, err := ParseIDFromCallback(data)
		assert.ErrorIs(t, err, ErrInvalidFormat, data)
	}
}

func TestParseTopUp(t *testing.T) {
	req, err := ParseTopUp("topup_confirm:100:200:500000")
	require.NoError(t, err)
	assert.Equal(t, TopUpRequest{TrainerTelegramID: 100, ClientTelegramID: 200, Amount: 500000}, req)

	_, err = ParseTopUp("topup_confirm:100:200")
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = ParseTopUp("topup_confirm:100:x:5")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: &model.TransitionError{From: model.BookingStatusCancelled, To: model.BookingStatusConfirmed}, want: "❌ Действие недоступно: запись уже отменена"},
		{err: fmt.Errorf("wrap: %w", model.ErrBookingNotFound), want: "❌ Бронирование не найдено"},
		{err: ErrNotRegistered, want: "❌ Пользователь не найден. Используйте /start"},
		{err: model.ErrStaleBooking, want: "❌ Запись только что изменилась, попробуйте ещё раз"},
		{err: model.ErrLedgerNotFound, want: "❌ Клиент не связан с тренером"},
		{err: ErrNoTrainers, want: "❌ У вас пока нет тренера"},
		{err: fmt.Errorf("boom"), want: "❌ Произошла ошибка"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, errorMessage(tt.err), tt.err.Error())
	}
}

func TestParseTopUpCommand(t *testing.T) {
	amount, err := ParseTopUpCommand("/topup 1500")
	require.NoError(t, err)
	assert.Equal(t, 150000, amount)

	_, err = ParseTopUpCommand("/topup")
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = ParseTopUpCommand("/topup много")
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = ParseTopUpCommand("/topup -5")
	assert.ErrorIs(t, err, model.ErrInvalidAmount)
}

func TestParseTopUpChoice(t *testing.T) {
	trainerID, amount, err := ParseTopUpChoice("topup_request:7:150000")
	require.NoError(t, err)
	assert.Equal(t, int64(7), trainerID)
	assert.Equal(t, 150000, amount)

	_, _, err = ParseTopUpChoice("topup_request:7")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

// Кнопки запроса пополнения разбираются обработчиками тренера
func TestTopUpRequestButtons(t *testing.T) {
	trainer := notify.Party{ChatID: 100, Name: "Иван"}
	client := notify.Party{ChatID: 200, Name: "Мария"}
	msg := notify.TopUpRequest(trainer, client, 150000, -300000)

	want := TopUpRequest{TrainerTelegramID: 100, ClientTelegramID: 200, Amount: 150000}
	for _, row := range msg.Buttons {
		data := row[0].CallbackData
		req, err := ParseTopUp(data)
		require.NoError(t, err, data)
		assert.Equal(t, want, req)
	}

	prefix, _, _ := strings.Cut(msg.Buttons[0][0].CallbackData, ":")
	assert.Equal(t, notify.CallbackTopUpConfirm, prefix)
	prefix, _, _ = strings.Cut(msg.Buttons[1][0].CallbackData, ":")
	assert.Equal(t, notify.CallbackTopUpPending, prefix)
}
