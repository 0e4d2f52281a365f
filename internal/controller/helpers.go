package controller

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Freeeeeet/trenergram/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

var (
	ErrInvalidFormat  = errors.New("invalid callback format")
	ErrNotRegistered  = errors.New("user is not registered")
	ErrTopUpForbidden = errors.New("top up is allowed only to the trainer")
	ErrNoTrainers     = errors.New("client has no trainers")
)

// TopUpRequest - разобранный topup_confirm|topup_pending:<trainer_tg>:<client_tg>:<amount>, сумма в копейках
type TopUpRequest struct {
	TrainerTelegramID int64
	ClientTelegramID  int64
	Amount            int
}

// ParseIDFromCallback извлекает ID из callback data
// Например: "confirm_attendance:123" -> 123
func ParseIDFromCallback(data string) (int64, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 2 {
		return 0, ErrInvalidFormat
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidFormat
	}
	return id, nil
}

// ParseTopUp разбирает callback пополнения баланса
func ParseTopUp(data string) (TopUpRequest, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 4 {
		return TopUpRequest{}, ErrInvalidFormat
	}

	trainerTG, err1 := strconv.ParseInt(parts[1], 10, 64)
	clientTG, err2 := strconv.ParseInt(parts[2], 10, 64)
	amount, err3 := strconv.Atoi(parts[3])
	if err1 != nil || err2 != nil || err3 != nil {
		return TopUpRequest{}, ErrInvalidFormat
	}

	return TopUpRequest{
		TrainerTelegramID: trainerTG,
		ClientTelegramID:  clientTG,
		Amount:            amount,
	}, nil
}

// ParseTopUpCommand разбирает "/topup <рубли>" и возвращает сумму в копейках
func ParseTopUpCommand(text string) (int, error) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return 0, ErrInvalidFormat
	}
	rubles, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, ErrInvalidFormat
	}
	if rubles <= 0 {
		return 0, model.ErrInvalidAmount
	}
	return rubles * 100, nil
}

// ParseTopUpChoice разбирает выбор тренера topup_request:<trainer_id>:<amount>
func ParseTopUpChoice(data string) (int64, int, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 {
		return 0, 0, ErrInvalidFormat
	}
	trainerID, err1 := strconv.ParseInt(parts[1], 10, 64)
	amount, err2 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || trainerID <= 0 {
		return 0, 0, ErrInvalidFormat
	}
	return trainerID, amount, nil
}

// errorMessage возвращает пользовательское сообщение для ошибки
func errorMessage(err error) string {
	var tErr *model.TransitionError
	switch {
	case errors.As(err, &tErr):
		return fmt.Sprintf("❌ Действие недоступно: запись уже %s", statusText(tErr.From))
	case errors.Is(err, ErrNotRegistered), errors.Is(err, model.ErrUserNotFound):
		return "❌ Пользователь не найден. Используйте /start"
	case errors.Is(err, ErrInvalidFormat):
		return "❌ Неверный формат данных"
	case errors.Is(err, ErrTopUpForbidden):
		return "❌ Пополнить баланс может только тренер"
	case errors.Is(err, ErrNoTrainers):
		return "❌ У вас пока нет тренера"
	case errors.Is(err, model.ErrNotTrainer):
		return "❌ Пользователь не является тренером"
	case errors.Is(err, model.ErrBookingNotFound):
		return "❌ Бронирование не найдено"
	case errors.Is(err, model.ErrNotParticipant):
		return "❌ Это не ваша запись"
	case errors.Is(err, model.ErrStaleBooking):
		return "❌ Запись только что изменилась, попробуйте ещё раз"
	case errors.Is(err, model.ErrBookingConflict):
		return "❌ Это время уже занято"
	case errors.Is(err, model.ErrBookingInPast):
		return "❌ Нельзя записаться на прошедшее время"
	case errors.Is(err, model.ErrBookingInactive):
		return "❌ Запись уже не активна"
	case errors.Is(err, model.ErrLedgerNotFound):
		return "❌ Клиент не связан с тренером"
	case errors.Is(err, model.ErrInvalidAmount):
		return "❌ Сумма должна быть больше нуля"
	default:
		return "❌ Произошла ошибка"
	}
}

func statusText(s model.BookingStatus) string {
	switch s {
	case model.BookingStatusPending:
		return "ожидает подтверждения"
	case model.BookingStatusConfirmed:
		return "подтверждена"
	case model.BookingStatusCompleted:
		return "завершена"
	case model.BookingStatusCancelled:
		return "отменена"
	case model.BookingStatusNoShow:
		return "отмечена как неявка"
	}
	return string(s)
}

// answerCallback отвечает на callback query (без alert)
func answerCallback(ctx context.Context, b *bot.Bot, callbackID string, text string) {
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       false,
	})
}

// answerCallbackAlert отвечает на callback query с alert (всплывающее окно)
func answerCallbackAlert(ctx context.Context, b *bot.Bot, callbackID string, text string) {
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       true,
	})
}

// messageFromCallback извлекает сообщение из callback query
func messageFromCallback(callback *models.CallbackQuery) *models.Message {
	if callback.Message.Message != nil {
		return callback.Message.Message
	}
	return nil
}
