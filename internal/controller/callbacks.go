package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Freeeeeet/trenergram/internal/model"
	"github.com/Freeeeeet/trenergram/internal/notify"
	"github.com/Freeeeeet/trenergram/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// Причина отмены, если клиент не принял перенос
const declineRescheduleReason = "Клиент не принял новое время"

// HandleCallbackQuery распределяет нажатия на кнопки уведомлений
func (c *BotController) HandleCallbackQuery(ctx context.Context, b *bot.Bot, update *models.Update) {
	callback := update.CallbackQuery
	if callback == nil {
		return
	}

	data := callback.Data
	prefix, _, _ := strings.Cut(data, ":")

	c.logger.Info("Routing callback",
		zap.String("data", data),
		zap.Int64("user_id", callback.From.ID))

	actor, err := c.actor(ctx, callback.From.ID)
	if err != nil {
		c.fail(ctx, b, callback, err)
		return
	}

	var reply string
	switch prefix {
	case notify.CallbackConfirmAttendance, notify.CallbackConfirmBooking:
		reply, err = c.handleConfirm(ctx, actor, data)
	case notify.CallbackCancelBooking:
		reply, err = c.handleCancel(ctx, actor, data, "")
	case notify.CallbackAcceptReschedule:
		reply, err = c.handleAcceptReschedule(ctx, actor, data)
	case notify.CallbackDeclineReschedule:
		reply, err = c.handleCancel(ctx, actor, data, declineRescheduleReason)
	case notify.CallbackTopUpConfirm:
		reply, err = c.handleTopUp(ctx, actor, data)
	case notify.CallbackTopUpRequest:
		reply, err = c.handleTopUpRequest(ctx, actor, data)
	case notify.CallbackTopUpPending:
		reply, err = c.handleTopUpPending(ctx, actor, data)
		if err == nil {
			// Кнопка подтверждения остаётся: деньги могут прийти позже
			answerCallback(ctx, b, callback.ID, "ℹ️ Уведомление сохранено")
			c.markPending(ctx, b, callback, reply, strings.Replace(data, notify.CallbackTopUpPending, notify.CallbackTopUpConfirm, 1))
			return
		}
	default:
		c.logger.Warn("Unknown callback", zap.String("data", data))
		answerCallback(ctx, b, callback.ID, "")
		return
	}

	if err != nil {
		c.fail(ctx, b, callback, err)
		return
	}

	answerCallback(ctx, b, callback.ID, reply)
	c.markHandled(ctx, b, callback, reply)
}

func (c *BotController) actor(ctx context.Context, telegramID int64) (*model.User, error) {
	user, err := c.users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrNotRegistered
	}
	return user, nil
}

func (c *BotController) handleConfirm(ctx context.Context, actor *model.User, data string) (string, error) {
	bookingID, err := ParseIDFromCallback(data)
	if err != nil {
		return "", err
	}

	if _, err := c.lifecycle.Confirm(ctx, bookingID, actor.ID); err != nil {
		return "", err
	}
	return "✅ Тренировка подтверждена", nil
}

func (c *BotController) handleCancel(ctx context.Context, actor *model.User, data, reason string) (string, error) {
	bookingID, err := ParseIDFromCallback(data)
	if err != nil {
		return "", err
	}

	result, err := c.lifecycle.Cancel(ctx, service.CancelParams{
		BookingID: bookingID,
		ActorID:   actor.ID,
		Reason:    reason,
	})
	if err != nil {
		return "", err
	}

	if result.Late {
		return "❌ Запись отменена. ⚠️ Отмена позже установленного срока", nil
	}
	return "❌ Запись отменена", nil
}

// handleAcceptReschedule подтверждает запись на новое время.
// Уже подтверждённая запись остаётся подтверждённой
func (c *BotController) handleAcceptReschedule(ctx context.Context, actor *model.User, data string) (string, error) {
	bookingID, err := ParseIDFromCallback(data)
	if err != nil {
		return "", err
	}

	_, err = c.lifecycle.Confirm(ctx, bookingID, actor.ID)
	var tErr *model.TransitionError
	if errors.As(err, &tErr) && tErr.From == model.BookingStatusConfirmed {
		err = nil
	}
	if err != nil {
		return "", err
	}
	return "✅ Новое время подтверждено", nil
}

// trainerTopUp проверяет, что кнопку пополнения нажал адресат-тренер, и находит клиента
func (c *BotController) trainerTopUp(ctx context.Context, actor *model.User, data string) (TopUpRequest, *model.User, error) {
	req, err := ParseTopUp(data)
	if err != nil {
		return req, nil, err
	}
	if !actor.IsTrainer() || actor.TelegramID != req.TrainerTelegramID {
		return req, nil, ErrTopUpForbidden
	}

	client, err := c.users.GetByTelegramID(ctx, req.ClientTelegramID)
	if err != nil {
		return req, nil, fmt.Errorf("get client: %w", err)
	}
	if client == nil {
		return req, nil, model.ErrUserNotFound
	}
	return req, client, nil
}

func (c *BotController) handleTopUp(ctx context.Context, actor *model.User, data string) (string, error) {
	req, client, err := c.trainerTopUp(ctx, actor, data)
	if err != nil {
		return "", err
	}

	balance, err := c.ledger.TopUp(ctx, actor.ID, client.ID, req.Amount)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("✅ Пополнение на %s подтверждено. Баланс клиента: %s → %s",
		notify.FormatPrice(req.Amount), notify.FormatPrice(balance-req.Amount), notify.FormatPrice(balance)), nil
}

func (c *BotController) handleTopUpPending(ctx context.Context, actor *model.User, data string) (string, error) {
	_, client, err := c.trainerTopUp(ctx, actor, data)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("⏳ Ожидание поступления средств от %s. Подтвердите пополнение, когда деньги поступят", client.Name), nil
}

// handleTopUpRequest - клиент выбрал тренера, которому сообщить о переводе
func (c *BotController) handleTopUpRequest(ctx context.Context, actor *model.User, data string) (string, error) {
	trainerID, amount, err := ParseTopUpChoice(data)
	if err != nil {
		return "", err
	}
	if err := c.ledger.RequestTopUp(ctx, trainerID, actor.ID, amount); err != nil {
		return "", err
	}
	return topUpSentText(amount), nil
}

// fail логирует ошибку и показывает пользователю понятный текст
func (c *BotController) fail(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery, err error) {
	c.logger.Warn("Callback failed",
		zap.String("data", callback.Data),
		zap.Int64("telegram_id", callback.From.ID),
		zap.Error(err))
	answerCallbackAlert(ctx, b, callback.ID, errorMessage(err))
}

// markHandled дописывает результат к исходному сообщению и убирает кнопки
func (c *BotController) markHandled(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery, reply string) {
	msg := messageFromCallback(callback)
	if msg == nil || reply == "" {
		return
	}

	_, err := b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
		Text:      msg.Text + "\n\n" + reply,
	})
	if err != nil {
		c.logger.Debug("Failed to edit callback message", zap.Error(err))
	}
}

// markPending дописывает результат и оставляет только кнопку подтверждения
func (c *BotController) markPending(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery, reply, confirmData string) {
	msg := messageFromCallback(callback)
	if msg == nil {
		return
	}

	_, err := b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
		Text:      msg.Text + "\n\n" + reply,
		ReplyMarkup: &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{{
				{Text: "✅ Подтвердить поступление", CallbackData: confirmData},
			}},
		},
	})
	if err != nil {
		c.logger.Debug("Failed to edit callback message", zap.Error(err))
	}
}
