package notify

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// TelegramGateway отправляет уведомления через Telegram Bot API
type TelegramGateway struct {
	bot *bot.Bot
}

func NewTelegramGateway(b *bot.Bot) *TelegramGateway {
	return &TelegramGateway{bot: b}
}

// Send отправляет HTML сообщение с inline клавиатурой
func (g *TelegramGateway) Send(ctx context.Context, msg Message) error {
	if msg.ChatID == 0 {
		return ErrNoRecipient
	}

	params := &bot.SendMessageParams{
		ChatID:    msg.ChatID,
		Text:      msg.Text,
		ParseMode: models.ParseModeHTML,
	}

	if markup := inlineKeyboard(msg.Buttons); markup != nil {
		params.ReplyMarkup = markup
	}

	if _, err := g.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	return nil
}

// inlineKeyboard собирает клавиатуру, nil если кнопок нет
func inlineKeyboard(rows [][]Button) *models.InlineKeyboardMarkup {
	var keyboard [][]models.InlineKeyboardButton
	for _, row := range rows {
		var buttons []models.InlineKeyboardButton
		for _, b := range row {
			buttons = append(buttons, models.InlineKeyboardButton{
				Text:         b.Text,
				CallbackData: b.CallbackData,
				URL:          b.URL,
			})
		}
		if len(buttons) > 0 {
			keyboard = append(keyboard, buttons)
		}
	}

	if len(keyboard) == 0 {
		return nil
	}

	return &models.InlineKeyboardMarkup{InlineKeyboard: keyboard}
}
