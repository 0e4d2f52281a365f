package notify

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/Freeeeeet/trenergram/internal/model"
)

// Виды сообщений, используются как ключ маршрутизации
const (
	KindReminder          = "reminder"
	KindPreStart          = "pre_start"
	KindAutoCancel        = "auto_cancel"
	KindBookingRequest    = "booking_request"
	KindBookingRequestAck = "booking_request_ack"
	KindBookingConfirmed  = "booking_confirmed"
	KindBookingCancelled  = "booking_cancelled"
	KindRescheduled       = "booking_rescheduled"
	KindTopUpRequest      = "topup_request"
)

// Party - участник бронирования для текста сообщения
type Party struct {
	ChatID int64
	Name   string
}

// PartyOf строит Party из пользователя
func PartyOf(u *model.User) Party {
	return Party{ChatID: u.TelegramID, Name: u.Name}
}

func callback(prefix string, id int64) string {
	return fmt.Sprintf("%s:%d", prefix, id)
}

func attendanceButtons(bookingID int64) [][]Button {
	return [][]Button{{
		{Text: "✅ Подтверждаю", CallbackData: callback(CallbackConfirmAttendance, bookingID)},
		{Text: "❌ Не смогу прийти", CallbackData: callback(CallbackCancelBooking, bookingID)},
	}}
}

// Reminder - напоминание клиенту на этапах 1-3
func Reminder(stage model.ReminderStage, b *model.Booking, client Party, loc *time.Location) (Message, error) {
	start := b.StartAt.In(loc)
	end := b.EndAt().In(loc)

	var text string
	switch stage {
	case model.StageReminder1:
		text = fmt.Sprintf("🏋️ Тренировка %s в %s.\nПридёшь?", FormatDate(start), FormatTime(start))
	case model.StageReminder2:
		text = fmt.Sprintf("⏰ Напоминаем: %s тренировка %s", FormatDate(start), FormatTimeRange(start, end))
	case model.StageReminder3:
		text = fmt.Sprintf("⚠️ <b>Скоро тренировка %s в %s будет отменена.</b>\nПридёшь?", FormatDate(start), FormatTime(start))
	default:
		return Message{}, fmt.Errorf("%w: %s", model.ErrUnsupportedStage, stage)
	}

	return Message{
		ChatID:    client.ChatID,
		Kind:      KindReminder,
		BookingID: b.ID,
		Text:      text,
		Buttons:   attendanceButtons(b.ID),
	}, nil
}

// PreStart - напоминание перед началом подтверждённой тренировки
func PreStart(stage model.ReminderStage, b *model.Booking, client Party, trainer Party, loc *time.Location) (Message, error) {
	var when string
	switch stage {
	case model.StagePreStart2h:
		when = "через 2 часа"
	case model.StagePreStart1h:
		when = "через час"
	case model.StagePreStart15m:
		when = "через 15 минут"
	default:
		return Message{}, fmt.Errorf("%w: %s", model.ErrUnsupportedStage, stage)
	}

	start := b.StartAt.In(loc)
	text := fmt.Sprintf("🔔 Тренировка %s, в %s\n👨‍🏫 Тренер: %s",
		when, FormatTime(start), html.EscapeString(trainer.Name))

	return Message{
		ChatID:    client.ChatID,
		Kind:      KindPreStart,
		BookingID: b.ID,
		Text:      text,
	}, nil
}

// AutoCancelled - уведомление клиенту об автоотмене
func AutoCancelled(b *model.Booking, client Party, loc *time.Location) Message {
	start := b.StartAt.In(loc)
	return Message{
		ChatID:    client.ChatID,
		Kind:      KindAutoCancel,
		BookingID: b.ID,
		Text: fmt.Sprintf("❌ Тренировка %s в %s отменена: мы не получили подтверждения",
			FormatDate(start), FormatTime(start)),
	}
}

// BookingRequest - запрос тренеру на подтверждение записи, созданной клиентом
func BookingRequest(b *model.Booking, trainer, client Party, loc *time.Location) Message {
	start := b.StartAt.In(loc)
	text := fmt.Sprintf(
		"📝 <b>Новая запись на тренировку</b>\n\n"+
			"👤 Клиент: %s\n"+
			"📅 Дата: %s\n"+
			"⏰ Время: %s\n"+
			"💰 Стоимость: %s",
		html.EscapeString(client.Name), FormatDate(start), FormatTime(start), FormatPrice(b.Price))

	return Message{
		ChatID:    trainer.ChatID,
		Kind:      KindBookingRequest,
		BookingID: b.ID,
		Text:      text,
		Buttons: [][]Button{{
			{Text: "✅ Подтвердить", CallbackData: callback(CallbackConfirmBooking, b.ID)},
			{Text: "❌ Отменить", CallbackData: callback(CallbackCancelBooking, b.ID)},
		}},
	}
}

// BookingRequestAck - подтверждение клиенту, что запрос отправлен
func BookingRequestAck(b *model.Booking, trainer, client Party, loc *time.Location) Message {
	start := b.StartAt.In(loc)
	text := fmt.Sprintf(
		"✅ <b>Запрос на тренировку отправлен!</b>\n\n"+
			"👨‍🏫 Тренер: %s\n"+
			"📅 Дата: %s\n"+
			"⏰ Время: %s\n"+
			"💰 Стоимость: %s\n\n"+
			"<i>Ожидаем подтверждения от тренера</i>",
		html.EscapeString(trainer.Name), FormatDate(start), FormatTime(start), FormatPrice(b.Price))

	return Message{
		ChatID:    client.ChatID,
		Kind:      KindBookingRequestAck,
		BookingID: b.ID,
		Text:      text,
	}
}

// BookingConfirmed - тренеру, что клиент подтвердил тренировку
func BookingConfirmed(b *model.Booking, trainer, client Party, loc *time.Location) Message {
	start := b.StartAt.In(loc)
	text := fmt.Sprintf(
		"✅ <b>Клиент подтвердил тренировку!</b>\n\n"+
			"👤 Клиент: %s\n"+
			"📅 Дата: %s\n"+
			"⏰ Время: %s\n"+
			"💰 Стоимость: %s",
		html.EscapeString(client.Name), FormatDate(start), FormatTime(start), FormatPrice(b.Price))

	return Message{
		ChatID:    trainer.ChatID,
		Kind:      KindBookingConfirmed,
		BookingID: b.ID,
		Text:      text,
	}
}

// Cancelled - уведомление второй стороне об отмене.
// late помечает отмену позже дедлайна тренера
func Cancelled(b *model.Booking, trainer, client Party, byTrainer, late bool, reason string, loc *time.Location) Message {
	start := b.StartAt.In(loc)

	var sb strings.Builder
	recipient := client.ChatID
	if byTrainer {
		sb.WriteString("❌ <b>Запись отменена тренером</b>\n\n")
		sb.WriteString(fmt.Sprintf("👨‍🏫 Тренер: %s\n", html.EscapeString(trainer.Name)))
	} else {
		recipient = trainer.ChatID
		sb.WriteString("❌ <b>Клиент отменил запись</b>\n\n")
		sb.WriteString(fmt.Sprintf("👤 Клиент: %s\n", html.EscapeString(client.Name)))
	}
	sb.WriteString(fmt.Sprintf("📅 Дата: %s\n⏰ Время: %s\n", FormatDate(start), FormatTime(start)))

	if reason != "" {
		sb.WriteString(fmt.Sprintf("📝 Причина: %s\n", html.EscapeString(reason)))
	}
	if late {
		sb.WriteString("\n⚠️ <b>Поздняя отмена</b>: меньше установленного срока до начала")
	}

	return Message{
		ChatID:    recipient,
		Kind:      KindBookingCancelled,
		BookingID: b.ID,
		Text:      strings.TrimRight(sb.String(), "\n"),
	}
}

// Rescheduled - уведомление второй стороне о переносе
func Rescheduled(b *model.Booking, oldStart time.Time, trainer, client Party, byTrainer bool, loc *time.Location) Message {
	oldAt := oldStart.In(loc)
	newAt := b.StartAt.In(loc)

	times := fmt.Sprintf(
		"❌ Старое время:\n📅 %s в %s\n\n✅ Новое время:\n📅 %s в %s",
		FormatDate(oldAt), FormatTime(oldAt), FormatDate(newAt), FormatTime(newAt))

	if byTrainer {
		return Message{
			ChatID:    client.ChatID,
			Kind:      KindRescheduled,
			BookingID: b.ID,
			Text: fmt.Sprintf("🔄 <b>Запись перенесена тренером</b>\n\n👨‍🏫 Тренер: %s\n\n%s\n\n<i>Подтвердите, что вам подходит новое время</i>",
				html.EscapeString(trainer.Name), times),
			Buttons: [][]Button{{
				{Text: "✅ Подтверждаю", CallbackData: callback(CallbackAcceptReschedule, b.ID)},
				{Text: "❌ Не подходит", CallbackData: callback(CallbackDeclineReschedule, b.ID)},
			}},
		}
	}

	return Message{
		ChatID:    trainer.ChatID,
		Kind:      KindRescheduled,
		BookingID: b.ID,
		Text: fmt.Sprintf("🔄 <b>Клиент перенёс запись</b>\n\n👤 Клиент: %s\n\n%s",
			html.EscapeString(client.Name), times),
	}
}

// BookingApproved - клиенту, что тренер подтвердил запись
func BookingApproved(b *model.Booking, trainer, client Party, loc *time.Location) Message {
	start := b.StartAt.In(loc)
	return Message{
		ChatID:    client.ChatID,
		Kind:      KindBookingConfirmed,
		BookingID: b.ID,
		Text: fmt.Sprintf("✅ <b>Тренер подтвердил запись</b>\n\n👨‍🏫 Тренер: %s\n📅 Дата: %s\n⏰ Время: %s",
			html.EscapeString(trainer.Name), FormatDate(start), FormatTime(start)),
	}
}

// TopUpCallback - callback data кнопок пополнения: <prefix>:<trainer_tg>:<client_tg>:<amount>.
// Сумма в копейках
func TopUpCallback(prefix string, trainer, client Party, amount int) string {
	return fmt.Sprintf("%s:%d:%d:%d", prefix, trainer.ChatID, client.ChatID, amount)
}

// TopUpRequest - тренеру, что клиент сообщил о пополнении баланса. amount и balance в копейках
func TopUpRequest(trainer, client Party, amount, balance int) Message {
	return Message{
		ChatID: trainer.ChatID,
		Kind:   KindTopUpRequest,
		Text: fmt.Sprintf("💰 <b>Уведомление о пополнении баланса</b>\n\n"+
			"Клиент <b>%s</b> сообщил о пополнении баланса на <b>%s</b>\n"+
			"Текущий баланс: %s\n\n"+
			"Если деньги поступили, подтвердите пополнение.",
			html.EscapeString(client.Name), FormatPrice(amount), FormatPrice(balance)),
		Buttons: [][]Button{
			{{Text: "✅ Подтвердить поступление", CallbackData: TopUpCallback(CallbackTopUpConfirm, trainer, client, amount)}},
			{{Text: "⏳ Деньги ещё не поступили", CallbackData: TopUpCallback(CallbackTopUpPending, trainer, client, amount)}},
		},
	}
}
