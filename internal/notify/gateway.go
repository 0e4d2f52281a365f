// Package notify доставляет сообщения тренерам и клиентам.
package notify

import (
	"context"
	"errors"
)

// Префиксы callback data для inline кнопок в уведомлениях
const (
	CallbackConfirmAttendance = "confirm_attendance"
	CallbackCancelBooking     = "cancel_booking"
	CallbackConfirmBooking    = "confirm_booking"
	CallbackAcceptReschedule  = "accept_reschedule"
	CallbackDeclineReschedule = "decline_reschedule"
	CallbackTopUpConfirm      = "topup_confirm"
	CallbackTopUpPending      = "topup_pending"
	CallbackTopUpRequest      = "topup_request"
)

var ErrNoRecipient = errors.New("message has no recipient")

// Button - inline кнопка. Заполняется либо CallbackData, либо URL
type Button struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

// Message - одно исходящее уведомление
type Message struct {
	ChatID    int64      `json:"chat_id"`
	Kind      string     `json:"kind"`
	BookingID int64      `json:"booking_id,omitempty"`
	Text      string     `json:"text"`
	Buttons   [][]Button `json:"buttons,omitempty"`
}

// Gateway отправляет сообщение получателю. Гарантий доставки нет
type Gateway interface {
	Send(ctx context.Context, msg Message) error
}
