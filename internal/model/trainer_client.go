package model

import "time"

// TrainerClient связь тренера и клиента с балансом клиента у этого тренера
type TrainerClient struct {
	ID                int64      `json:"id"`
	TrainerID         int64      `json:"trainer_id"`
	ClientID          int64      `json:"client_id"`
	Balance           int        `json:"balance"` // может уходить в минус
	TotalBookings     int        `json:"total_bookings"`
	CompletedBookings int        `json:"completed_bookings"`
	CancelledBookings int        `json:"cancelled_bookings"`
	LastBookingAt     *time.Time `json:"last_booking_at"`
	CreatedAt         time.Time  `json:"created_at"`
}
