package model

import (
	"errors"
	"fmt"
)

var (
	ErrBookingNotFound  = errors.New("booking not found")
	ErrBookingConflict  = errors.New("time slot already booked")
	ErrStaleBooking     = errors.New("booking was modified concurrently")
	ErrUserNotFound     = errors.New("user not found")
	ErrNotTrainer       = errors.New("user is not a trainer")
	ErrNotClient        = errors.New("user is not a client")
	ErrNotParticipant   = errors.New("user is not a participant of this booking")
	ErrLedgerNotFound   = errors.New("trainer-client relationship not found")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrBookingInPast    = errors.New("booking start is in the past")
	ErrBookingInactive  = errors.New("booking is not active")
	ErrRetryNotFound    = errors.New("notification retry not found")
	ErrRetryClaimLost   = errors.New("notification retry was claimed by another sweep")
	ErrUnsupportedStage = errors.New("unsupported reminder stage")
)

// TransitionError - недопустимый переход статуса
type TransitionError struct {
	From BookingStatus
	To   BookingStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid booking transition %s -> %s", e.From, e.To)
}
