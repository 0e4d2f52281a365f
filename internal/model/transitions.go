package model

// allowedTransitions - единственные допустимые переходы статуса
var allowedTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusCancelled, BookingStatusCompleted, BookingStatusNoShow},
}

// CanTransition проверяет переход from -> to
func CanTransition(from, to BookingStatus) bool {
	if from.IsTerminal() {
		return false
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition возвращает *TransitionError для недопустимого перехода
func ValidateTransition(from, to BookingStatus) error {
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}
