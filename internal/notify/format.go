package notify

import (
	"fmt"
	"time"
)

// FormatDate форматирует дату
func FormatDate(t time.Time) string {
	return t.Format("02.01.2006")
}

// FormatTime форматирует только время
func FormatTime(t time.Time) string {
	return t.Format("15:04")
}

// FormatTimeRange форматирует диапазон времени
func FormatTimeRange(start, end time.Time) string {
	return fmt.Sprintf("%s-%s", start.Format("15:04"), end.Format("15:04"))
}

// FormatPrice форматирует цену из копеек в рубли, без копеек если они равны 0
func FormatPrice(priceInKopecks int) string {
	price := float64(priceInKopecks) / 100
	if priceInKopecks%100 == 0 {
		return fmt.Sprintf("%.0f ₽", price)
	}
	return fmt.Sprintf("%.2f ₽", price)
}
