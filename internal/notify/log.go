package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogGateway только пишет уведомления в лог (локальная разработка)
type LogGateway struct {
	logger *zap.Logger
}

func NewLogGateway(logger *zap.Logger) *LogGateway {
	return &LogGateway{logger: logger}
}

func (g *LogGateway) Send(ctx context.Context, msg Message) error {
	if msg.ChatID == 0 {
		return ErrNoRecipient
	}

	g.logger.Info("Notification",
		zap.Int64("chat_id", msg.ChatID),
		zap.String("kind", msg.Kind),
		zap.Int64("booking_id", msg.BookingID),
		zap.String("text", msg.Text),
		zap.Int("button_rows", len(msg.Buttons)))

	return nil
}
