package notify

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPGateway публикует уведомления в topic exchange, доставкой занимается отдельный воркер
type AMQPGateway struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewAMQPGateway(url, exchange string) (*AMQPGateway, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPGateway{conn: conn, ch: ch, exchange: exchange}, nil
}

// RoutingKey возвращает ключ маршрутизации для сообщения
func RoutingKey(msg Message) string {
	if msg.Kind == "" {
		return "notification.generic"
	}
	return "notification." + msg.Kind
}

func (g *AMQPGateway) Send(ctx context.Context, msg Message) error {
	if msg.ChatID == 0 {
		return ErrNoRecipient
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	err = g.ch.PublishWithContext(ctx, g.exchange, RoutingKey(msg), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	return nil
}

func (g *AMQPGateway) Close() error {
	if g.ch != nil {
		_ = g.ch.Close()
	}
	if g.conn != nil {
		return g.conn.Close()
	}
	return nil
}
