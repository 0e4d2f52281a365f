package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/trenergram/internal/model"
	"github.com/Freeeeeet/trenergram/internal/notify"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// DispatchConfig - ограничения доставки уведомлений
type DispatchConfig struct {
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultDispatchConfig возвращает значения по умолчанию
func DefaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		Timeout:     10 * time.Second,
		MaxAttempts: 5,
		BaseDelay:   time.Minute,
		MaxDelay:    30 * time.Minute,
	}
}

// Dispatcher отправляет уведомления с таймаутом. Неудачная доставка этапа
// ставится в очередь повторов, флаг этапа при этом не снимается
type Dispatcher struct {
	gateway notify.Gateway
	retries RetryStore
	cfg     DispatchConfig
	now     func() time.Time
	logger  *zap.Logger
}

func NewDispatcher(gateway notify.Gateway, retries RetryStore, cfg DispatchConfig, now func() time.Time, logger *zap.Logger) *Dispatcher {
	def := DefaultDispatchConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	if now == nil {
		now = time.Now
	}

	return &Dispatcher{
		gateway: gateway,
		retries: retries,
		cfg:     cfg,
		now:     now,
		logger:  logger,
	}
}

// Send отправляет сообщение, ограничивая время ожидания
func (d *Dispatcher) Send(ctx context.Context, msg notify.Message) error {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	if err := d.gateway.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s notification: %w", msg.Kind, err)
	}
	return nil
}

// Notify отправляет событийное уведомление без повторов. Ошибка только логируется
func (d *Dispatcher) Notify(ctx context.Context, msg notify.Message) {
	if err := d.Send(ctx, msg); err != nil {
		d.logger.Error("Failed to send notification",
			zap.String("kind", msg.Kind),
			zap.Int64("booking_id", msg.BookingID),
			zap.Int64("chat_id", msg.ChatID),
			zap.Error(err))
	}
}

// SendStage отправляет уведомление уже отмеченного этапа.
// При ошибке ставит повтор в очередь и возвращает исходную ошибку доставки
func (d *Dispatcher) SendStage(ctx context.Context, bookingID int64, stage model.ReminderStage, recipientID int64, msg notify.Message) error {
	sendErr := d.Send(ctx, msg)
	if sendErr == nil {
		return nil
	}

	d.logger.Warn("Stage notification failed, scheduling retry",
		zap.Int64("booking_id", bookingID),
		zap.String("stage", string(stage)),
		zap.Error(sendErr))

	now := d.now()
	retryItem := &model.NotificationRetry{
		BookingID:     bookingID,
		Stage:         stage,
		RecipientID:   recipientID,
		Attempts:      1,
		LastError:     sendErr.Error(),
		NextAttemptAt: now.Add(d.RetryDelay(1)),
		State:         model.RetryStatePending,
	}

	if d.cfg.MaxAttempts <= 1 {
		retryItem.State = model.RetryStateExhausted
	}

	// Очередь повторов не должна зависеть от отменённого контекста прохода
	enqueueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.Timeout)
	defer cancel()

	if err := d.retries.Enqueue(enqueueCtx, retryItem); err != nil {
		d.logger.Error("Failed to enqueue notification retry",
			zap.Int64("booking_id", bookingID),
			zap.String("stage", string(stage)),
			zap.Error(err))
	}

	return sendErr
}

// RetryDelay - пауза перед попыткой номер attempt+1
func (d *Dispatcher) RetryDelay(attempt int) time.Duration {
	backoff := retry.WithCappedDuration(d.cfg.MaxDelay, retry.NewExponential(d.cfg.BaseDelay))

	delay := d.cfg.BaseDelay
	for i := 0; i < attempt; i++ {
		next, stop := backoff.Next()
		if stop {
			break
		}
		delay = next
	}
	return delay
}

// Timeout - предел ожидания одной отправки
func (d *Dispatcher) Timeout() time.Duration {
	return d.cfg.Timeout
}

// MaxAttempts возвращает предел попыток доставки
func (d *Dispatcher) MaxAttempts() int {
	return d.cfg.MaxAttempts
}
