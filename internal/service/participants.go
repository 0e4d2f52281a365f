package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/trenergram/internal/model"
	"github.com/Freeeeeet/trenergram/internal/notify"
)

// loadParticipants получает тренера и клиента бронирования
func loadParticipants(ctx context.Context, users UserStore, b *model.Booking) (*model.User, *model.User, error) {
	trainer, err := users.GetByID(ctx, b.TrainerID)
	if err != nil {
		return nil, nil, fmt.Errorf("get trainer: %w", err)
	}
	if trainer == nil {
		return nil, nil, fmt.Errorf("trainer %d: %w", b.TrainerID, model.ErrUserNotFound)
	}

	client, err := users.GetByID(ctx, b.ClientID)
	if err != nil {
		return nil, nil, fmt.Errorf("get client: %w", err)
	}
	if client == nil {
		return nil, nil, fmt.Errorf("client %d: %w", b.ClientID, model.ErrUserNotFound)
	}

	return trainer, client, nil
}

// stageMessage строит уведомление клиенту для этапа
func stageMessage(stage model.ReminderStage, b *model.Booking, trainer, client *model.User, loc *time.Location) (notify.Message, error) {
	switch stage {
	case model.StageReminder1, model.StageReminder2, model.StageReminder3:
		return notify.Reminder(stage, b, notify.PartyOf(client), loc)
	case model.StagePreStart2h, model.StagePreStart1h, model.StagePreStart15m:
		return notify.PreStart(stage, b, notify.PartyOf(client), notify.PartyOf(trainer), loc)
	case model.StageAutoCancel:
		return notify.AutoCancelled(b, notify.PartyOf(client), loc), nil
	}
	return notify.Message{}, fmt.Errorf("%w: %s", model.ErrUnsupportedStage, stage)
}
