package controller

import (
	"context"
	"fmt"
	"html"

	"github.com/Freeeeeet/trenergram/internal/model"
	"github.com/Freeeeeet/trenergram/internal/notify"
	"github.com/Freeeeeet/trenergram/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// UserRegistry - пользователи по Telegram ID
type UserRegistry interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	Register(ctx context.Context, user *model.User) error
}

type BotController struct {
	bot       *bot.Bot
	users     UserRegistry
	lifecycle *service.LifecycleService
	ledger    *service.LedgerService
	webAppURL string
	logger    *zap.Logger
}

func NewBotController(
	botInstance *bot.Bot,
	users UserRegistry,
	lifecycle *service.LifecycleService,
	ledger *service.LedgerService,
	webAppURL string,
	logger *zap.Logger,
) *BotController {
	return &BotController{
		bot:       botInstance,
		users:     users,
		lifecycle: lifecycle,
		ledger:    ledger,
		webAppURL: webAppURL,
		logger:    logger,
	}
}

// RegisterHandlers регистрирует все обработчики команд
func (c *BotController) RegisterHandlers(ctx context.Context) error {
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, c.HandleStart)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypeExact, c.HandleHelp)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/topup", bot.MatchTypePrefix, c.HandleTopUp)

	// Обработчик нажатий на inline кнопки уведомлений
	c.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, c.HandleCallbackQuery)

	// Устанавливаем меню команд
	return c.setCommands(ctx)
}

// setCommands устанавливает список команд в меню бота
func (c *BotController) setCommands(ctx context.Context) error {
	commands := []models.BotCommand{
		{Command: "start", Description: "🚀 Начать работу с ботом"},
		{Command: "topup", Description: "💰 Сообщить тренеру о пополнении баланса"},
		{Command: "help", Description: "❓ Справка"},
	}

	_, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: commands,
	})

	if err != nil {
		c.logger.Error("Failed to set bot commands", zap.Error(err))
		return err
	}

	c.logger.Info("✅ Bot commands menu set")
	return nil
}

// HandleStart регистрирует пользователя клиентом (тренеры регистрируются через приложение)
func (c *BotController) HandleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	from := update.Message.From
	user := &model.User{
		TelegramID: from.ID,
		Role:       model.UserRoleClient,
		Name:       displayName(from),
	}

	if err := c.users.Register(ctx, user); err != nil {
		c.logger.Error("Failed to register user", zap.Int64("telegram_id", from.ID), zap.Error(err))
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: update.Message.Chat.ID,
			Text:   "❌ Произошла ошибка при регистрации. Попробуйте позже.",
		})
		return
	}

	text := fmt.Sprintf(
		"👋 Привет, %s!\n\n"+
			"Здесь будут приходить напоминания о тренировках.\n"+
			"Подтверждайте и отменяйте записи кнопками под сообщениями.",
		html.EscapeString(user.Name))

	params := &bot.SendMessageParams{
		ChatID:    update.Message.Chat.ID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if c.webAppURL != "" {
		params.ReplyMarkup = &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{{
				{Text: "📅 Открыть расписание", WebApp: &models.WebAppInfo{URL: c.webAppURL}},
			}},
		}
	}

	b.SendMessage(ctx, params)
}

// HandleHelp обрабатывает команду /help
func (c *BotController) HandleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	helpText := "📚 Справка:\n\n" +
		"• Напоминания о тренировке приходят заранее, подтвердите участие кнопкой\n" +
		"• Если не подтвердить запись после трёх напоминаний, она отменится автоматически\n" +
		"• Отмена позже срока, установленного тренером, помечается как поздняя\n\n" +
		"/start - Начать работу с ботом"

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   helpText,
	})
}

// HandleTopUp обрабатывает "/topup <рубли>": клиент сообщает тренеру о переводе.
// Если тренеров несколько, предлагает выбрать
func (c *BotController) HandleTopUp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID

	amount, err := ParseTopUpCommand(update.Message.Text)
	if err != nil {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   "💰 Укажите сумму в рублях, например: /topup 3000",
		})
		return
	}

	params, err := c.topUpReply(ctx, update.Message.From.ID, amount)
	if err != nil {
		c.logger.Warn("Top up request failed",
			zap.Int64("telegram_id", update.Message.From.ID),
			zap.Int("amount", amount),
			zap.Error(err))
		params = &bot.SendMessageParams{Text: errorMessage(err)}
	}
	params.ChatID = chatID

	b.SendMessage(ctx, params)
}

func (c *BotController) topUpReply(ctx context.Context, telegramID int64, amount int) (*bot.SendMessageParams, error) {
	client, err := c.actor(ctx, telegramID)
	if err != nil {
		return nil, err
	}

	ledgers, err := c.ledger.ClientTrainers(ctx, client.ID)
	if err != nil {
		return nil, err
	}

	switch len(ledgers) {
	case 0:
		return nil, ErrNoTrainers
	case 1:
		if err := c.ledger.RequestTopUp(ctx, ledgers[0].TrainerID, client.ID, amount); err != nil {
			return nil, err
		}
		return &bot.SendMessageParams{Text: topUpSentText(amount)}, nil
	}

	var rows [][]models.InlineKeyboardButton
	for _, tc := range ledgers {
		trainer, err := c.users.GetByID(ctx, tc.TrainerID)
		if err != nil {
			return nil, fmt.Errorf("get trainer: %w", err)
		}
		if trainer == nil {
			continue
		}
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         "👨‍🏫 " + trainer.Name,
			CallbackData: fmt.Sprintf("%s:%d:%d", notify.CallbackTopUpRequest, tc.TrainerID, amount),
		}})
	}

	return &bot.SendMessageParams{
		Text:        fmt.Sprintf("💰 Какому тренеру вы перевели %s?", notify.FormatPrice(amount)),
		ReplyMarkup: &models.InlineKeyboardMarkup{InlineKeyboard: rows},
	}, nil
}

func topUpSentText(amount int) string {
	return fmt.Sprintf("📨 Тренер получил уведомление о пополнении на %s. Баланс изменится после подтверждения", notify.FormatPrice(amount))
}

// Start запускает бота
func (c *BotController) Start(ctx context.Context) error {
	c.logger.Info("Starting bot...")
	c.bot.Start(ctx)
	return nil
}

func displayName(u *models.User) string {
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	if name == "" {
		name = u.Username
	}
	return name
}
