// Package controller - Telegram интерфейс FelanoCare
package controller

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/felanocare/internal/controller/callbacks"
	"github.com/Freeeeeet/felanocare/internal/controller/common"
	"github.com/Freeeeeet/felanocare/internal/controller/handlers"
)

type BotController struct {
	bot             *bot.Bot
	handlers        *handlers.Handlers
	callbackHandler *callbacks.Handler
	live            *common.LiveViews
	logger          *zap.Logger
}

func NewBotController(botInstance *bot.Bot, deps *common.Deps) *BotController {
	return &BotController{
		bot:             botInstance,
		handlers:        handlers.NewHandlers(deps),
		callbackHandler: callbacks.NewHandler(deps),
		live:            deps.Live,
		logger:          deps.Logger,
	}
}

// handlerFunc передаёт бот обработчику как common.Messenger
func handlerFunc(fn func(ctx context.Context, m common.Messenger, update *models.Update)) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		fn(ctx, b, update)
	}
}

// RegisterHandlers регистрирует все обработчики команд
func (c *BotController) RegisterHandlers(ctx context.Context) error {
	commands := map[string]func(context.Context, common.Messenger, *models.Update){
		"/start":     c.handlers.HandleStart,
		"/help":      c.handlers.HandleHelp,
		"/cancel":    c.handlers.HandleCancel,
		"/doctors":   c.handlers.HandleDoctors,
		"/mybooking": c.handlers.HandleMyBooking,
		"/addslot":   c.handlers.HandleAddSlot,
		"/myslots":   c.handlers.HandleMySlots,
	}
	for pattern, fn := range commands {
		c.bot.RegisterHandler(bot.HandlerTypeMessageText, pattern, bot.MatchTypeExact, handlerFunc(fn))
	}

	// Обработчик текстовых сообщений (для диалогов с состояниями)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "", bot.MatchTypePrefix, handlerFunc(c.handlers.HandleTextMessage))

	// Обработчик нажатий на inline кнопки
	c.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, handlerFunc(c.callbackHandler.HandleCallbackQuery))

	// Устанавливаем меню команд
	return c.setCommands(ctx)
}

// setCommands устанавливает список команд в меню бота
func (c *BotController) setCommands(ctx context.Context) error {
	commands := []models.BotCommand{
		{Command: "start", Description: "🚀 Регистрация и главное меню"},
		{Command: "help", Description: "❓ Справка по командам"},
		{Command: "doctors", Description: "🩺 Записаться к специалисту"},
		{Command: "mybooking", Description: "📋 Мои записи"},
		{Command: "addslot", Description: "➕ Опубликовать слот (специалист)"},
		{Command: "myslots", Description: "📊 Мои слоты (специалист)"},
		{Command: "cancel", Description: "✖️ Отменить текущий диалог"},
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

// Start запускает бота и блокируется до отмены ctx
func (c *BotController) Start(ctx context.Context) error {
	c.logger.Info("Starting bot...")
	c.bot.Start(ctx)
	c.live.Close()
	c.logger.Info("Bot stopped")
	return nil
}
