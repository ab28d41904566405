// Package callbacks - обработка нажатий на inline кнопки
package callbacks

import (
	"context"

	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/felanocare/internal/controller/common"
	"github.com/Freeeeeet/felanocare/internal/controller/keyboard"
	"github.com/Freeeeeet/felanocare/internal/identity"
	"github.com/Freeeeeet/felanocare/internal/model"
)

// Handler - обработчик callback с зависимостями
type Handler struct {
	deps   *common.Deps
	logger *zap.Logger
}

// NewHandler создаёт новый обработчик callbacks с зависимостями
func NewHandler(deps *common.Deps) *Handler {
	return &Handler{
		deps:   deps,
		logger: deps.Logger,
	}
}

// HandleCallbackQuery - точка входа для всех callback query
func (h *Handler) HandleCallbackQuery(ctx context.Context, m common.Messenger, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	h.Route(ctx, m, update.CallbackQuery)
}

// requireRole находит пользователя и проверяет роль; role "" - любая роль
func (h *Handler) requireRole(ctx context.Context, m common.Messenger, cb *models.CallbackQuery, role model.Role) (*model.Profile, identity.Session, bool) {
	p, sess, err := h.deps.Session(ctx, cb.From.ID)
	if err != nil {
		h.fail(ctx, m, cb, "resolve session", err)
		return nil, identity.Session{}, false
	}
	if role != "" && p.Role != role {
		common.AnswerCallbackAlert(ctx, m, cb.ID, "❌ Эта функция недоступна для вашей роли")
		return nil, identity.Session{}, false
	}
	return p, sess, true
}

// fail отвечает на callback сообщением об ошибке; неожиданные ошибки логируются
func (h *Handler) fail(ctx context.Context, m common.Messenger, cb *models.CallbackQuery, op string, err error) {
	if common.IsExpected(err) {
		h.logger.Debug("Callback rejected", zap.String("op", op), zap.String("data", cb.Data), zap.Error(err))
	} else {
		h.logger.Error("Callback failed",
			zap.String("op", op),
			zap.String("data", cb.Data),
			zap.Int64("telegram_id", cb.From.ID),
			zap.Error(err))
	}
	common.AnswerCallbackAlert(ctx, m, cb.ID, common.ErrorMessage(err))
}

// edit перерисовывает сообщение. Telegram отвечает ошибкой,
// если текст не изменился; это не сбой.
func (h *Handler) edit(ctx context.Context, m common.Messenger, msg *models.Message, text string, kb *models.InlineKeyboardMarkup) {
	if kb == nil {
		kb = keyboard.Empty()
	}
	if err := common.Edit(ctx, m, msg, text, kb); err != nil {
		h.logger.Debug("Failed to edit message", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
	}
}
