package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/felanocare/internal/controller/common"
	"github.com/Freeeeeet/felanocare/internal/identity"
	"github.com/Freeeeeet/felanocare/internal/model"
)

// requireUser проверяет что пользователь зарегистрирован
func (h *Handlers) requireUser(ctx context.Context, m common.Messenger, update *models.Update) (*model.Profile, identity.Session, bool) {
	if update.Message == nil || update.Message.From == nil {
		return nil, identity.Session{}, false
	}

	p, sess, err := h.deps.Session(ctx, update.Message.From.ID)
	if err != nil {
		h.fail(ctx, m, update.Message.Chat.ID, "resolve session", err)
		return nil, identity.Session{}, false
	}
	return p, sess, true
}

// requireRole проверяет роль пользователя
func (h *Handlers) requireRole(ctx context.Context, m common.Messenger, update *models.Update, role model.Role) (*model.Profile, identity.Session, bool) {
	p, sess, ok := h.requireUser(ctx, m, update)
	if !ok {
		return nil, identity.Session{}, false
	}

	if p.Role != role {
		text := "❌ Эта команда доступна только пациентам."
		if role == model.RoleProfessional {
			text = "❌ Эта команда доступна только специалистам."
		}
		h.sendMessage(ctx, m, update.Message.Chat.ID, text)
		return nil, identity.Session{}, false
	}
	return p, sess, true
}

// fail сообщает пользователю об ошибке; неожиданные ошибки логируются
func (h *Handlers) fail(ctx context.Context, m common.Messenger, chatID int64, op string, err error) {
	if common.IsExpected(err) {
		h.logger.Debug("Request rejected", zap.String("op", op), zap.Error(err))
	} else {
		h.logger.Error("Request failed", zap.String("op", op), zap.Int64("chat_id", chatID), zap.Error(err))
	}
	h.sendMessage(ctx, m, chatID, common.ErrorMessage(err))
}

// sendMessage отправляет сообщение и логирует если не удалось
func (h *Handlers) sendMessage(ctx context.Context, m common.Messenger, chatID int64, text string) {
	h.send(ctx, m, chatID, text, nil)
}

func (h *Handlers) send(ctx context.Context, m common.Messenger, chatID int64, text string, kb *models.InlineKeyboardMarkup) {
	params := &bot.SendMessageParams{ChatID: chatID, Text: text}
	if kb != nil {
		params.ReplyMarkup = kb
	}
	if _, err := m.SendMessage(ctx, params); err != nil {
		h.logger.Error("Failed to send message",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}
