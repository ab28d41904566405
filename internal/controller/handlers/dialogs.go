package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/felanocare/internal/controller/common"
	"github.com/Freeeeeet/felanocare/internal/controller/formatting"
	"github.com/Freeeeeet/felanocare/internal/controller/state"
	"github.com/Freeeeeet/felanocare/internal/ledger"
	"github.com/Freeeeeet/felanocare/internal/model"
)

// HandleTextMessage обрабатывает текстовые сообщения в зависимости от состояния пользователя
func (h *Handlers) HandleTextMessage(ctx context.Context, m common.Messenger, update *models.Update) {
	if update.Message == nil || update.Message.From == nil || update.Message.Text == "" {
		return
	}

	// Игнорируем команды (они обрабатываются другими handlers)
	if strings.HasPrefix(update.Message.Text, "/") {
		return
	}

	telegramID := update.Message.From.ID
	switch current := h.deps.State.GetState(telegramID); current {
	case state.StateNone:
		return
	case state.StateRegisterBirthDate:
		h.handleBirthDate(ctx, m, update)
	case state.StateAddSlot:
		h.handleAddSlot(ctx, m, update)
	default:
		h.logger.Warn("Unknown state", zap.String("state", string(current)))
		h.deps.State.ClearState(telegramID)
	}
}

// handleBirthDate завершает регистрацию пациента
func (h *Handlers) handleBirthDate(ctx context.Context, m common.Messenger, update *models.Update) {
	telegramID := update.Message.From.ID
	chatID := update.Message.Chat.ID
	birthDate := strings.TrimSpace(update.Message.Text)

	p, err := h.deps.Profiles.RegisterTelegram(ctx, telegramID, common.DisplayName(update.Message.From), model.RolePatient, birthDate)
	if err != nil {
		if ledger.IsValidation(err) {
			// остаёмся в диалоге, даём ещё попытку
			h.sendMessage(ctx, m, chatID, common.ErrorMessage(err)+"\n\n"+common.BirthDatePrompt())
			return
		}
		h.deps.State.ClearState(telegramID)
		h.fail(ctx, m, chatID, "register patient", err)
		return
	}

	h.deps.State.ClearState(telegramID)
	h.sendMessage(ctx, m, chatID, common.WelcomeText(p))
}

// handleAddSlot публикует слот. Принимает "ГГГГ-ММ-ДД ЧЧ:ММ ЧЧ:ММ" или
// "ЧЧ:ММ ЧЧ:ММ" - тогда берётся дата предыдущего слота. Диалог продолжается до /cancel.
func (h *Handlers) handleAddSlot(ctx context.Context, m common.Messenger, update *models.Update) {
	_, sess, ok := h.requireRole(ctx, m, update, model.RoleProfessional)
	if !ok {
		h.deps.State.ClearState(update.Message.From.ID)
		return
	}

	telegramID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	var date, start, end string
	switch fields := strings.Fields(update.Message.Text); len(fields) {
	case 3:
		date, start, end = fields[0], fields[1], fields[2]
	case 2:
		date = h.deps.State.GetString(telegramID, state.KeyLastDate)
		start, end = fields[0], fields[1]
	}
	if date == "" {
		h.sendMessage(ctx, m, chatID, "❌ Неверный формат.\n\n"+common.AddSlotPrompt())
		return
	}

	slot, err := h.deps.Professional.Publish(ctx, sess, date, start, end)
	if err != nil {
		h.fail(ctx, m, chatID, "publish slot", err)
		return
	}

	h.deps.State.SetData(telegramID, state.KeyLastDate, slot.Date)
	h.sendMessage(ctx, m, chatID, fmt.Sprintf(
		"✅ Слот опубликован: %s\n\nОтправьте следующий (на ту же дату достаточно ЧЧ:ММ ЧЧ:ММ) или /cancel",
		formatting.FormatSlot(slot),
	))
}
