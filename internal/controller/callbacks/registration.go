package callbacks

import (
	"context"

	"github.com/go-telegram/bot/models"

	"github.com/Freeeeeet/felanocare/internal/controller/common"
	"github.com/Freeeeeet/felanocare/internal/controller/state"
	"github.com/Freeeeeet/felanocare/internal/model"
)

// handleRegister - выбор роли после /start. Специалист регистрируется сразу,
// пациенту нужна ещё дата рождения.
func (h *Handler) handleRegister(ctx context.Context, m common.Messenger, cb *models.CallbackQuery, msg *models.Message) {
	args, err := common.ParseArgs(cb.Data, common.CallbackRegister, 1)
	if err != nil {
		h.fail(ctx, m, cb, "parse register", err)
		return
	}
	role := model.Role(args[0])

	existing, err := h.deps.Profiles.GetByTelegramID(ctx, cb.From.ID)
	if err != nil {
		h.fail(ctx, m, cb, "get profile", err)
		return
	}
	if existing != nil {
		common.AnswerCallback(ctx, m, cb.ID, "Вы уже зарегистрированы")
		h.edit(ctx, m, msg, common.WelcomeText(existing), nil)
		return
	}

	if role == model.RolePatient {
		h.deps.State.SetState(cb.From.ID, state.StateRegisterBirthDate)
		common.AnswerCallback(ctx, m, cb.ID, "")
		h.edit(ctx, m, msg, common.BirthDatePrompt(), nil)
		return
	}

	p, err := h.deps.Profiles.RegisterTelegram(ctx, cb.From.ID, common.DisplayName(&cb.From), role, "")
	if err != nil {
		h.fail(ctx, m, cb, "register", err)
		return
	}

	common.AnswerCallback(ctx, m, cb.ID, "✅ Готово")
	h.edit(ctx, m, msg, common.WelcomeText(p), nil)
}

func (h *Handler) handleBackToMain(ctx context.Context, m common.Messenger, cb *models.CallbackQuery, msg *models.Message) {
	p, _, ok := h.requireRole(ctx, m, cb, "")
	if !ok {
		return
	}
	common.AnswerCallback(ctx, m, cb.ID, "")
	h.edit(ctx, m, msg, common.WelcomeText(p), nil)
}
