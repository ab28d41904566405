package callbacks

import (
	"context"

	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/felanocare/internal/controller/common"
	"github.com/Freeeeeet/felanocare/internal/identity"
	"github.com/Freeeeeet/felanocare/internal/ledger"
	"github.com/Freeeeeet/felanocare/internal/model"
)

func (h *Handler) handleMySlots(ctx context.Context, m common.Messenger, cb *models.CallbackQuery, msg *models.Message) {
	_, sess, ok := h.requireRole(ctx, m, cb, model.RoleProfessional)
	if !ok {
		return
	}

	if err := h.showDashboard(ctx, m, msg, sess); err != nil {
		h.fail(ctx, m, cb, "dashboard", err)
		return
	}
	common.AnswerCallback(ctx, m, cb.ID, "")
}

// handleWithdraw отзывает слот; повторный отзыв не ошибка
func (h *Handler) handleWithdraw(ctx context.Context, m common.Messenger, cb *models.CallbackQuery, msg *models.Message) {
	h.slotAction(ctx, m, cb, msg, common.CallbackWithdraw, "🗑 Слот отозван", h.deps.Professional.Withdraw)
}

// handleRelease снимает бронь пациента
func (h *Handler) handleRelease(ctx context.Context, m common.Messenger, cb *models.CallbackQuery, msg *models.Message) {
	h.slotAction(ctx, m, cb, msg, common.CallbackRelease, "🔓 Бронь снята", h.deps.Professional.Release)
}

func (h *Handler) slotAction(
	ctx context.Context,
	m common.Messenger,
	cb *models.CallbackQuery,
	msg *models.Message,
	prefix, done string,
	action func(ctx context.Context, sess identity.Session, slotID string) error,
) {
	args, err := common.ParseArgs(cb.Data, prefix, 1)
	if err != nil {
		h.fail(ctx, m, cb, "parse slot action", err)
		return
	}

	_, sess, ok := h.requireRole(ctx, m, cb, model.RoleProfessional)
	if !ok {
		return
	}

	if err := action(ctx, sess, args[0]); err != nil {
		h.fail(ctx, m, cb, prefix+"slot", err)
		return
	}

	common.AnswerCallback(ctx, m, cb.ID, done)
	if err := h.showDashboard(ctx, m, msg, sess); err != nil {
		h.logger.Warn("Failed to refresh dashboard", zap.Error(err))
	}
}

func (h *Handler) showDashboard(ctx context.Context, m common.Messenger, msg *models.Message, sess identity.Session) error {
	d, err := h.deps.Professional.Dashboard(ctx, sess, ledger.SlotFilter{DateFrom: h.deps.Today()})
	if err != nil {
		return err
	}
	text, kb := common.DashboardScreen(d)
	h.edit(ctx, m, msg, text, kb)
	return nil
}
