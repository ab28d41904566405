package handlers

import (
	"context"

	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/felanocare/internal/controller/common"
	"github.com/Freeeeeet/felanocare/internal/controller/state"
	"github.com/Freeeeeet/felanocare/internal/ledger"
	"github.com/Freeeeeet/felanocare/internal/model"
)

// HandleStart обрабатывает команду /start
func (h *Handlers) HandleStart(ctx context.Context, m common.Messenger, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	chatID := update.Message.Chat.ID
	telegramID := update.Message.From.ID

	p, err := h.deps.Profiles.GetByTelegramID(ctx, telegramID)
	if err != nil {
		h.fail(ctx, m, chatID, "get profile", err)
		return
	}

	h.deps.State.ClearState(telegramID)
	h.deps.Live.Stop(chatID)

	if p == nil {
		text, kb := common.RoleChoiceScreen(common.DisplayName(update.Message.From))
		h.send(ctx, m, chatID, text, kb)
		return
	}

	h.sendMessage(ctx, m, chatID, common.WelcomeText(p))
}

// HandleHelp обрабатывает команду /help
func (h *Handlers) HandleHelp(ctx context.Context, m common.Messenger, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.sendMessage(ctx, m, update.Message.Chat.ID, common.HelpText())
}

// HandleCancel обрабатывает команду /cancel - отмена текущего диалога
func (h *Handlers) HandleCancel(ctx context.Context, m common.Messenger, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	telegramID := update.Message.From.ID
	if h.deps.State.GetState(telegramID) == state.StateNone {
		h.sendMessage(ctx, m, update.Message.Chat.ID, "❌ Нет активных операций для отмены.")
		return
	}

	h.deps.State.ClearState(telegramID)
	h.sendMessage(ctx, m, update.Message.Chat.ID, "✅ Операция отменена.\n\nИспользуйте /help для просмотра доступных команд.")
}

// HandleDoctors показывает пациенту список специалистов
func (h *Handlers) HandleDoctors(ctx context.Context, m common.Messenger, update *models.Update) {
	if _, _, ok := h.requireRole(ctx, m, update, model.RolePatient); !ok {
		return
	}

	pros, err := h.deps.Profiles.ListProfessionals(ctx)
	if err != nil {
		h.fail(ctx, m, update.Message.Chat.ID, "list professionals", err)
		return
	}

	text, kb := common.ProfessionalsScreen(pros)
	h.send(ctx, m, update.Message.Chat.ID, text, kb)
}

// HandleMyBooking - ближайший приём и история пациента
func (h *Handlers) HandleMyBooking(ctx context.Context, m common.Messenger, update *models.Update) {
	_, sess, ok := h.requireRole(ctx, m, update, model.RolePatient)
	if !ok {
		return
	}

	ov, err := h.deps.Bookings.Overview(ctx, sess, h.deps.Today())
	if err != nil {
		h.fail(ctx, m, update.Message.Chat.ID, "overview", err)
		return
	}
	h.sendMessage(ctx, m, update.Message.Chat.ID, common.OverviewText(ov))
}

// HandleAddSlot начинает диалог публикации слота
func (h *Handlers) HandleAddSlot(ctx context.Context, m common.Messenger, update *models.Update) {
	if _, _, ok := h.requireRole(ctx, m, update, model.RoleProfessional); !ok {
		return
	}

	h.deps.State.SetState(update.Message.From.ID, state.StateAddSlot)
	h.sendMessage(ctx, m, update.Message.Chat.ID, common.AddSlotPrompt())
}

// HandleMySlots - журнал специалиста начиная с сегодняшнего дня
func (h *Handlers) HandleMySlots(ctx context.Context, m common.Messenger, update *models.Update) {
	_, sess, ok := h.requireRole(ctx, m, update, model.RoleProfessional)
	if !ok {
		return
	}

	d, err := h.deps.Professional.Dashboard(ctx, sess, ledger.SlotFilter{DateFrom: h.deps.Today()})
	if err != nil {
		h.fail(ctx, m, update.Message.Chat.ID, "dashboard", err)
		return
	}

	h.logger.Debug("Dashboard shown", zap.String("uid", sess.UserID), zap.Int("entries", len(d.Entries)))
	text, kb := common.DashboardScreen(d)
	h.send(ctx, m, update.Message.Chat.ID, text, kb)
}
