package callbacks

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/felanocare/internal/controller/common"
	"github.com/Freeeeeet/felanocare/internal/controller/keyboard"
	"github.com/Freeeeeet/felanocare/internal/identity"
	"github.com/Freeeeeet/felanocare/internal/ledger"
	"github.com/Freeeeeet/felanocare/internal/model"
	"github.com/Freeeeeet/felanocare/internal/service"
)

func (h *Handler) handleDoctors(ctx context.Context, m common.Messenger, cb *models.CallbackQuery, msg *models.Message) {
	if _, _, ok := h.requireRole(ctx, m, cb, model.RolePatient); !ok {
		return
	}

	pros, err := h.deps.Profiles.ListProfessionals(ctx)
	if err != nil {
		h.fail(ctx, m, cb, "list professionals", err)
		return
	}

	common.AnswerCallback(ctx, m, cb.ID, "")
	text, kb := common.ProfessionalsScreen(pros)
	h.edit(ctx, m, msg, text, kb)
}

// handleDoctor - карточка специалиста
func (h *Handler) handleDoctor(ctx context.Context, m common.Messenger, cb *models.CallbackQuery, msg *models.Message) {
	args, err := common.ParseArgs(cb.Data, common.CallbackDoctor, 1)
	if err != nil {
		h.fail(ctx, m, cb, "parse doctor", err)
		return
	}

	_, sess, ok := h.requireRole(ctx, m, cb, model.RolePatient)
	if !ok {
		return
	}

	if err := h.showCard(ctx, m, msg, sess, args[0]); err != nil {
		h.fail(ctx, m, cb, "show professional", err)
		return
	}
	common.AnswerCallback(ctx, m, cb.ID, "")
}

// showCard рисует карточку: действующая запись пациента или свободные даты
func (h *Handler) showCard(ctx context.Context, m common.Messenger, msg *models.Message, sess identity.Session, ownerID string) error {
	pro, err := h.professional(ctx, ownerID)
	if err != nil {
		return err
	}

	booking, err := h.deps.Ledger.ActiveBooking(ctx, sess, ownerID, sess.UserID)
	if err != nil {
		return err
	}

	var dates []string
	if booking == nil {
		if dates, err = h.deps.Ledger.AvailableDates(ctx, sess, ownerID); err != nil {
			return err
		}
	}

	text, kb := common.ProfessionalCard(pro, booking, dates)
	h.edit(ctx, m, msg, text, kb)
	return nil
}

// handleDate открывает живой список свободных слотов на дату
func (h *Handler) handleDate(ctx context.Context, m common.Messenger, cb *models.CallbackQuery, msg *models.Message) {
	args, err := common.ParseArgs(cb.Data, common.CallbackDate, 2)
	if err != nil {
		h.fail(ctx, m, cb, "parse date", err)
		return
	}
	ownerID, date := args[0], args[1]

	_, sess, ok := h.requireRole(ctx, m, cb, model.RolePatient)
	if !ok {
		return
	}

	pro, err := h.professional(ctx, ownerID)
	if err != nil {
		h.fail(ctx, m, cb, "get professional", err)
		return
	}

	open := func(ctx context.Context) (*ledger.Stream[[]model.Slot], error) {
		return h.deps.Ledger.ListSlotsForDate(ctx, sess, ownerID, date)
	}
	render := func(slots []model.Slot) (string, *models.InlineKeyboardMarkup) {
		return common.SlotsScreen(ownerID, pro.Name, date, slots)
	}

	if err := h.deps.Live.Start(ctx, m, msg.Chat.ID, msg.ID, open, render); err != nil {
		h.fail(ctx, m, cb, "open slots stream", err)
		return
	}
	common.AnswerCallback(ctx, m, cb.ID, "")
}

// handleClaim записывает пациента на слот. При неудаче живой список остаётся
// на экране и сам покажет актуальные слоты.
func (h *Handler) handleClaim(ctx context.Context, m common.Messenger, cb *models.CallbackQuery, msg *models.Message) {
	args, err := common.ParseArgs(cb.Data, common.CallbackClaim, 1)
	if err != nil {
		h.fail(ctx, m, cb, "parse claim", err)
		return
	}
	slotID := args[0]

	_, sess, ok := h.requireRole(ctx, m, cb, model.RolePatient)
	if !ok {
		return
	}

	slot, err := h.deps.Ledger.Slot(ctx, sess, slotID)
	if err != nil {
		h.fail(ctx, m, cb, "get slot", err)
		return
	}

	if err := h.deps.Bookings.Book(ctx, sess, slot.OwnerID, slotID); err != nil {
		h.fail(ctx, m, cb, "book", err)
		return
	}

	h.deps.Live.Stop(msg.Chat.ID)

	name := ""
	if pro, err := h.professional(ctx, slot.OwnerID); err == nil {
		name = pro.Name
	}

	h.logger.Info("Slot booked via bot",
		zap.String("slot_id", slotID),
		zap.String("patient_id", sess.UserID))

	common.AnswerCallback(ctx, m, cb.ID, "✅ Вы записаны")
	kb := keyboard.NewBuilder().
		Row(keyboard.Button("⬅️ К специалисту", common.CallbackDoctor+slot.OwnerID)).
		Build()
	h.edit(ctx, m, msg, common.BookedText(name, slot), kb)
}

func (h *Handler) handleCancelBooking(ctx context.Context, m common.Messenger, cb *models.CallbackQuery, msg *models.Message) {
	args, err := common.ParseArgs(cb.Data, common.CallbackCancelBooking, 1)
	if err != nil {
		h.fail(ctx, m, cb, "parse cancel", err)
		return
	}
	ownerID := args[0]

	_, sess, ok := h.requireRole(ctx, m, cb, model.RolePatient)
	if !ok {
		return
	}

	if err := h.deps.Bookings.CancelBooking(ctx, sess, ownerID); err != nil {
		h.fail(ctx, m, cb, "cancel booking", err)
		return
	}

	common.AnswerCallback(ctx, m, cb.ID, "Запись отменена")
	if err := h.showCard(ctx, m, msg, sess, ownerID); err != nil {
		h.logger.Warn("Failed to refresh professional card", zap.Error(err))
	}
}

// professional возвращает профиль специалиста
func (h *Handler) professional(ctx context.Context, uid string) (*model.Profile, error) {
	p, err := h.deps.Profiles.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	if p.Role != model.RoleProfessional {
		return nil, fmt.Errorf("profile %s: %w", uid, service.ErrProfessionalMissing)
	}
	return p, nil
}
