package callbacks

import (
	"context"
	"strings"

	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/felanocare/internal/controller/common"
)

// Route распределяет callback query по соответствующим обработчикам
func (h *Handler) Route(ctx context.Context, m common.Messenger, cb *models.CallbackQuery) {
	data := cb.Data

	h.logger.Info("Routing callback",
		zap.String("data", data),
		zap.Int64("user_id", cb.From.ID))

	msg := common.GetMessageFromCallback(cb)
	if msg == nil {
		common.AnswerCallbackAlert(ctx, m, cb.ID, common.ErrorMessage(common.ErrNoMessage))
		return
	}

	// любая навигация заменяет живой список; неудачная запись оставляет его на экране
	if !strings.HasPrefix(data, common.CallbackClaim) {
		h.deps.Live.Stop(msg.Chat.ID)
	}

	switch {
	case data == common.CallbackBackToMain:
		h.handleBackToMain(ctx, m, cb, msg)
	case strings.HasPrefix(data, common.CallbackRegister):
		h.handleRegister(ctx, m, cb, msg)

	// ===== Patient =====
	case data == common.CallbackDoctors:
		h.handleDoctors(ctx, m, cb, msg)
	case strings.HasPrefix(data, common.CallbackDoctor):
		h.handleDoctor(ctx, m, cb, msg)
	case strings.HasPrefix(data, common.CallbackDate):
		h.handleDate(ctx, m, cb, msg)
	case strings.HasPrefix(data, common.CallbackClaim):
		h.handleClaim(ctx, m, cb, msg)
	case strings.HasPrefix(data, common.CallbackCancelBooking):
		h.handleCancelBooking(ctx, m, cb, msg)

	// ===== Professional =====
	case data == common.CallbackMySlots:
		h.handleMySlots(ctx, m, cb, msg)
	case strings.HasPrefix(data, common.CallbackWithdraw):
		h.handleWithdraw(ctx, m, cb, msg)
	case strings.HasPrefix(data, common.CallbackRelease):
		h.handleRelease(ctx, m, cb, msg)

	default:
		h.logger.Warn("Unknown callback", zap.String("data", data))
		common.AnswerCallbackAlert(ctx, m, cb.ID, common.ErrorMessage(common.ErrInvalidFormat))
	}
}
