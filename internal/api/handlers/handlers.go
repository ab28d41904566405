// Package handlers - обработчики /api/v1.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/felanocare/internal/advice"
	"github.com/Freeeeeet/felanocare/internal/api/middleware"
	"github.com/Freeeeeet/felanocare/internal/cart"
	"github.com/Freeeeeet/felanocare/internal/circuitbreaker"
	"github.com/Freeeeeet/felanocare/internal/identity"
	"github.com/Freeeeeet/felanocare/internal/ledger"
	"github.com/Freeeeeet/felanocare/internal/model"
	"github.com/Freeeeeet/felanocare/internal/service"
)

// AdviceAsker отвечает на вопросы модулей здоровья
type AdviceAsker interface {
	Ask(ctx context.Context, req advice.AdviceRequest) (advice.AdviceReply, error)
}

// DrugSearcher ищет инструкции к препаратам
type DrugSearcher interface {
	Search(ctx context.Context, term string) ([]advice.DrugRecord, error)
}

// Deps - всё, что нужно обработчикам
type Deps struct {
	Ledger       *ledger.Ledger
	Profiles     *service.ProfileService
	Bookings     *service.BookingService
	Professional *service.ProfessionalService
	Tokens       *identity.TokenIssuer
	Carts        *cart.Registry
	Journal      *service.JournalService
	Catalog      *service.CatalogService
	// Advice и Drugs могут отсутствовать: тогда эндпоинты отвечают 503
	Advice AdviceAsker
	Drugs  DrugSearcher
	Logger *zap.Logger
}

// Handler обслуживает эндпоинты /api/v1
type Handler struct {
	ledger       *ledger.Ledger
	profiles     *service.ProfileService
	bookings     *service.BookingService
	professional *service.ProfessionalService
	tokens       *identity.TokenIssuer
	carts        *cart.Registry
	journal      *service.JournalService
	catalog      *service.CatalogService
	advice       AdviceAsker
	drugs        DrugSearcher
	logger       *zap.Logger
	now          func() time.Time
}

func New(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	carts := d.Carts
	if carts == nil {
		carts = cart.NewRegistry()
	}
	return &Handler{
		ledger:       d.Ledger,
		profiles:     d.Profiles,
		bookings:     d.Bookings,
		professional: d.Professional,
		tokens:       d.Tokens,
		carts:        carts,
		journal:      d.Journal,
		catalog:      d.Catalog,
		advice:       d.Advice,
		drugs:        d.Drugs,
		logger:       logger,
		now:          time.Now,
	}
}

func (h *Handler) today() string {
	return h.now().Format(model.DateLayout)
}

func session(r *http.Request) identity.Session {
	return middleware.GetSession(r.Context())
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &ledger.ValidationError{Field: "body", Reason: "invalid JSON"}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func (h *Handler) jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, errorResponse{Error: msg})
}

// writeError переводит доменные ошибки в HTTP статусы
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *ledger.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ve.Reason, Field: ve.Field})
		return
	}

	var ue *advice.UpstreamError
	code := http.StatusInternalServerError
	msg := "internal server error"

	switch {
	case errors.Is(err, identity.ErrInvalidToken), errors.Is(err, service.ErrInvalidCredentials):
		code, msg = http.StatusUnauthorized, err.Error()
	case errors.Is(err, ledger.ErrUnauthorized):
		code, msg = http.StatusForbidden, "not allowed"
	case errors.Is(err, ledger.ErrNotFound):
		code, msg = http.StatusNotFound, "slot not found"
	case errors.Is(err, service.ErrProfileNotFound),
		errors.Is(err, service.ErrProfessionalMissing),
		errors.Is(err, service.ErrNoActiveBooking),
		errors.Is(err, service.ErrProductNotFound):
		code, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, ledger.ErrSlotWithdrawn):
		code, msg = http.StatusConflict, "slot was withdrawn"
	case errors.Is(err, ledger.ErrSlotUnavailable):
		code, msg = http.StatusConflict, "slot is no longer available"
	case errors.Is(err, service.ErrAlreadyBooked),
		errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrTelegramRegistered),
		errors.Is(err, service.ErrProductExists):
		code, msg = http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrDrugSearchDisabled):
		code, msg = http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, ledger.ErrStoreUnavailable), errors.Is(err, circuitbreaker.ErrOpen):
		code, msg = http.StatusServiceUnavailable, "service temporarily unavailable, please retry"
	case errors.As(err, &ue):
		code, msg = http.StatusBadGateway, ue.Message
	}

	if code >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
	}

	h.jsonError(w, msg, code)
}
