package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Freeeeeet/felanocare/internal/model"
)

type PublishRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type BookingResponse struct {
	Booking *model.Slot `json:"booking"`
}

// ListProfessionals - GET /professionals
func (h *Handler) ListProfessionals(w http.ResponseWriter, r *http.Request) {
	pros, err := h.profiles.ListProfessionals(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if pros == nil {
		pros = []*model.Profile{}
	}
	writeJSON(w, http.StatusOK, pros)
}

// ListSlots - GET /owners/{ownerID}/slots?date=
func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")

	var (
		slots []model.Slot
		err   error
	)
	if date := r.URL.Query().Get("date"); date != "" {
		slots, err = h.ledger.SlotsForDate(r.Context(), session(r), ownerID, date)
	} else {
		slots, err = h.ledger.AvailableSlots(r.Context(), session(r), ownerID)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

// ListDates - GET /owners/{ownerID}/dates
func (h *Handler) ListDates(w http.ResponseWriter, r *http.Request) {
	dates, err := h.ledger.AvailableDates(r.Context(), session(r), chi.URLParam(r, "ownerID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dates)
}

// GetBooking - GET /owners/{ownerID}/booking. Специалист может указать ?patient_id=.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	sess := session(r)
	patientID := r.URL.Query().Get("patient_id")
	if patientID == "" {
		patientID = sess.UserID
	}

	slot, err := h.ledger.ActiveBooking(r.Context(), sess, chi.URLParam(r, "ownerID"), patientID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BookingResponse{Booking: slot})
}

// CancelBooking - DELETE /owners/{ownerID}/booking
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	if err := h.bookings.CancelBooking(r.Context(), session(r), chi.URLParam(r, "ownerID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PublishSlot - POST /owners/{ownerID}/slots
func (h *Handler) PublishSlot(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	slot, err := h.ledger.PublishSlot(r.Context(), session(r), chi.URLParam(r, "ownerID"), req.Date, req.StartTime, req.EndTime)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, slot)
}

// ClaimSlot - POST /slots/{slotID}/claim
func (h *Handler) ClaimSlot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := session(r)
	slotID := chi.URLParam(r, "slotID")

	slot, err := h.ledger.Slot(ctx, sess, slotID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.bookings.Book(ctx, sess, slot.OwnerID, slotID); err != nil {
		h.writeError(w, r, err)
		return
	}

	slot, err = h.ledger.Slot(ctx, sess, slotID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

// ReleaseSlot - POST /slots/{slotID}/release
func (h *Handler) ReleaseSlot(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.ReleaseSlot(r.Context(), session(r), chi.URLParam(r, "slotID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WithdrawSlot - POST /owners/{ownerID}/slots/{slotID}/withdraw
func (h *Handler) WithdrawSlot(w http.ResponseWriter, r *http.Request) {
	err := h.ledger.WithdrawSlot(r.Context(), session(r), chi.URLParam(r, "ownerID"), chi.URLParam(r, "slotID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
