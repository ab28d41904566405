package handlers

import (
	"net/http"

	"github.com/Freeeeeet/felanocare/internal/ledger"
	"github.com/Freeeeeet/felanocare/internal/model"
)

type ProfileResponse struct {
	*model.Profile
	AgeCategory model.AgeCategory `json:"age_category"`
}

type UpdateProfileRequest struct {
	Name      string `json:"name"`
	BirthDate string `json:"birth_date"`
}

// Me - GET /me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.Get(r.Context(), session(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{Profile: p, AgeCategory: h.profiles.AgeCategory(p)})
}

// UpdateMe - PATCH /me
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.profiles.UpdateProfile(r.Context(), session(r), req.Name, req.BirthDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{Profile: p, AgeCategory: h.profiles.AgeCategory(p)})
}

// Overview - GET /me/overview
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.bookings.Overview(r.Context(), session(r), h.today())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

// Dashboard - GET /me/dashboard?date=&status=
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ledger.SlotFilter{
		Date:   q.Get("date"),
		Status: model.SlotStatus(q.Get("status")),
	}
	if f.Date != "" {
		if err := ledger.ValidateDate(f.Date); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	d, err := h.professional.Dashboard(r.Context(), session(r), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
