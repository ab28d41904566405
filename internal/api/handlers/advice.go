package handlers

import (
	"net/http"

	"github.com/Freeeeeet/felanocare/internal/advice"
)

type AdviceRequest struct {
	Module string `json:"module"`
	Input  string `json:"input"`
}

type DrugsResponse struct {
	Results []advice.DrugRecord `json:"results"`
}

// Advice - POST /advice. Возрастная группа берётся из профиля, а не из запроса.
func (h *Handler) Advice(w http.ResponseWriter, r *http.Request) {
	if h.advice == nil {
		h.jsonError(w, "AI assistant is not configured", http.StatusServiceUnavailable)
		return
	}

	var req AdviceRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.profiles.Get(r.Context(), session(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	reply, err := h.advice.Ask(r.Context(), advice.AdviceRequest{
		Module:      req.Module,
		AgeCategory: h.profiles.AgeCategory(p),
		UserText:    req.Input,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// SearchDrugs - GET /drugs?term=
func (h *Handler) SearchDrugs(w http.ResponseWriter, r *http.Request) {
	if h.drugs == nil {
		h.jsonError(w, "drug search is not configured", http.StatusServiceUnavailable)
		return
	}

	records, err := h.drugs.Search(r.Context(), r.URL.Query().Get("term"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DrugsResponse{Results: records})
}
