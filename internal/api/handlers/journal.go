package handlers

import (
	"context"
	"net/http"

	"github.com/Freeeeeet/felanocare/internal/ledger"
	"github.com/Freeeeeet/felanocare/internal/model"
)

type AddJournalEntryRequest struct {
	Text string `json:"text"`
}

type JournalResponse struct {
	Entries []model.JournalEntry `json:"entries"`
}

// ListJournal - GET /me/journal
func (h *Handler) ListJournal(w http.ResponseWriter, r *http.Request) {
	entries, err := h.journal.Entries(r.Context(), session(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, JournalResponse{Entries: entries})
}

// AddJournalEntry - POST /me/journal
func (h *Handler) AddJournalEntry(w http.ResponseWriter, r *http.Request) {
	var req AddJournalEntryRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	entry, err := h.journal.Add(r.Context(), session(r), req.Text)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// StreamJournal - GET /ws/me/journal
func (h *Handler) StreamJournal(w http.ResponseWriter, r *http.Request) {
	sess := session(r)
	serveStream(h, w, r, func(ctx context.Context) (*ledger.Stream[[]model.JournalEntry], error) {
		return h.journal.Watch(ctx, sess)
	})
}
