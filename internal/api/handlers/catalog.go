package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Freeeeeet/felanocare/internal/advice"
	"github.com/Freeeeeet/felanocare/internal/ledger"
	"github.com/Freeeeeet/felanocare/internal/model"
)

type ProductsResponse struct {
	Products []model.Product `json:"products"`
}

type CandidatesResponse struct {
	Results []advice.Label `json:"results"`
}

type SetStockRequest struct {
	Price int64 `json:"price"`
	Stock int   `json:"stock"`
}

// ListProducts - GET /products
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context(), session(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ProductsResponse{Products: products})
}

// GetProduct - GET /products/{productID}
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Get(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ProductCandidates - GET /products/candidates?term=. Этикетки OpenFDA, которых ещё нет в каталоге.
func (h *Handler) ProductCandidates(w http.ResponseWriter, r *http.Request) {
	labels, err := h.catalog.Candidates(r.Context(), session(r), r.URL.Query().Get("term"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CandidatesResponse{Results: labels})
}

// ImportProduct - POST /products
func (h *Handler) ImportProduct(w http.ResponseWriter, r *http.Request) {
	var label advice.Label
	if err := decodeBody(r, &label); err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.catalog.Import(r.Context(), session(r), label)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// SetStock - PUT /products/{productID}/stock
func (h *Handler) SetStock(w http.ResponseWriter, r *http.Request) {
	var req SetStockRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.catalog.SetStock(r.Context(), session(r), chi.URLParam(r, "productID"), req.Price, req.Stock)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// StreamProducts - GET /ws/products
func (h *Handler) StreamProducts(w http.ResponseWriter, r *http.Request) {
	sess := session(r)
	serveStream(h, w, r, func(ctx context.Context) (*ledger.Stream[[]model.Product], error) {
		return h.catalog.Watch(ctx, sess)
	})
}
