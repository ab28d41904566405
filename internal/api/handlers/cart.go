package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Freeeeeet/felanocare/internal/cart"
	"github.com/Freeeeeet/felanocare/internal/ledger"
)

// AddToCartRequest - цена и категория берутся из каталога, а не от клиента
type AddToCartRequest struct {
	ProductID string `json:"product_id"`
}

type CartResponse struct {
	Items []cart.Item `json:"items"`
	Total int64       `json:"total"`
}

func cartResponse(c *cart.Cart) CartResponse {
	return CartResponse{Items: c.Items(), Total: c.Total()}
}

// GetCart - GET /cart
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, cartResponse(h.carts.For(session(r).UserID)))
}

// AddToCart - POST /cart
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req AddToCartRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.ProductID) == "" {
		h.writeError(w, r, &ledger.ValidationError{Field: "product_id", Reason: "required"})
		return
	}

	p, err := h.catalog.Get(r.Context(), req.ProductID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	c := h.carts.For(session(r).UserID)
	c.Add(p.ID, p.Price, p.Category)
	writeJSON(w, http.StatusOK, cartResponse(c))
}

// RemoveFromCart - DELETE /cart/{productID}
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	c := h.carts.For(session(r).UserID)
	if !c.Remove(chi.URLParam(r, "productID")) {
		h.jsonError(w, "product not in cart", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse(c))
}

// ClearCart - DELETE /cart
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	c := h.carts.For(session(r).UserID)
	c.Clear()
	writeJSON(w, http.StatusOK, cartResponse(c))
}
