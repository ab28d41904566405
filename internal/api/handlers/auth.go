package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/Freeeeeet/felanocare/internal/identity"
	"github.com/Freeeeeet/felanocare/internal/model"
)

type SignupRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	BirthDate string `json:"birth_date"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token   string         `json:"token"`
	Profile *model.Profile `json:"profile"`
}

// SignupPatient - POST /auth/signup/patient
func (h *Handler) SignupPatient(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.profiles.SignupPatient(r.Context(), req.Name, req.Email, req.Password, req.BirthDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.issue(w, r, p, http.StatusCreated)
}

// SignupProfessional - POST /auth/signup/professional
func (h *Handler) SignupProfessional(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.profiles.SignupProfessional(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.issue(w, r, p, http.StatusCreated)
}

// Login - POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.profiles.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.issue(w, r, p, http.StatusOK)
}

// Logout - POST /auth/logout. Токены без состояния, выход только чистит корзину.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.carts.Drop(session(r).UserID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request, p *model.Profile, code int) {
	token, err := h.tokens.Issue(identity.Session{UserID: p.UID, Role: p.Role})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Debug("Token issued", zap.String("uid", p.UID), zap.String("role", string(p.Role)))
	writeJSON(w, code, TokenResponse{Token: token, Profile: p})
}
