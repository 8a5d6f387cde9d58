package handlers

import (
	"errors"
	"net/http"
	"strings"

	"tendering/db"
	"tendering/internal/auth"
	"tendering/models"
)

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Address  string `json:"address" validate:"max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	UserType string `json:"user_type" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// RegisterHandler - самостоятельная регистрация компаний и граждан
func (h *Handler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.UserType != models.RoleCompany && req.UserType != models.RoleCitizen {
		http.Error(w, "Self registration is allowed only for Company and Citizen", http.StatusForbidden)
		return
	}

	u, ok := h.newUser(w, r, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// newUser хэширует пароль и сохраняет пользователя
func (h *Handler) newUser(w http.ResponseWriter, r *http.Request, req registerRequest) (*models.User, bool) {
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.fail(w, r, err, "User")
		return nil, false
	}
	u := &models.User{
		Name:         strings.TrimSpace(req.Name),
		Address:      req.Address,
		UserType:     req.UserType,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
	}
	if err := h.Store.CreateUser(r.Context(), u); err != nil {
		h.fail(w, r, err, "User")
		return nil, false
	}
	return u, true
}

// LoginHandler проверяет пароль с учётом блокировки после неудачных попыток
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	ctx := r.Context()
	now := h.Now()

	u, err := h.Store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}
	if err != nil {
		h.fail(w, r, err, "User")
		return
	}

	if h.Lockout.IsLocked(u, now) {
		http.Error(w, "Account is locked, try again later", http.StatusLocked)
		return
	}

	if err := auth.CheckPassword(u.PasswordHash, req.Password); err != nil {
		state := h.Lockout.RegisterFailure(u, now)
		if err := h.Store.SetLoginState(ctx, u.ID, state.FailedAttempts, state.LockedUntil); err != nil {
			h.fail(w, r, err, "User")
			return
		}
		if state.LockedUntil != nil {
			h.Log.Warn().Int64("user_id", u.ID).Time("locked_until", *state.LockedUntil).Msg("account locked")
			http.Error(w, "Account is locked, try again later", http.StatusLocked)
			return
		}
		http.Error(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	if h.Lockout.NeedsReset(u) {
		if err := h.Store.SetLoginState(ctx, u.ID, 0, nil); err != nil {
			h.fail(w, r, err, "User")
			return
		}
		u.FailedLoginAttempts, u.LockedUntil = 0, nil
	}

	token, err := h.Tokens.GenerateToken(u.ID, u.UserType)
	if err != nil {
		h.fail(w, r, err, "Token")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: u})
}
