package handlers

import (
	"errors"
	"net/http"
	"strings"

	"tendering/db"
	"tendering/internal/auth"
)

type updateUserRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=100"`
	Address  *string `json:"address" validate:"omitempty,max=255"`
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	Password *string `json:"password" validate:"omitempty,min=8,max=72"`
	UserType *string `json:"user_type" validate:"omitempty,min=1"`
}

type userCategoriesRequest struct {
	CategoryIDs []int64 `json:"category_ids" validate:"dive,gt=0"`
}

// selfOrAdmin - доступ к профилю имеют владелец и администратор
func selfOrAdmin(w http.ResponseWriter, r *http.Request, userID int64) bool {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Authorization required", http.StatusUnauthorized)
		return false
	}
	if !isAdmin(claims) && claims.UserID != userID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return false
	}
	return true
}

// requireUserType проверяет, что тип пользователя существует
func (h *Handler) requireUserType(w http.ResponseWriter, r *http.Request, name string) bool {
	_, err := h.Store.GetUserTypeByName(r.Context(), name)
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "Unknown user_type", http.StatusBadRequest)
		return false
	}
	if err != nil {
		h.fail(w, r, err, "User type")
		return false
	}
	return true
}

// MeHandler возвращает текущего пользователя
func (h *Handler) MeHandler(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	u, err := h.Store.GetUser(r.Context(), claims.UserID)
	if err != nil {
		h.fail(w, r, err, "User")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)
	userType := strings.TrimSpace(r.URL.Query().Get("user_type"))

	users, err := h.Store.ListUsers(r.Context(), userType, params.Limit, params.Offset)
	if err != nil {
		h.fail(w, r, err, "Users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// CreateUserHandler - администратор создаёт пользователя любого типа
func (h *Handler) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if !h.requireUserType(w, r, req.UserType) {
		return
	}
	u, ok := h.newUser(w, r, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *Handler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok || !selfOrAdmin(w, r, userID) {
		return
	}
	u, err := h.Store.GetUser(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err, "User")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// UpdateUserHandler - частичное обновление. Сменить тип может только администратор.
func (h *Handler) UpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok || !selfOrAdmin(w, r, userID) {
		return
	}
	var req updateUserRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	claims := auth.ClaimsFromContext(r.Context())
	u, err := h.Store.GetUser(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err, "User")
		return
	}

	if req.UserType != nil && *req.UserType != u.UserType {
		if !isAdmin(claims) {
			http.Error(w, "Only admin can change user_type", http.StatusForbidden)
			return
		}
		if !h.requireUserType(w, r, *req.UserType) {
			return
		}
		u.UserType = *req.UserType
	}
	if req.Name != nil {
		u.Name = strings.TrimSpace(*req.Name)
	}
	if req.Address != nil {
		u.Address = *req.Address
	}
	if req.Email != nil {
		u.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			h.fail(w, r, err, "User")
			return
		}
		u.PasswordHash = hash
	}

	if err := h.Store.UpdateUser(r.Context(), u); err != nil {
		h.fail(w, r, err, "User")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	if err := h.Store.DeleteUser(r.Context(), userID); err != nil {
		h.fail(w, r, err, "User")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UnlockUserHandler снимает блокировку входа
func (h *Handler) UnlockUserHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	if err := h.Store.SetLoginState(r.Context(), userID, 0, nil); err != nil {
		h.fail(w, r, err, "User")
		return
	}
	u, err := h.Store.GetUser(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err, "User")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// SetUserCategoriesHandler заменяет подписки пользователя на категории
func (h *Handler) SetUserCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok || !selfOrAdmin(w, r, userID) {
		return
	}
	var req userCategoriesRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	for _, id := range req.CategoryIDs {
		if _, err := h.Store.GetCategory(r.Context(), id); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				http.Error(w, "Unknown category", http.StatusBadRequest)
				return
			}
			h.fail(w, r, err, "Category")
			return
		}
	}

	if err := h.Store.SetUserCategories(r.Context(), userID, req.CategoryIDs); err != nil {
		h.fail(w, r, err, "User")
		return
	}
	u, err := h.Store.GetUser(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err, "User")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// UsersCategoriesHandler - пользователи вместе с категориями (эндпоинт /users_categories)
func (h *Handler) UsersCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	items, err := h.Store.ListUsersWithCategories(r.Context())
	if err != nil {
		h.fail(w, r, err, "Users")
		return
	}
	writeJSON(w, http.StatusOK, items)
}
