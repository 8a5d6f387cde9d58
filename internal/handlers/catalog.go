package handlers

import (
	"net/http"
	"strings"

	"tendering/models"
)

type userTypeRequest struct {
	Name        string `json:"type_name" validate:"required,max=50"`
	Description string `json:"description" validate:"max=255"`
}

type categoryRequest struct {
	Name string `json:"category_name" validate:"required,max=100"`
}

// Типы пользователей

func (h *Handler) ListUserTypesHandler(w http.ResponseWriter, r *http.Request) {
	types, err := h.Store.ListUserTypes(r.Context())
	if err != nil {
		h.fail(w, r, err, "User types")
		return
	}
	writeJSON(w, http.StatusOK, types)
}

func (h *Handler) GetUserTypeHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "typeId")
	if !ok {
		return
	}
	t, err := h.Store.GetUserType(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "User type")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) CreateUserTypeHandler(w http.ResponseWriter, r *http.Request) {
	var req userTypeRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	t := &models.UserType{Name: strings.TrimSpace(req.Name), Description: req.Description}
	if err := h.Store.CreateUserType(r.Context(), t); err != nil {
		h.fail(w, r, err, "User type")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// loadUserType достаёт тип по {typeId}
func (h *Handler) loadUserType(w http.ResponseWriter, r *http.Request) (*models.UserType, bool) {
	id, ok := pathID(w, r, "typeId")
	if !ok {
		return nil, false
	}
	t, err := h.Store.GetUserType(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "User type")
		return nil, false
	}
	return t, true
}

// UpdateUserTypeHandler - переименование переносится на пользователей этого типа.
// Встроенные роли можно только описывать заново.
func (h *Handler) UpdateUserTypeHandler(w http.ResponseWriter, r *http.Request) {
	cur, ok := h.loadUserType(w, r)
	if !ok {
		return
	}
	var req userTypeRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	t := &models.UserType{ID: cur.ID, Name: strings.TrimSpace(req.Name), Description: req.Description}
	if models.BuiltinUserType(cur.Name) && t.Name != cur.Name {
		http.Error(w, "Built-in user type cannot be renamed", http.StatusConflict)
		return
	}
	if err := h.Store.UpdateUserType(r.Context(), t); err != nil {
		h.fail(w, r, err, "User type")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) DeleteUserTypeHandler(w http.ResponseWriter, r *http.Request) {
	cur, ok := h.loadUserType(w, r)
	if !ok {
		return
	}
	if models.BuiltinUserType(cur.Name) {
		http.Error(w, "Built-in user type cannot be deleted", http.StatusConflict)
		return
	}
	if err := h.Store.DeleteUserType(r.Context(), cur.ID); err != nil {
		h.fail(w, r, err, "User type")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Категории

func (h *Handler) ListCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Store.ListCategories(r.Context())
	if err != nil {
		h.fail(w, r, err, "Categories")
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (h *Handler) GetCategoryHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "categoryId")
	if !ok {
		return
	}
	c, err := h.Store.GetCategory(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Category")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) CreateCategoryHandler(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	c := &models.Category{Name: strings.TrimSpace(req.Name)}
	if err := h.Store.CreateCategory(r.Context(), c); err != nil {
		h.fail(w, r, err, "Category")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) UpdateCategoryHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "categoryId")
	if !ok {
		return
	}
	var req categoryRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	c := &models.Category{ID: id, Name: strings.TrimSpace(req.Name)}
	if err := h.Store.UpdateCategory(r.Context(), c); err != nil {
		h.fail(w, r, err, "Category")
		return
	}
	updated, err := h.Store.GetCategory(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Category")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteCategoryHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "categoryId")
	if !ok {
		return
	}
	if err := h.Store.DeleteCategory(r.Context(), id); err != nil {
		h.fail(w, r, err, "Category")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CategoryUsersHandler - подписчики категории
func (h *Handler) CategoryUsersHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "categoryId")
	if !ok {
		return
	}
	if _, err := h.Store.GetCategory(r.Context(), id); err != nil {
		h.fail(w, r, err, "Category")
		return
	}
	users, err := h.Store.ListCategoryUsers(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}
