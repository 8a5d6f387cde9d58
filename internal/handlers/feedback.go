package handlers

import (
	"errors"
	"net/http"
	"strings"

	"tendering/db"
	"tendering/internal/auth"
	"tendering/models"
)

type feedbackRequest struct {
	TenderID *int64 `json:"tender_id" validate:"omitempty,gt=0"`
	Message  string `json:"message" validate:"required,max=2000"`
}

// CreateFeedbackHandler - отзыв о тендере или о сервисе в целом
func (h *Handler) CreateFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		http.Error(w, "Invalid field: Message", http.StatusBadRequest)
		return
	}
	if req.TenderID != nil {
		_, err := h.Store.GetTender(r.Context(), *req.TenderID)
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "Unknown tender", http.StatusBadRequest)
			return
		}
		if err != nil {
			h.fail(w, r, err, "Tender")
			return
		}
	}

	f := &models.Feedback{
		UserID:   auth.ClaimsFromContext(r.Context()).UserID,
		TenderID: req.TenderID,
		Message:  msg,
	}
	if err := h.Store.CreateFeedback(r.Context(), f); err != nil {
		h.fail(w, r, err, "Feedback")
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (h *Handler) ListFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)
	tenderID, err := queryID(r, "tender_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	userID, err := queryID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f := models.FeedbackFilter{TenderID: tenderID, UserID: userID}
	items, err := h.Store.ListFeedback(r.Context(), f, params.Limit, params.Offset)
	if err != nil {
		h.fail(w, r, err, "Feedback")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// DeleteFeedbackHandler - удалить может автор или администратор
func (h *Handler) DeleteFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "feedbackId")
	if !ok {
		return
	}
	f, err := h.Store.GetFeedback(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Feedback")
		return
	}
	claims := auth.ClaimsFromContext(r.Context())
	if !isAdmin(claims) && claims.UserID != f.UserID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if err := h.Store.DeleteFeedback(r.Context(), id); err != nil {
		h.fail(w, r, err, "Feedback")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StatsHandler - сводка для администратора
func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	st, err := h.Store.GetStats(r.Context())
	if err != nil {
		h.fail(w, r, err, "Stats")
		return
	}
	writeJSON(w, http.StatusOK, st)
}
