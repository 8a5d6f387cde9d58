package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tendering/db"
	"tendering/internal/auth"
	"tendering/internal/procurement"
	"tendering/models"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type createTenderRequest struct {
	Name             string          `json:"tender_name" validate:"required,max=200"`
	Description      string          `json:"description" validate:"max=4000"`
	CategoryID       *int64          `json:"category_id" validate:"omitempty,gt=0"`
	ConstructionFrom time.Time       `json:"construction_from" validate:"required"`
	ConstructionTo   time.Time       `json:"construction_to" validate:"required"`
	NoticeDate       *time.Time      `json:"notice_date"`
	CloseDate        time.Time       `json:"close_date" validate:"required"`
	BiddingPrice     decimal.Decimal `json:"bidding_price"`
}

type updateTenderRequest struct {
	Name             *string          `json:"tender_name" validate:"omitempty,min=1,max=200"`
	Description      *string          `json:"description" validate:"omitempty,max=4000"`
	CategoryID       *int64           `json:"category_id" validate:"omitempty,gt=0"`
	ConstructionFrom *time.Time       `json:"construction_from"`
	ConstructionTo   *time.Time       `json:"construction_to"`
	NoticeDate       *time.Time       `json:"notice_date"`
	CloseDate        *time.Time       `json:"close_date"`
	BiddingPrice     *decimal.Decimal `json:"bidding_price"`
}

type winnerRequest struct {
	BidID *int64 `json:"bid_id" validate:"omitempty,gt=0"`
}

// parseTenderFilter читает status, category_id (можно несколько) и staff_id
func parseTenderFilter(r *http.Request) (models.TenderFilter, error) {
	q := r.URL.Query()
	var f models.TenderFilter

	if s := q.Get("status"); s != "" {
		f.Status = models.TenderStatus(s)
		if !models.ValidTenderStatus(f.Status) {
			return f, errors.New("invalid status")
		}
	}
	for _, v := range q["category_id"] {
		for _, part := range strings.Split(v, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil || id <= 0 {
				return f, errors.New("invalid category_id")
			}
			f.CategoryIDs = append(f.CategoryIDs, id)
		}
	}
	staffID, err := queryID(r, "staff_id")
	if err != nil {
		return f, err
	}
	f.StaffID = staffID
	return f, nil
}

// loadTender достаёт тендер по {tenderId}; при ошибке ответ уже записан
func (h *Handler) loadTender(w http.ResponseWriter, r *http.Request) (*models.Tender, bool) {
	id, ok := pathID(w, r, "tenderId")
	if !ok {
		return nil, false
	}
	t, err := h.Store.GetTender(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Tender")
		return nil, false
	}
	return t, true
}

// loadOwnedTender дополнительно проверяет, что тендером управляет текущий пользователь
func (h *Handler) loadOwnedTender(w http.ResponseWriter, r *http.Request) (*models.Tender, bool) {
	t, ok := h.loadTender(w, r)
	if !ok {
		return nil, false
	}
	if !ownsTender(auth.ClaimsFromContext(r.Context()), t) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return nil, false
	}
	return t, true
}

// checkCategory - указанная категория должна существовать
func (h *Handler) checkCategory(w http.ResponseWriter, r *http.Request, id *int64) bool {
	if id == nil {
		return true
	}
	_, err := h.Store.GetCategory(r.Context(), *id)
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "Unknown category", http.StatusBadRequest)
		return false
	}
	if err != nil {
		h.fail(w, r, err, "Category")
		return false
	}
	return true
}

// GetTendersHandler возвращает список тендеров с фильтрами
func (h *Handler) GetTendersHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)
	f, err := parseTenderFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	tenders, err := h.Store.ListTenders(r.Context(), f, params.Limit, params.Offset)
	if err != nil {
		h.fail(w, r, err, "Tenders")
		return
	}
	writeJSON(w, http.StatusOK, tenders)
}

// FindTendersHandler - тот же список, но с сотрудником, категорией и победителем
func (h *Handler) FindTendersHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)
	f, err := parseTenderFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	tenders, err := h.Store.ListTenders(r.Context(), f, params.Limit, params.Offset)
	if err != nil {
		h.fail(w, r, err, "Tenders")
		return
	}
	views, err := h.populateTenders(r.Context(), tenders)
	if err != nil {
		h.fail(w, r, err, "Tenders")
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// GetUserTendersHandler - тендеры текущего сотрудника
func (h *Handler) GetUserTendersHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)
	f, err := parseTenderFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.StaffID = auth.ClaimsFromContext(r.Context()).UserID

	tenders, err := h.Store.ListTenders(r.Context(), f, params.Limit, params.Offset)
	if err != nil {
		h.fail(w, r, err, "Tenders")
		return
	}
	writeJSON(w, http.StatusOK, tenders)
}

// RecommendedTendersHandler - открытые тендеры в категориях, на которые подписана компания
func (h *Handler) RecommendedTendersHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)
	claims := auth.ClaimsFromContext(r.Context())

	u, err := h.Store.GetUser(r.Context(), claims.UserID)
	if err != nil {
		h.fail(w, r, err, "User")
		return
	}
	if len(u.Categories) == 0 {
		writeJSON(w, http.StatusOK, []models.Tender{})
		return
	}

	f := models.TenderFilter{Status: models.TenderOpen, CategoryIDs: u.Categories, ClosesAfter: h.Now()}
	tenders, err := h.Store.ListTenders(r.Context(), f, params.Limit, params.Offset)
	if err != nil {
		h.fail(w, r, err, "Tenders")
		return
	}
	writeJSON(w, http.StatusOK, tenders)
}

// CreateTenderHandler - сотрудник города публикует тендер
func (h *Handler) CreateTenderHandler(w http.ResponseWriter, r *http.Request) {
	var req createTenderRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	now := h.Now()
	claims := auth.ClaimsFromContext(r.Context())

	t := &models.Tender{
		Name:             strings.TrimSpace(req.Name),
		Description:      req.Description,
		CategoryID:       req.CategoryID,
		ConstructionFrom: req.ConstructionFrom,
		ConstructionTo:   req.ConstructionTo,
		NoticeDate:       now,
		CloseDate:        req.CloseDate,
		BiddingPrice:     req.BiddingPrice,
		Status:           models.TenderOpen,
		StaffID:          claims.UserID,
	}
	if req.NoticeDate != nil {
		t.NoticeDate = *req.NoticeDate
	}
	if err := procurement.ValidateSchedule(t, now, true); err != nil {
		h.fail(w, r, err, "Tender")
		return
	}
	if !h.checkCategory(w, r, t.CategoryID) {
		return
	}

	if err := h.Store.CreateTender(r.Context(), t); err != nil {
		h.fail(w, r, err, "Tender")
		return
	}
	h.Log.Info().Int64("tender_id", t.ID).Int64("staff_id", t.StaffID).Msg("tender created")
	writeJSON(w, http.StatusCreated, t)
}

// GetTenderHandler - тендер с заполненными связями. Предложения видят владелец
// и администратор, компания видит только своё, остальные - только победителя.
func (h *Handler) GetTenderHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := h.loadTender(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	views, err := h.populateTenders(ctx, []models.Tender{*t})
	if err != nil {
		h.fail(w, r, err, "Tender")
		return
	}
	view := views[0]

	bids, err := h.Store.ListTenderBids(ctx, t.ID)
	if err != nil {
		h.fail(w, r, err, "Bids")
		return
	}
	claims := auth.ClaimsFromContext(ctx)
	visible := make([]models.Bid, 0, len(bids))
	for _, b := range bids {
		switch {
		case ownsTender(claims, t):
			visible = append(visible, b)
		case claims != nil && claims.UserID == b.BidderID:
			visible = append(visible, b)
		case b.IsWinner:
			visible = append(visible, b)
		}
	}
	if view.BidList, err = h.bidViews(ctx, visible); err != nil {
		h.fail(w, r, err, "Bids")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// EditTenderHandler - частичное редактирование открытого тендера
func (h *Handler) EditTenderHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := h.loadOwnedTender(w, r)
	if !ok {
		return
	}
	var input updateTenderRequest
	if !h.decodeBody(w, r, &input) {
		return
	}
	if err := procurement.Editable(t); err != nil {
		h.fail(w, r, err, "Tender")
		return
	}

	if input.Name != nil {
		t.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		t.Description = *input.Description
	}
	if input.CategoryID != nil {
		if !h.checkCategory(w, r, input.CategoryID) {
			return
		}
		t.CategoryID = input.CategoryID
	}
	if input.ConstructionFrom != nil {
		t.ConstructionFrom = *input.ConstructionFrom
	}
	if input.ConstructionTo != nil {
		t.ConstructionTo = *input.ConstructionTo
	}
	if input.NoticeDate != nil {
		t.NoticeDate = *input.NoticeDate
	}
	if input.CloseDate != nil {
		t.CloseDate = *input.CloseDate
	}
	if input.BiddingPrice != nil {
		t.BiddingPrice = *input.BiddingPrice
	}
	if err := procurement.ValidateSchedule(t, h.Now(), input.CloseDate != nil); err != nil {
		h.fail(w, r, err, "Tender")
		return
	}

	if err := h.Store.UpdateTender(r.Context(), t); err != nil {
		h.fail(w, r, err, "Tender")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// DeleteTenderHandler - тендер с выбранным победителем удалить нельзя
func (h *Handler) DeleteTenderHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := h.loadOwnedTender(w, r)
	if !ok {
		return
	}
	if t.Status == models.TenderAwarded {
		http.Error(w, "Awarded tender cannot be deleted", http.StatusConflict)
		return
	}
	if err := h.Store.DeleteTender(r.Context(), t.ID); err != nil {
		h.fail(w, r, err, "Tender")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ChangeTenderStatusHandler - ручная смена статуса (?status=)
func (h *Handler) ChangeTenderStatusHandler(w http.ResponseWriter, r *http.Request) {
	status := models.TenderStatus(r.URL.Query().Get("status"))
	if !models.ValidTenderStatus(status) {
		http.Error(w, "Invalid status", http.StatusBadRequest)
		return
	}
	t, ok := h.loadOwnedTender(w, r)
	if !ok {
		return
	}
	if err := procurement.CanTransition(t, status, h.Now()); err != nil {
		h.fail(w, r, err, "Tender")
		return
	}

	t.Status = status
	if err := h.Store.UpdateTender(r.Context(), t); err != nil {
		h.fail(w, r, err, "Tender")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// SelectWinnerHandler завершает тендер: выбранное или самое дешёвое предложение побеждает
func (h *Handler) SelectWinnerHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := h.loadOwnedTender(w, r)
	if !ok {
		return
	}

	var req winnerRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Invalid field: bid_id", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	now := h.Now()
	if err := procurement.CanFinalize(t, now); err != nil {
		h.fail(w, r, err, "Tender")
		return
	}
	bids, err := h.Store.ListTenderBids(ctx, t.ID)
	if err != nil {
		h.fail(w, r, err, "Bids")
		return
	}
	winner, err := procurement.SelectWinner(bids, req.BidID)
	if err != nil {
		h.fail(w, r, err, "Bid")
		return
	}
	bids = procurement.FinalizeWinner(t, bids, winner, now)

	if err := h.Store.AwardTender(ctx, t, winner.ID); err != nil {
		h.fail(w, r, err, "Tender")
		return
	}
	h.Log.Info().Int64("tender_id", t.ID).Int64("bid_id", winner.ID).Msg("tender awarded")

	views, err := h.populateTenders(ctx, []models.Tender{*t})
	if err != nil {
		h.fail(w, r, err, "Tender")
		return
	}
	view := views[0]
	if view.BidList, err = h.bidViews(ctx, bids); err != nil {
		h.fail(w, r, err, "Bids")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) TenderVersionsHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := h.loadOwnedTender(w, r)
	if !ok {
		return
	}
	versions, err := h.Store.ListTenderVersions(r.Context(), t.ID)
	if err != nil {
		h.fail(w, r, err, "Tender versions")
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

// RollbackTenderHandler восстанавливает содержимое версии и сохраняет его как новую версию.
// Статус и победитель не откатываются; восстановленный срок подачи должен быть в будущем.
func (h *Handler) RollbackTenderHandler(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version <= 0 {
		http.Error(w, "Invalid version", http.StatusBadRequest)
		return
	}
	t, ok := h.loadOwnedTender(w, r)
	if !ok {
		return
	}
	if err := procurement.Editable(t); err != nil {
		h.fail(w, r, err, "Tender")
		return
	}

	v, err := h.Store.GetTenderVersion(r.Context(), t.ID, version)
	if err != nil {
		h.fail(w, r, err, "Tender version")
		return
	}
	t.Name = v.Name
	t.Description = v.Description
	t.CategoryID = v.CategoryID
	t.ConstructionFrom = v.ConstructionFrom
	t.ConstructionTo = v.ConstructionTo
	t.NoticeDate = v.NoticeDate
	t.CloseDate = v.CloseDate
	t.BiddingPrice = v.BiddingPrice
	if err := procurement.ValidateSchedule(t, h.Now(), true); err != nil {
		h.fail(w, r, err, "Tender")
		return
	}

	if err := h.Store.UpdateTender(r.Context(), t); err != nil {
		h.fail(w, r, err, "Tender")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// TenderFeedbackHandler - отзывы по тендеру
func (h *Handler) TenderFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := h.loadTender(w, r)
	if !ok {
		return
	}
	params := parsePaginationParams(r)
	items, err := h.Store.ListFeedback(r.Context(), models.FeedbackFilter{TenderID: t.ID}, params.Limit, params.Offset)
	if err != nil {
		h.fail(w, r, err, "Feedback")
		return
	}
	writeJSON(w, http.StatusOK, items)
}
