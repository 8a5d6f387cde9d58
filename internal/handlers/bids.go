package handlers

import (
	"net/http"

	"tendering/internal/auth"
	"tendering/internal/procurement"
	"tendering/models"

	"github.com/shopspring/decimal"
)

type bidRequest struct {
	BiddingPrice decimal.Decimal `json:"bidding_price"`
}

// loadBid достаёт предложение по {bidId}
func (h *Handler) loadBid(w http.ResponseWriter, r *http.Request) (*models.Bid, bool) {
	id, ok := pathID(w, r, "bidId")
	if !ok {
		return nil, false
	}
	b, err := h.Store.GetBid(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Bid")
		return nil, false
	}
	return b, true
}

// CreateBidHandler - компания подаёт предложение на открытый тендер
func (h *Handler) CreateBidHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := h.loadTender(w, r)
	if !ok {
		return
	}
	var req bidRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if err := procurement.AcceptsBids(t, h.Now()); err != nil {
		h.fail(w, r, err, "Tender")
		return
	}
	if err := procurement.ValidatePrice(req.BiddingPrice); err != nil {
		h.fail(w, r, err, "Bid")
		return
	}

	b := &models.Bid{
		BidderID:     auth.ClaimsFromContext(r.Context()).UserID,
		TenderID:     t.ID,
		BiddingPrice: req.BiddingPrice,
	}
	if err := h.Store.CreateBid(r.Context(), b); err != nil {
		h.fail(w, r, err, "Bid")
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// GetBidsForTenderHandler - владелец и администратор видят все предложения, компания - своё
func (h *Handler) GetBidsForTenderHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := h.loadTender(w, r)
	if !ok {
		return
	}
	claims := auth.ClaimsFromContext(r.Context())
	owner := ownsTender(claims, t)
	if !owner && claims.UserType != models.RoleCompany {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	bids, err := h.Store.ListTenderBids(r.Context(), t.ID)
	if err != nil {
		h.fail(w, r, err, "Bids")
		return
	}
	if !owner {
		own := make([]models.Bid, 0, 1)
		for _, b := range bids {
			if b.BidderID == claims.UserID {
				own = append(own, b)
			}
		}
		bids = own
	}
	views, err := h.bidViews(r.Context(), bids)
	if err != nil {
		h.fail(w, r, err, "Bids")
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// ListBidsHandler - все предложения с участником и названием тендера
func (h *Handler) ListBidsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)
	bids, err := h.Store.ListBids(r.Context(), params.Limit, params.Offset)
	if err != nil {
		h.fail(w, r, err, "Bids")
		return
	}
	writeJSON(w, http.StatusOK, bids)
}

// GetUserBidsHandler - предложения текущей компании
func (h *Handler) GetUserBidsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)
	claims := auth.ClaimsFromContext(r.Context())
	bids, err := h.Store.ListUserBids(r.Context(), claims.UserID, params.Limit, params.Offset)
	if err != nil {
		h.fail(w, r, err, "Bids")
		return
	}
	writeJSON(w, http.StatusOK, bids)
}

// GetBidHandler - доступно участнику, владельцу тендера и администратору
func (h *Handler) GetBidHandler(w http.ResponseWriter, r *http.Request) {
	b, ok := h.loadBid(w, r)
	if !ok {
		return
	}
	claims := auth.ClaimsFromContext(r.Context())
	if claims.UserID != b.BidderID && !isAdmin(claims) {
		t, err := h.Store.GetTender(r.Context(), b.TenderID)
		if err != nil {
			h.fail(w, r, err, "Tender")
			return
		}
		if !ownsTender(claims, t) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}
	writeJSON(w, http.StatusOK, b)
}

// EditBidHandler - участник меняет цену, пока тендер принимает предложения
func (h *Handler) EditBidHandler(w http.ResponseWriter, r *http.Request) {
	b, ok := h.loadBid(w, r)
	if !ok {
		return
	}
	if auth.ClaimsFromContext(r.Context()).UserID != b.BidderID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	var req bidRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if err := procurement.ValidatePrice(req.BiddingPrice); err != nil {
		h.fail(w, r, err, "Bid")
		return
	}
	t, err := h.Store.GetTender(r.Context(), b.TenderID)
	if err != nil {
		h.fail(w, r, err, "Tender")
		return
	}
	if err := procurement.AcceptsBids(t, h.Now()); err != nil {
		h.fail(w, r, err, "Tender")
		return
	}

	b.BiddingPrice = req.BiddingPrice
	if err := h.Store.UpdateBid(r.Context(), b); err != nil {
		h.fail(w, r, err, "Bid")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// DeleteBidHandler - участник отзывает предложение до закрытия приёма, администратор - в любой момент
func (h *Handler) DeleteBidHandler(w http.ResponseWriter, r *http.Request) {
	b, ok := h.loadBid(w, r)
	if !ok {
		return
	}
	claims := auth.ClaimsFromContext(r.Context())
	if !isAdmin(claims) {
		if claims.UserID != b.BidderID {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		t, err := h.Store.GetTender(r.Context(), b.TenderID)
		if err != nil {
			h.fail(w, r, err, "Tender")
			return
		}
		if err := procurement.AcceptsBids(t, h.Now()); err != nil {
			h.fail(w, r, err, "Tender")
			return
		}
	}
	if err := h.Store.DeleteBid(r.Context(), b.ID); err != nil {
		h.fail(w, r, err, "Bid")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
