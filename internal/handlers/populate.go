package handlers

import (
	"context"

	"tendering/models"
)

// populateTenders подставляет сотрудника, категорию и победителя вместо идентификаторов
func (h *Handler) populateTenders(ctx context.Context, tenders []models.Tender) ([]models.TenderView, error) {
	views := make([]models.TenderView, len(tenders))
	if len(tenders) == 0 {
		return views, nil
	}

	var userIDs []int64
	for _, t := range tenders {
		userIDs = append(userIDs, t.StaffID)
		if t.WinnerID != nil {
			userIDs = append(userIDs, *t.WinnerID)
		}
	}
	users, err := h.usersByID(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	cats, err := h.Store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	catByID := make(map[int64]*models.Category, len(cats))
	for i := range cats {
		catByID[cats[i].ID] = &cats[i]
	}

	for i, t := range tenders {
		views[i] = models.TenderView{Tender: t, Staff: users[t.StaffID].Summary()}
		if t.CategoryID != nil {
			views[i].Category = catByID[*t.CategoryID]
		}
		if t.WinnerID != nil {
			views[i].Winner = users[*t.WinnerID].Summary()
		}
	}
	return views, nil
}

// bidViews добавляет к предложениям краткие данные участников
func (h *Handler) bidViews(ctx context.Context, bids []models.Bid) ([]models.BidView, error) {
	ids := make([]int64, len(bids))
	for i, b := range bids {
		ids[i] = b.BidderID
	}
	users, err := h.usersByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	views := make([]models.BidView, len(bids))
	for i, b := range bids {
		views[i] = models.BidView{Bid: b, Bidder: users[b.BidderID].Summary()}
	}
	return views, nil
}

func (h *Handler) usersByID(ctx context.Context, ids []int64) (map[int64]*models.User, error) {
	seen := make(map[int64]bool, len(ids))
	unique := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	users, err := h.Store.GetUsersByIDs(ctx, unique)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]*models.User, len(users))
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out, nil
}
