package db

import (
	"context"
	"fmt"

	"tendering/models"
)

const bidColumns = `bid_id, bidder_id, tender_id, bidding_price, is_winner, created_at, updated_at`

// Bid (Предложение)

func (s *Storage) CreateBid(ctx context.Context, b *models.Bid) error {
	query := `
        INSERT INTO bids (bidder_id, tender_id, bidding_price)
        VALUES ($1, $2, $3)
        RETURNING bid_id, is_winner, created_at, updated_at`
	err := s.db.QueryRowContext(ctx, query, b.BidderID, b.TenderID, b.BiddingPrice).
		Scan(&b.ID, &b.IsWinner, &b.CreatedAt, &b.UpdatedAt)
	return mapError(err)
}

func (s *Storage) GetBid(ctx context.Context, id int64) (*models.Bid, error) {
	b := &models.Bid{}
	query := `SELECT ` + bidColumns + ` FROM bids WHERE bid_id=$1`
	if err := s.db.GetContext(ctx, b, query, id); err != nil {
		return nil, mapError(err)
	}
	return b, nil
}

func (s *Storage) UpdateBid(ctx context.Context, b *models.Bid) error {
	query := `
        UPDATE bids
        SET bidding_price=$1, updated_at=NOW()
        WHERE bid_id=$2
        RETURNING updated_at`
	return mapError(s.db.QueryRowContext(ctx, query, b.BiddingPrice, b.ID).Scan(&b.UpdatedAt))
}

func (s *Storage) DeleteBid(ctx context.Context, id int64) error {
	query := `DELETE FROM bids WHERE bid_id=$1`
	return expectAffected(s.db.ExecContext(ctx, query, id))
}

// ListTenderBids возвращает все предложения тендера в порядке подачи
func (s *Storage) ListTenderBids(ctx context.Context, tenderID int64) ([]models.Bid, error) {
	bids := []models.Bid{}
	query := `SELECT ` + bidColumns + ` FROM bids WHERE tender_id=$1 ORDER BY created_at ASC, bid_id ASC`
	if err := s.db.SelectContext(ctx, &bids, query, tenderID); err != nil {
		return nil, fmt.Errorf("list tender bids: %w", err)
	}
	return bids, nil
}

func (s *Storage) ListUserBids(ctx context.Context, bidderID int64, limit, offset int) ([]models.Bid, error) {
	bids := []models.Bid{}
	query := `
        SELECT ` + bidColumns + ` FROM bids
        WHERE bidder_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3`
	if err := s.db.SelectContext(ctx, &bids, query, bidderID, limit, offset); err != nil {
		return nil, fmt.Errorf("list user bids: %w", err)
	}
	return bids, nil
}

// ListBids - все предложения с участником и названием тендера (эндпоинт /bids)
func (s *Storage) ListBids(ctx context.Context, limit, offset int) ([]models.BidView, error) {
	var rows []struct {
		models.Bid
		BidderName  string `db:"bidder_name"`
		BidderType  string `db:"bidder_type"`
		BidderEmail string `db:"bidder_email"`
		TenderName  string `db:"tender_name"`
	}
	query := `
        SELECT b.bid_id, b.bidder_id, b.tender_id, b.bidding_price, b.is_winner, b.created_at, b.updated_at,
               u.name AS bidder_name, u.user_type AS bidder_type, u.email AS bidder_email,
               t.tender_name
        FROM bids b
        JOIN users u ON u.user_id = b.bidder_id
        JOIN tenders t ON t.tender_id = b.tender_id
        ORDER BY b.created_at DESC, b.bid_id DESC
        LIMIT $1 OFFSET $2`
	if err := s.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}

	out := make([]models.BidView, len(rows))
	for i, r := range rows {
		out[i] = models.BidView{
			Bid: r.Bid,
			Bidder: &models.UserSummary{
				ID:       r.BidderID,
				Name:     r.BidderName,
				UserType: r.BidderType,
				Email:    r.BidderEmail,
			},
			TenderName: r.TenderName,
		}
	}
	return out, nil
}
