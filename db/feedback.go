package db

import (
	"context"
	"fmt"

	"tendering/models"
)

// Feedback (Отзыв)

func (s *Storage) CreateFeedback(ctx context.Context, f *models.Feedback) error {
	query := `
        INSERT INTO feedback (user_id, tender_id, message)
        VALUES ($1, $2, $3)
        RETURNING feedback_id, created_at`
	return mapError(s.db.QueryRowContext(ctx, query, f.UserID, f.TenderID, f.Message).
		Scan(&f.ID, &f.CreatedAt))
}

func (s *Storage) GetFeedback(ctx context.Context, id int64) (*models.Feedback, error) {
	f := &models.Feedback{}
	query := `SELECT feedback_id, user_id, tender_id, message, created_at FROM feedback WHERE feedback_id=$1`
	if err := s.db.GetContext(ctx, f, query, id); err != nil {
		return nil, mapError(err)
	}
	return f, nil
}

func (s *Storage) ListFeedback(ctx context.Context, f models.FeedbackFilter, limit, offset int) ([]models.Feedback, error) {
	items := []models.Feedback{}
	query := `
        SELECT feedback_id, user_id, tender_id, message, created_at
        FROM feedback
        WHERE ($1::bigint = 0 OR tender_id = $1)
          AND ($2::bigint = 0 OR user_id = $2)
        ORDER BY created_at DESC, feedback_id DESC
        LIMIT $3 OFFSET $4`
	if err := s.db.SelectContext(ctx, &items, query, f.TenderID, f.UserID, limit, offset); err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	return items, nil
}

func (s *Storage) DeleteFeedback(ctx context.Context, id int64) error {
	query := `DELETE FROM feedback WHERE feedback_id=$1`
	return expectAffected(s.db.ExecContext(ctx, query, id))
}

// GetStats собирает сводку для администратора
func (s *Storage) GetStats(ctx context.Context) (*models.Stats, error) {
	st := &models.Stats{
		UsersByType:     map[string]int{},
		TendersByStatus: map[string]int{},
	}

	var groups []struct {
		Key   string `db:"key"`
		Count int    `db:"count"`
	}
	if err := s.db.SelectContext(ctx, &groups,
		`SELECT user_type AS key, COUNT(*) AS count FROM users GROUP BY user_type`); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	for _, g := range groups {
		st.UsersByType[g.Key] = g.Count
	}

	groups = groups[:0]
	if err := s.db.SelectContext(ctx, &groups,
		`SELECT tender_status AS key, COUNT(*) AS count FROM tenders GROUP BY tender_status`); err != nil {
		return nil, fmt.Errorf("count tenders: %w", err)
	}
	for _, g := range groups {
		st.TendersByStatus[g.Key] = g.Count
	}

	query := `
        SELECT
            (SELECT COUNT(*) FROM bids),
            (SELECT COUNT(*) FROM feedback),
            (SELECT COUNT(*) FROM categories)`
	if err := s.db.QueryRowContext(ctx, query).Scan(&st.BidCount, &st.FeedbackCount, &st.CategoryCount); err != nil {
		return nil, fmt.Errorf("count totals: %w", err)
	}
	return st, nil
}
