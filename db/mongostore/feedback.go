package mongostore

import (
	"context"
	"fmt"
	"time"

	"tendering/db"
	"tendering/models"

	"go.mongodb.org/mongo-driver/bson"
)

// Feedback (Отзыв)

func (s *Store) CreateFeedback(ctx context.Context, f *models.Feedback) error {
	if f.TenderID != nil {
		n, err := s.col(colTenders).CountDocuments(ctx, bson.M{"_id": *f.TenderID})
		if err != nil {
			return fmt.Errorf("check feedback tender: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: unknown tender %d", db.ErrConflict, *f.TenderID)
		}
	}
	id, err := s.nextID(ctx, colFeedback)
	if err != nil {
		return err
	}
	doc := feedbackDoc{
		ID:        id,
		UserID:    f.UserID,
		TenderID:  f.TenderID,
		Message:   f.Message,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.col(colFeedback).InsertOne(ctx, doc); err != nil {
		return mapError(err)
	}
	f.ID, f.CreatedAt = id, doc.CreatedAt
	return nil
}

func (s *Store) GetFeedback(ctx context.Context, id int64) (*models.Feedback, error) {
	var doc feedbackDoc
	if err := s.col(colFeedback).FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, mapError(err)
	}
	f := doc.model()
	return &f, nil
}

func (s *Store) ListFeedback(ctx context.Context, f models.FeedbackFilter, limit, offset int) ([]models.Feedback, error) {
	filter := bson.M{}
	if f.TenderID > 0 {
		filter["tender_id"] = f.TenderID
	}
	if f.UserID > 0 {
		filter["user_id"] = f.UserID
	}
	sort := bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	docs, err := findAll[feedbackDoc](ctx, s.col(colFeedback), filter, findOptions(sort, limit, offset))
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	out := make([]models.Feedback, len(docs))
	for i, d := range docs {
		out[i] = d.model()
	}
	return out, nil
}

func (s *Store) DeleteFeedback(ctx context.Context, id int64) error {
	return deleted(s.col(colFeedback).DeleteOne(ctx, bson.M{"_id": id}))
}

// GetStats собирает сводку для администратора
func (s *Store) GetStats(ctx context.Context) (*models.Stats, error) {
	st := &models.Stats{}
	var err error
	if st.UsersByType, err = s.countBy(ctx, colUsers, "user_type"); err != nil {
		return nil, err
	}
	if st.TendersByStatus, err = s.countBy(ctx, colTenders, "tender_status"); err != nil {
		return nil, err
	}

	totals := map[string]*int{
		colBids:       &st.BidCount,
		colFeedback:   &st.FeedbackCount,
		colCategories: &st.CategoryCount,
	}
	for name, dst := range totals {
		n, err := s.col(name).CountDocuments(ctx, bson.M{})
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", name, err)
		}
		*dst = int(n)
	}
	return st, nil
}

func (s *Store) countBy(ctx context.Context, name, field string) (map[string]int, error) {
	pipeline := bson.A{
		bson.M{"$group": bson.M{"_id": "$" + field, "count": bson.M{"$sum": 1}}},
	}
	cur, err := s.col(name).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", name, err)
	}
	var groups []struct {
		Key   string `bson:"_id"`
		Count int    `bson:"count"`
	}
	if err := cur.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("count %s: %w", name, err)
	}
	out := make(map[string]int, len(groups))
	for _, g := range groups {
		out[g.Key] = g.Count
	}
	return out, nil
}
