package mongostore

import (
	"context"
	"fmt"
	"time"

	"tendering/db"
	"tendering/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Bid (Предложение)

func (s *Store) CreateBid(ctx context.Context, b *models.Bid) error {
	for name, id := range map[string]int64{colUsers: b.BidderID, colTenders: b.TenderID} {
		n, err := s.col(name).CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return fmt.Errorf("check bid reference: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: unknown %s %d", db.ErrConflict, name, id)
		}
	}

	price, err := toDecimal128(b.BiddingPrice)
	if err != nil {
		return err
	}
	id, err := s.nextID(ctx, colBids)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	doc := bidDoc{
		ID:           id,
		BidderID:     b.BidderID,
		TenderID:     b.TenderID,
		BiddingPrice: price,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.col(colBids).InsertOne(ctx, doc); err != nil {
		return mapError(err)
	}
	b.ID, b.IsWinner, b.CreatedAt, b.UpdatedAt = id, false, now, now
	return nil
}

func (s *Store) GetBid(ctx context.Context, id int64) (*models.Bid, error) {
	var doc bidDoc
	if err := s.col(colBids).FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, mapError(err)
	}
	b := doc.model()
	return &b, nil
}

func (s *Store) UpdateBid(ctx context.Context, b *models.Bid) error {
	price, err := toDecimal128(b.BiddingPrice)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{"bidding_price": price, "updated_at": now}}
	if err := matched(s.col(colBids).UpdateOne(ctx, bson.M{"_id": b.ID}, update)); err != nil {
		return err
	}
	b.UpdatedAt = now
	return nil
}

func (s *Store) DeleteBid(ctx context.Context, id int64) error {
	return deleted(s.col(colBids).DeleteOne(ctx, bson.M{"_id": id}))
}

func (s *Store) ListTenderBids(ctx context.Context, tenderID int64) ([]models.Bid, error) {
	sort := bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}
	docs, err := findAll[bidDoc](ctx, s.col(colBids), bson.M{"tender_id": tenderID}, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("list tender bids: %w", err)
	}
	return bidModels(docs), nil
}

func (s *Store) ListUserBids(ctx context.Context, bidderID int64, limit, offset int) ([]models.Bid, error) {
	sort := bson.D{{Key: "created_at", Value: -1}}
	docs, err := findAll[bidDoc](ctx, s.col(colBids), bson.M{"bidder_id": bidderID}, findOptions(sort, limit, offset))
	if err != nil {
		return nil, fmt.Errorf("list user bids: %w", err)
	}
	return bidModels(docs), nil
}

// ListBids собирает предложения с участником и названием тендера через $lookup
func (s *Store) ListBids(ctx context.Context, limit, offset int) ([]models.BidView, error) {
	pipeline := bson.A{
		bson.M{"$sort": bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}},
		bson.M{"$skip": int64(offset)},
		bson.M{"$limit": int64(limit)},
		bson.M{"$lookup": bson.M{"from": colUsers, "localField": "bidder_id", "foreignField": "_id", "as": "bidder"}},
		bson.M{"$lookup": bson.M{"from": colTenders, "localField": "tender_id", "foreignField": "_id", "as": "tender"}},
		bson.M{"$unwind": "$bidder"},
		bson.M{"$unwind": "$tender"},
	}
	cur, err := s.col(colBids).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	var rows []struct {
		Bid    bidDoc    `bson:",inline"`
		Bidder userDoc   `bson:"bidder"`
		Tender tenderDoc `bson:"tender"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}

	out := make([]models.BidView, len(rows))
	for i, r := range rows {
		bidder := r.Bidder.model()
		out[i] = models.BidView{
			Bid:        r.Bid.model(),
			Bidder:     bidder.Summary(),
			TenderName: r.Tender.Name,
		}
	}
	return out, nil
}

func bidModels(docs []bidDoc) []models.Bid {
	out := make([]models.Bid, len(docs))
	for i, d := range docs {
		out[i] = d.model()
	}
	return out
}
