package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tendering/db"
	"tendering/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Tender (Тендер)

func (s *Store) CreateTender(ctx context.Context, t *models.Tender) error {
	id, err := s.nextID(ctx, colTenders)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	t.ID, t.Version, t.CreatedAt, t.UpdatedAt = id, 1, now, now
	t.Bids = []int64{}

	doc, err := newTenderDoc(t)
	if err != nil {
		return err
	}
	if _, err := s.col(colTenders).InsertOne(ctx, doc); err != nil {
		return mapError(err)
	}
	return s.saveTenderVersion(ctx, t, now)
}

func (s *Store) GetTender(ctx context.Context, id int64) (*models.Tender, error) {
	var doc tenderDoc
	if err := s.col(colTenders).FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, mapError(err)
	}
	tenders := []models.Tender{doc.model()}
	if err := s.fillTenderBids(ctx, tenders); err != nil {
		return nil, err
	}
	return &tenders[0], nil
}

// buildTenderFilter переводит фильтр выборки в запрос MongoDB
func buildTenderFilter(f models.TenderFilter) bson.M {
	filter := bson.M{}
	if f.Status != "" {
		filter["tender_status"] = string(f.Status)
	}
	if len(f.CategoryIDs) > 0 {
		filter["category_id"] = bson.M{"$in": f.CategoryIDs}
	}
	if f.StaffID > 0 {
		filter["staff_id"] = f.StaffID
	}
	if !f.ClosesAfter.IsZero() {
		filter["close_date"] = bson.M{"$gt": f.ClosesAfter}
	}
	return filter
}

func (s *Store) ListTenders(ctx context.Context, f models.TenderFilter, limit, offset int) ([]models.Tender, error) {
	sort := bson.D{{Key: "close_date", Value: 1}, {Key: "_id", Value: 1}}
	docs, err := findAll[tenderDoc](ctx, s.col(colTenders), buildTenderFilter(f), findOptions(sort, limit, offset))
	if err != nil {
		return nil, fmt.Errorf("list tenders: %w", err)
	}
	tenders := tenderModels(docs)
	if err := s.fillTenderBids(ctx, tenders); err != nil {
		return nil, err
	}
	return tenders, nil
}

func (s *Store) ListExpiredOpenTenders(ctx context.Context, now time.Time) ([]models.Tender, error) {
	filter := bson.M{
		"tender_status": string(models.TenderOpen),
		"close_date":    bson.M{"$lte": now},
	}
	docs, err := findAll[tenderDoc](ctx, s.col(colTenders), filter,
		options.Find().SetSort(bson.D{{Key: "close_date", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list expired tenders: %w", err)
	}
	return tenderModels(docs), nil
}

// UpdateTender увеличивает версию и сохраняет снимок.
// Документ обновляется только при совпадении версии, иначе ErrConflict.
func (s *Store) UpdateTender(ctx context.Context, t *models.Tender) error {
	price, err := toDecimal128(t.BiddingPrice)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"tender_name":       t.Name,
			"description":       t.Description,
			"category_id":       t.CategoryID,
			"construction_from": t.ConstructionFrom,
			"construction_to":   t.ConstructionTo,
			"notice_date":       t.NoticeDate,
			"close_date":        t.CloseDate,
			"bidding_price":     price,
			"tender_status":     string(t.Status),
			"updated_at":        now,
		},
		"$inc": bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	filter := bson.M{"_id": t.ID, "version": t.Version}
	var doc tenderDoc
	if err := s.col(colTenders).FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if err = mapError(err); errors.Is(err, db.ErrNotFound) {
			return s.staleTender(ctx, t.ID)
		}
		return err
	}
	t.Version, t.UpdatedAt = doc.Version, now
	return s.saveTenderVersion(ctx, t, now)
}

// staleTender различает удалённый тендер и тендер, изменённый параллельно
func (s *Store) staleTender(ctx context.Context, id int64) error {
	n, err := s.col(colTenders).CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("check tender: %w", err)
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return fmt.Errorf("%w: tender was modified concurrently", db.ErrConflict)
}

// AwardTender сначала закрывает тендер условным обновлением, затем отмечает предложения.
// Без транзакций повторное награждение отсекается условием на статус.
func (s *Store) AwardTender(ctx context.Context, t *models.Tender, winningBidID int64) error {
	n, err := s.col(colBids).CountDocuments(ctx, bson.M{"_id": winningBidID, "tender_id": t.ID})
	if err != nil {
		return fmt.Errorf("check winning bid: %w", err)
	}
	if n == 0 {
		return db.ErrNotFound
	}

	now := time.Now().UTC()
	filter := bson.M{
		"_id":           t.ID,
		"tender_status": bson.M{"$in": bson.A{string(models.TenderOpen), string(models.TenderPending)}},
	}
	update := bson.M{
		"$set": bson.M{
			"tender_status": string(t.Status),
			"winner":        t.WinnerID,
			"winner_date":   t.WinnerDate,
			"updated_at":    now,
		},
		"$inc": bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc tenderDoc
	err = s.col(colTenders).FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err = mapError(err); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: tender already finalized", db.ErrConflict)
		}
		return err
	}
	t.Version, t.UpdatedAt = doc.Version, now

	if _, err := s.col(colBids).UpdateMany(ctx,
		bson.M{"tender_id": t.ID, "_id": bson.M{"$ne": winningBidID}},
		bson.M{"$set": bson.M{"is_winner": false, "updated_at": now}}); err != nil {
		return fmt.Errorf("reset losing bids: %w", err)
	}
	if _, err := s.col(colBids).UpdateOne(ctx,
		bson.M{"_id": winningBidID},
		bson.M{"$set": bson.M{"is_winner": true, "updated_at": now}}); err != nil {
		return fmt.Errorf("mark winning bid: %w", err)
	}
	return s.saveTenderVersion(ctx, t, now)
}

// DeleteTender удаляет тендер вместе с предложениями, версиями и отзывами
func (s *Store) DeleteTender(ctx context.Context, id int64) error {
	if err := deleted(s.col(colTenders).DeleteOne(ctx, bson.M{"_id": id})); err != nil {
		return err
	}
	for _, name := range []string{colBids, colTenderVersions, colFeedback} {
		if _, err := s.col(name).DeleteMany(ctx, bson.M{"tender_id": id}); err != nil {
			return fmt.Errorf("delete tender %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) saveTenderVersion(ctx context.Context, t *models.Tender, now time.Time) error {
	doc, err := newVersionDoc(t, now)
	if err != nil {
		return err
	}
	_, err = s.col(colTenderVersions).InsertOne(ctx, doc)
	return mapError(err)
}

func (s *Store) GetTenderVersion(ctx context.Context, tenderID int64, version int) (*models.TenderVersion, error) {
	var doc versionDoc
	err := s.col(colTenderVersions).FindOne(ctx, bson.M{"tender_id": tenderID, "version": version}).Decode(&doc)
	if err != nil {
		return nil, mapError(err)
	}
	v := doc.model()
	return &v, nil
}

func (s *Store) ListTenderVersions(ctx context.Context, tenderID int64) ([]models.TenderVersion, error) {
	docs, err := findAll[versionDoc](ctx, s.col(colTenderVersions), bson.M{"tender_id": tenderID},
		options.Find().SetSort(bson.D{{Key: "version", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list tender versions: %w", err)
	}
	out := make([]models.TenderVersion, len(docs))
	for i, d := range docs {
		out[i] = d.model()
	}
	return out, nil
}

func (s *Store) fillTenderBids(ctx context.Context, tenders []models.Tender) error {
	if len(tenders) == 0 {
		return nil
	}
	ids := make([]int64, len(tenders))
	for i := range tenders {
		ids[i] = tenders[i].ID
	}
	bids, err := s.loadPairs(ctx, colBids, "tender_id", ids)
	if err != nil {
		return err
	}
	for i := range tenders {
		tenders[i].Bids = nonNil(bids[tenders[i].ID])
	}
	return nil
}

func tenderModels(docs []tenderDoc) []models.Tender {
	out := make([]models.Tender, len(docs))
	for i, d := range docs {
		out[i] = d.model()
	}
	return out
}
