// Package mongostore - реализация хранилища поверх MongoDB.
// Числовые идентификаторы выдаются коллекцией counters, связи
// многие-ко-многим хранятся с одной стороны (users.categories).
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"tendering/db"
	"tendering/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	colCounters       = "counters"
	colUserTypes      = "user_types"
	colUsers          = "users"
	colCategories     = "categories"
	colTenders        = "tenders"
	colTenderVersions = "tender_versions"
	colBids           = "bids"
	colFeedback       = "feedback"
)

var defaultUserTypes = []models.UserType{
	{Name: models.RoleCity, Description: "City staff publishing tenders"},
	{Name: models.RoleCompany, Description: "Company submitting bids"},
	{Name: models.RoleCitizen, Description: "Citizen viewing tenders and leaving feedback"},
	{Name: models.RoleAdmin, Description: "Administrator managing users and categories"},
}

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect подключается к MongoDB, создаёт индексы и базовые типы пользователей
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := &Store{client: client, db: client.Database(database)}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	if err := s.seedUserTypes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	unique := func(keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true)}
	}
	plain := func(keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys}
	}

	indexes := map[string][]mongo.IndexModel{
		colUserTypes:  {unique(bson.D{{Key: "type_name", Value: 1}})},
		colUsers:      {unique(bson.D{{Key: "email", Value: 1}}), plain(bson.D{{Key: "categories", Value: 1}})},
		colCategories: {unique(bson.D{{Key: "category_name", Value: 1}})},
		colTenders: {
			plain(bson.D{{Key: "tender_status", Value: 1}, {Key: "close_date", Value: 1}}),
			plain(bson.D{{Key: "staff_id", Value: 1}}),
		},
		colTenderVersions: {unique(bson.D{{Key: "tender_id", Value: 1}, {Key: "version", Value: 1}})},
		colBids: {
			unique(bson.D{{Key: "bidder_id", Value: 1}, {Key: "tender_id", Value: 1}}),
			plain(bson.D{{Key: "tender_id", Value: 1}}),
		},
		colFeedback: {plain(bson.D{{Key: "tender_id", Value: 1}})},
	}
	for name, idx := range indexes {
		if _, err := s.col(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) seedUserTypes(ctx context.Context) error {
	for _, t := range defaultUserTypes {
		n, err := s.col(colUserTypes).CountDocuments(ctx, bson.M{"type_name": t.Name})
		if err != nil {
			return fmt.Errorf("seed user types: %w", err)
		}
		if n > 0 {
			continue
		}
		t := t
		if err := s.CreateUserType(ctx, &t); err != nil && !errors.Is(err, db.ErrConflict) {
			return fmt.Errorf("seed user types: %w", err)
		}
	}
	return nil
}

// nextID выдаёт следующий идентификатор для коллекции
func (s *Store) nextID(ctx context.Context, name string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := s.col(colCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next id for %s: %w", name, err)
	}
	return counter.Seq, nil
}

// mapError приводит ошибки драйвера к ошибкам хранилища
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return db.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", db.ErrConflict, err)
	default:
		return err
	}
}

func matched(res *mongo.UpdateResult, err error) error {
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount == 0 {
		return db.ErrNotFound
	}
	return nil
}

func deleted(res *mongo.DeleteResult, err error) error {
	if err != nil {
		return mapError(err)
	}
	if res.DeletedCount == 0 {
		return db.ErrNotFound
	}
	return nil
}

func findOptions(sort bson.D, limit, offset int) *options.FindOptions {
	opts := options.Find().SetSort(sort)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	return opts
}

// findAll декодирует все документы выборки
func findAll[T any](ctx context.Context, c *mongo.Collection, filter interface{}, opts ...*options.FindOptions) ([]T, error) {
	cur, err := c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// loadPairs группирует id документов по значению поля-владельца
func (s *Store) loadPairs(ctx context.Context, name, ownerField string, owners []int64) (map[int64][]int64, error) {
	type pair struct {
		ID    int64 `bson:"_id"`
		Owner int64 `bson:"owner"`
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{ownerField: bson.M{"$in": owners}}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
		{{Key: "$project", Value: bson.M{"_id": 1, "owner": "$" + ownerField}}},
	}
	cur, err := s.col(name).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("load %s relations: %w", name, err)
	}
	var rows []pair
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("load %s relations: %w", name, err)
	}
	out := make(map[int64][]int64)
	for _, r := range rows {
		out[r.Owner] = append(out[r.Owner], r.ID)
	}
	return out, nil
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
