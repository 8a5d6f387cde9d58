package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tendering/db"
	"tendering/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// User (Пользователь)

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if err := s.requireUserType(ctx, u.UserType); err != nil {
		return err
	}
	id, err := s.nextID(ctx, colUsers)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	doc := userDoc{
		ID:           id,
		Name:         u.Name,
		Address:      u.Address,
		UserType:     u.UserType,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Categories:   []int64{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.col(colUsers).InsertOne(ctx, doc); err != nil {
		return mapError(err)
	}
	u.ID, u.CreatedAt, u.UpdatedAt = id, now, now
	u.Categories, u.Tenders, u.Bids = []int64{}, []int64{}, []int64{}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var doc userDoc
	if err := s.col(colUsers).FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, mapError(err)
	}
	users := []models.User{doc.model()}
	if err := s.fillUserRelations(ctx, users); err != nil {
		return nil, err
	}
	return &users[0], nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var doc userDoc
	if err := s.col(colUsers).FindOne(ctx, bson.M{"email": email}).Decode(&doc); err != nil {
		return nil, mapError(err)
	}
	u := doc.model()
	return &u, nil
}

func (s *Store) GetUsersByIDs(ctx context.Context, ids []int64) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	docs, err := findAll[userDoc](ctx, s.col(colUsers), bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("get users by ids: %w", err)
	}
	return userModels(docs), nil
}

func (s *Store) ListUsers(ctx context.Context, userType string, limit, offset int) ([]models.User, error) {
	filter := bson.M{}
	if userType != "" {
		filter["user_type"] = userType
	}
	docs, err := findAll[userDoc](ctx, s.col(colUsers), filter,
		findOptions(bson.D{{Key: "_id", Value: 1}}, limit, offset))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := userModels(docs)
	if err := s.fillUserRelations(ctx, users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	if err := s.requireUserType(ctx, u.UserType); err != nil {
		return err
	}
	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{
		"name":          u.Name,
		"address":       u.Address,
		"user_type":     u.UserType,
		"email":         u.Email,
		"password_hash": u.PasswordHash,
		"updated_at":    now,
	}}
	if err := matched(s.col(colUsers).UpdateOne(ctx, bson.M{"_id": u.ID}, update)); err != nil {
		return err
	}
	u.UpdatedAt = now
	return nil
}

// DeleteUser повторяет ограничения внешних ключей postgres-схемы:
// сотрудник с тендерами не удаляется, предложения и отзывы удаляются вместе с пользователем.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	n, err := s.col(colTenders).CountDocuments(ctx, bson.M{"staff_id": id})
	if err != nil {
		return fmt.Errorf("check user tenders: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("%w: user owns %d tenders", db.ErrConflict, n)
	}
	if err := deleted(s.col(colUsers).DeleteOne(ctx, bson.M{"_id": id})); err != nil {
		return err
	}
	if _, err := s.col(colBids).DeleteMany(ctx, bson.M{"bidder_id": id}); err != nil {
		return fmt.Errorf("delete user bids: %w", err)
	}
	if _, err := s.col(colFeedback).DeleteMany(ctx, bson.M{"user_id": id}); err != nil {
		return fmt.Errorf("delete user feedback: %w", err)
	}
	if _, err := s.col(colTenders).UpdateMany(ctx, bson.M{"winner": id}, bson.M{"$set": bson.M{"winner": nil}}); err != nil {
		return fmt.Errorf("reset tender winner: %w", err)
	}
	return nil
}

func (s *Store) SetLoginState(ctx context.Context, id int64, failed int, lockedUntil *time.Time) error {
	update := bson.M{"$set": bson.M{"failed_login_attempts": failed, "locked_until": lockedUntil}}
	return matched(s.col(colUsers).UpdateOne(ctx, bson.M{"_id": id}, update))
}

// SetUserCategories заменяет подписки пользователя. Связь хранится только в users.categories.
func (s *Store) SetUserCategories(ctx context.Context, userID int64, categoryIDs []int64) error {
	ids := dedupe(categoryIDs)
	if len(ids) > 0 {
		n, err := s.col(colCategories).CountDocuments(ctx, bson.M{"_id": bson.M{"$in": ids}})
		if err != nil {
			return fmt.Errorf("check categories: %w", err)
		}
		if int(n) != len(ids) {
			return fmt.Errorf("%w: unknown category", db.ErrConflict)
		}
	}
	update := bson.M{"$set": bson.M{"categories": ids, "updated_at": time.Now().UTC()}}
	return matched(s.col(colUsers).UpdateOne(ctx, bson.M{"_id": userID}, update))
}

func (s *Store) ListUsersWithCategories(ctx context.Context) ([]models.UserWithCategories, error) {
	docs, err := findAll[userDoc](ctx, s.col(colUsers), bson.M{},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := userModels(docs)
	if err := s.fillUserRelations(ctx, users); err != nil {
		return nil, err
	}

	catDocs, err := findAll[categoryDoc](ctx, s.col(colCategories), bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list user categories: %w", err)
	}
	byID := make(map[int64]models.Category, len(catDocs))
	for _, c := range catDocs {
		byID[c.ID] = c.model()
	}

	out := make([]models.UserWithCategories, len(users))
	for i, u := range users {
		cats := []models.Category{}
		for _, id := range u.Categories {
			if c, ok := byID[id]; ok {
				cats = append(cats, c)
			}
		}
		out[i] = models.UserWithCategories{User: u, CategoryList: cats}
	}
	return out, nil
}

func (s *Store) fillUserRelations(ctx context.Context, users []models.User) error {
	if len(users) == 0 {
		return nil
	}
	ids := make([]int64, len(users))
	for i := range users {
		ids[i] = users[i].ID
	}
	tenders, err := s.loadPairs(ctx, colTenders, "staff_id", ids)
	if err != nil {
		return err
	}
	bids, err := s.loadPairs(ctx, colBids, "bidder_id", ids)
	if err != nil {
		return err
	}
	for i := range users {
		users[i].Tenders = nonNil(tenders[users[i].ID])
		users[i].Bids = nonNil(bids[users[i].ID])
	}
	return nil
}

func (s *Store) requireUserType(ctx context.Context, name string) error {
	err := s.col(colUserTypes).FindOne(ctx, bson.M{"type_name": name}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: unknown user type %q", db.ErrConflict, name)
	}
	return mapError(err)
}

func userModels(docs []userDoc) []models.User {
	users := make([]models.User, len(docs))
	for i, d := range docs {
		users[i] = d.model()
	}
	return users
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
