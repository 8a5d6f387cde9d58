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

// UserType (Тип пользователя)

func (s *Store) CreateUserType(ctx context.Context, t *models.UserType) error {
	id, err := s.nextID(ctx, colUserTypes)
	if err != nil {
		return err
	}
	doc := userTypeDoc{ID: id, Name: t.Name, Description: t.Description}
	if _, err := s.col(colUserTypes).InsertOne(ctx, doc); err != nil {
		return mapError(err)
	}
	t.ID = id
	return nil
}

func (s *Store) GetUserType(ctx context.Context, id int64) (*models.UserType, error) {
	return s.findUserType(ctx, bson.M{"_id": id})
}

func (s *Store) GetUserTypeByName(ctx context.Context, name string) (*models.UserType, error) {
	return s.findUserType(ctx, bson.M{"type_name": name})
}

func (s *Store) findUserType(ctx context.Context, filter bson.M) (*models.UserType, error) {
	var doc userTypeDoc
	if err := s.col(colUserTypes).FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapError(err)
	}
	t := doc.model()
	return &t, nil
}

func (s *Store) ListUserTypes(ctx context.Context) ([]models.UserType, error) {
	docs, err := findAll[userTypeDoc](ctx, s.col(colUserTypes), bson.M{},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list user types: %w", err)
	}
	out := make([]models.UserType, len(docs))
	for i, d := range docs {
		out[i] = d.model()
	}
	return out, nil
}

// UpdateUserType при переименовании переносит новое имя в users.user_type
func (s *Store) UpdateUserType(ctx context.Context, t *models.UserType) error {
	current, err := s.GetUserType(ctx, t.ID)
	if err != nil {
		return err
	}
	update := bson.M{"$set": bson.M{"type_name": t.Name, "description": t.Description}}
	if err := matched(s.col(colUserTypes).UpdateOne(ctx, bson.M{"_id": t.ID}, update)); err != nil {
		return err
	}
	if current.Name == t.Name {
		return nil
	}
	_, err = s.col(colUsers).UpdateMany(ctx,
		bson.M{"user_type": current.Name},
		bson.M{"$set": bson.M{"user_type": t.Name}})
	if err != nil {
		return fmt.Errorf("rename user type on users: %w", err)
	}
	return nil
}

func (s *Store) DeleteUserType(ctx context.Context, id int64) error {
	current, err := s.GetUserType(ctx, id)
	if err != nil {
		return err
	}
	n, err := s.col(colUsers).CountDocuments(ctx, bson.M{"user_type": current.Name})
	if err != nil {
		return fmt.Errorf("check user type usage: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("%w: user type %q is in use", db.ErrConflict, current.Name)
	}
	return deleted(s.col(colUserTypes).DeleteOne(ctx, bson.M{"_id": id}))
}

// Category (Категория)

func (s *Store) CreateCategory(ctx context.Context, c *models.Category) error {
	id, err := s.nextID(ctx, colCategories)
	if err != nil {
		return err
	}
	doc := categoryDoc{ID: id, Name: c.Name, CreatedAt: time.Now().UTC()}
	if _, err := s.col(colCategories).InsertOne(ctx, doc); err != nil {
		return mapError(err)
	}
	c.ID, c.CreatedAt, c.Users = id, doc.CreatedAt, []int64{}
	return nil
}

func (s *Store) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	var doc categoryDoc
	if err := s.col(colCategories).FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, mapError(err)
	}
	cats := []models.Category{doc.model()}
	if err := s.fillCategoryUsers(ctx, cats); err != nil {
		return nil, err
	}
	return &cats[0], nil
}

func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	docs, err := findAll[categoryDoc](ctx, s.col(colCategories), bson.M{},
		options.Find().SetSort(bson.D{{Key: "category_name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	cats := make([]models.Category, len(docs))
	for i, d := range docs {
		cats[i] = d.model()
	}
	if err := s.fillCategoryUsers(ctx, cats); err != nil {
		return nil, err
	}
	return cats, nil
}

func (s *Store) UpdateCategory(ctx context.Context, c *models.Category) error {
	update := bson.M{"$set": bson.M{"category_name": c.Name}}
	return matched(s.col(colCategories).UpdateOne(ctx, bson.M{"_id": c.ID}, update))
}

// DeleteCategory снимает категорию с пользователей и тендеров
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	if err := deleted(s.col(colCategories).DeleteOne(ctx, bson.M{"_id": id})); err != nil {
		return err
	}
	if _, err := s.col(colUsers).UpdateMany(ctx,
		bson.M{"categories": id}, bson.M{"$pull": bson.M{"categories": id}}); err != nil {
		return fmt.Errorf("detach category from users: %w", err)
	}
	if _, err := s.col(colTenders).UpdateMany(ctx,
		bson.M{"category_id": id}, bson.M{"$set": bson.M{"category_id": nil}}); err != nil {
		return fmt.Errorf("detach category from tenders: %w", err)
	}
	return nil
}

func (s *Store) ListCategoryUsers(ctx context.Context, categoryID int64) ([]models.User, error) {
	docs, err := findAll[userDoc](ctx, s.col(colUsers), bson.M{"categories": categoryID},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list category users: %w", err)
	}
	users := userModels(docs)
	if err := s.fillUserRelations(ctx, users); err != nil {
		return nil, err
	}
	return users, nil
}

// fillCategoryUsers вычисляет подписчиков через $unwind по users.categories
func (s *Store) fillCategoryUsers(ctx context.Context, cats []models.Category) error {
	if len(cats) == 0 {
		return nil
	}
	ids := make([]int64, len(cats))
	for i := range cats {
		ids[i] = cats[i].ID
	}
	pipeline := bson.A{
		bson.M{"$match": bson.M{"categories": bson.M{"$in": ids}}},
		bson.M{"$unwind": "$categories"},
		bson.M{"$match": bson.M{"categories": bson.M{"$in": ids}}},
		bson.M{"$sort": bson.M{"_id": 1}},
		bson.M{"$project": bson.M{"_id": 1, "category": "$categories"}},
	}
	cur, err := s.col(colUsers).Aggregate(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("load category users: %w", err)
	}
	var rows []struct {
		UserID     int64 `bson:"_id"`
		CategoryID int64 `bson:"category"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return fmt.Errorf("load category users: %w", err)
	}
	byCat := make(map[int64][]int64)
	for _, r := range rows {
		byCat[r.CategoryID] = append(byCat[r.CategoryID], r.UserID)
	}
	for i := range cats {
		cats[i].Users = nonNil(byCat[cats[i].ID])
	}
	return nil
}
