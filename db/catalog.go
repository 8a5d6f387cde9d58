package db

import (
	"context"
	"fmt"

	"tendering/models"

	"github.com/lib/pq"
)

// UserType (Тип пользователя)

func (s *Storage) CreateUserType(ctx context.Context, t *models.UserType) error {
	query := `
        INSERT INTO user_types (type_name, description)
        VALUES ($1, $2)
        RETURNING type_id`
	return mapError(s.db.QueryRowContext(ctx, query, t.Name, t.Description).Scan(&t.ID))
}

func (s *Storage) GetUserType(ctx context.Context, id int64) (*models.UserType, error) {
	t := &models.UserType{}
	query := `SELECT type_id, type_name, description FROM user_types WHERE type_id=$1`
	if err := s.db.GetContext(ctx, t, query, id); err != nil {
		return nil, mapError(err)
	}
	return t, nil
}

func (s *Storage) GetUserTypeByName(ctx context.Context, name string) (*models.UserType, error) {
	t := &models.UserType{}
	query := `SELECT type_id, type_name, description FROM user_types WHERE type_name=$1`
	if err := s.db.GetContext(ctx, t, query, name); err != nil {
		return nil, mapError(err)
	}
	return t, nil
}

func (s *Storage) ListUserTypes(ctx context.Context) ([]models.UserType, error) {
	types := []models.UserType{}
	query := `SELECT type_id, type_name, description FROM user_types ORDER BY type_id`
	if err := s.db.SelectContext(ctx, &types, query); err != nil {
		return nil, fmt.Errorf("list user types: %w", err)
	}
	return types, nil
}

// UpdateUserType переименование каскадно обновляет users.user_type (ON UPDATE CASCADE)
func (s *Storage) UpdateUserType(ctx context.Context, t *models.UserType) error {
	query := `UPDATE user_types SET type_name=$1, description=$2 WHERE type_id=$3`
	return expectAffected(s.db.ExecContext(ctx, query, t.Name, t.Description, t.ID))
}

func (s *Storage) DeleteUserType(ctx context.Context, id int64) error {
	query := `DELETE FROM user_types WHERE type_id=$1`
	return expectAffected(s.db.ExecContext(ctx, query, id))
}

// Category (Категория)

func (s *Storage) CreateCategory(ctx context.Context, c *models.Category) error {
	query := `
        INSERT INTO categories (category_name)
        VALUES ($1)
        RETURNING category_id, created_at`
	if err := s.db.QueryRowContext(ctx, query, c.Name).Scan(&c.ID, &c.CreatedAt); err != nil {
		return mapError(err)
	}
	c.Users = []int64{}
	return nil
}

func (s *Storage) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	c := &models.Category{}
	query := `SELECT category_id, category_name, created_at FROM categories WHERE category_id=$1`
	if err := s.db.GetContext(ctx, c, query, id); err != nil {
		return nil, mapError(err)
	}
	cats := []models.Category{*c}
	if err := s.fillCategoryUsers(ctx, cats); err != nil {
		return nil, err
	}
	return &cats[0], nil
}

func (s *Storage) ListCategories(ctx context.Context) ([]models.Category, error) {
	cats := []models.Category{}
	query := `SELECT category_id, category_name, created_at FROM categories ORDER BY category_name`
	if err := s.db.SelectContext(ctx, &cats, query); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if err := s.fillCategoryUsers(ctx, cats); err != nil {
		return nil, err
	}
	return cats, nil
}

func (s *Storage) UpdateCategory(ctx context.Context, c *models.Category) error {
	query := `UPDATE categories SET category_name=$1 WHERE category_id=$2`
	return expectAffected(s.db.ExecContext(ctx, query, c.Name, c.ID))
}

func (s *Storage) DeleteCategory(ctx context.Context, id int64) error {
	query := `DELETE FROM categories WHERE category_id=$1`
	return expectAffected(s.db.ExecContext(ctx, query, id))
}

func (s *Storage) ListCategoryUsers(ctx context.Context, categoryID int64) ([]models.User, error) {
	users := []models.User{}
	query := `
        SELECT u.user_id, u.name, u.address, u.user_type, u.email, u.password_hash,
               u.failed_login_attempts, u.locked_until, u.created_at, u.updated_at
        FROM users u
        JOIN user_categories uc ON uc.user_id = u.user_id
        WHERE uc.category_id = $1
        ORDER BY u.user_id`
	if err := s.db.SelectContext(ctx, &users, query, categoryID); err != nil {
		return nil, fmt.Errorf("list category users: %w", err)
	}
	if err := s.fillUserRelations(ctx, users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Storage) fillCategoryUsers(ctx context.Context, cats []models.Category) error {
	if len(cats) == 0 {
		return nil
	}
	ids := make([]int64, len(cats))
	for i := range cats {
		ids[i] = cats[i].ID
	}
	var rows []struct {
		CategoryID int64 `db:"category_id"`
		UserID     int64 `db:"user_id"`
	}
	query := `SELECT category_id, user_id FROM user_categories WHERE category_id = ANY($1) ORDER BY user_id`
	if err := s.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
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
