package db

import (
	"context"
	"fmt"
	"time"

	"tendering/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const userColumns = `user_id, name, address, user_type, email, password_hash,
        failed_login_attempts, locked_until, created_at, updated_at`

// User (Пользователь)

func (s *Storage) CreateUser(ctx context.Context, u *models.User) error {
	query := `
        INSERT INTO users (name, address, user_type, email, password_hash)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING user_id, created_at, updated_at`
	err := s.db.QueryRowContext(ctx, query, u.Name, u.Address, u.UserType, u.Email, u.PasswordHash).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	u.Categories, u.Tenders, u.Bids = []int64{}, []int64{}, []int64{}
	return nil
}

func (s *Storage) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u := &models.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id=$1`
	if err := s.db.GetContext(ctx, u, query, id); err != nil {
		return nil, mapError(err)
	}
	users := []models.User{*u}
	if err := s.fillUserRelations(ctx, users); err != nil {
		return nil, err
	}
	return &users[0], nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u := &models.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	if err := s.db.GetContext(ctx, u, query, email); err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

// GetUsersByIDs возвращает пользователей без вычисляемых связей
func (s *Storage) GetUsersByIDs(ctx context.Context, ids []int64) ([]models.User, error) {
	users := []models.User{}
	if len(ids) == 0 {
		return users, nil
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = ANY($1) ORDER BY user_id`
	if err := s.db.SelectContext(ctx, &users, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("get users by ids: %w", err)
	}
	return users, nil
}

func (s *Storage) ListUsers(ctx context.Context, userType string, limit, offset int) ([]models.User, error) {
	users := []models.User{}
	query := `
        SELECT ` + userColumns + `
        FROM users
        WHERE ($1::text = '' OR user_type = $1)
        ORDER BY user_id ASC
        LIMIT $2 OFFSET $3`
	if err := s.db.SelectContext(ctx, &users, query, userType, limit, offset); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if err := s.fillUserRelations(ctx, users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Storage) UpdateUser(ctx context.Context, u *models.User) error {
	query := `
        UPDATE users
        SET name=$1, address=$2, user_type=$3, email=$4, password_hash=$5, updated_at=NOW()
        WHERE user_id=$6
        RETURNING updated_at`
	err := s.db.QueryRowContext(ctx, query,
		u.Name, u.Address, u.UserType, u.Email, u.PasswordHash, u.ID).
		Scan(&u.UpdatedAt)
	return mapError(err)
}

func (s *Storage) DeleteUser(ctx context.Context, id int64) error {
	query := `DELETE FROM users WHERE user_id=$1`
	return expectAffected(s.db.ExecContext(ctx, query, id))
}

// SetLoginState сохраняет счётчик неудачных входов и срок блокировки
func (s *Storage) SetLoginState(ctx context.Context, id int64, failed int, lockedUntil *time.Time) error {
	query := `
        UPDATE users
        SET failed_login_attempts=$1, locked_until=$2
        WHERE user_id=$3`
	return expectAffected(s.db.ExecContext(ctx, query, failed, lockedUntil, id))
}

// SetUserCategories заменяет подписки пользователя на категории.
// Связь хранится только в user_categories, обратная сторона вычисляется.
func (s *Storage) SetUserCategories(ctx context.Context, userID int64, categoryIDs []int64) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE user_id=$1)`, userID); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM user_categories WHERE user_id=$1`, userID); err != nil {
			return err
		}
		if len(categoryIDs) == 0 {
			return nil
		}
		query := `
            INSERT INTO user_categories (user_id, category_id)
            SELECT $1, unnest($2::bigint[])
            ON CONFLICT DO NOTHING`
		_, err := tx.ExecContext(ctx, query, userID, pq.Array(categoryIDs))
		return mapError(err)
	})
}

func (s *Storage) ListUsersWithCategories(ctx context.Context) ([]models.UserWithCategories, error) {
	users := []models.User{}
	query := `SELECT ` + userColumns + ` FROM users ORDER BY user_id`
	if err := s.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if err := s.fillUserRelations(ctx, users); err != nil {
		return nil, err
	}

	var rows []struct {
		UserID int64 `db:"user_id"`
		models.Category
	}
	catQuery := `
        SELECT uc.user_id, c.category_id, c.category_name, c.created_at
        FROM user_categories uc
        JOIN categories c ON c.category_id = uc.category_id
        ORDER BY uc.user_id, c.category_id`
	if err := s.db.SelectContext(ctx, &rows, catQuery); err != nil {
		return nil, fmt.Errorf("list user categories: %w", err)
	}
	byUser := make(map[int64][]models.Category)
	for _, r := range rows {
		byUser[r.UserID] = append(byUser[r.UserID], r.Category)
	}

	out := make([]models.UserWithCategories, len(users))
	for i, u := range users {
		cats := byUser[u.ID]
		if cats == nil {
			cats = []models.Category{}
		}
		out[i] = models.UserWithCategories{User: u, CategoryList: cats}
	}
	return out, nil
}

// fillUserRelations вычисляет categories, tenders и bids для пачки пользователей
func (s *Storage) fillUserRelations(ctx context.Context, users []models.User) error {
	if len(users) == 0 {
		return nil
	}
	ids := make([]int64, len(users))
	for i := range users {
		ids[i] = users[i].ID
	}

	cats, err := s.loadPairs(ctx,
		`SELECT user_id AS owner, category_id AS item FROM user_categories WHERE user_id = ANY($1) ORDER BY category_id`, ids)
	if err != nil {
		return err
	}
	tenders, err := s.loadPairs(ctx,
		`SELECT staff_id AS owner, tender_id AS item FROM tenders WHERE staff_id = ANY($1) ORDER BY tender_id`, ids)
	if err != nil {
		return err
	}
	bids, err := s.loadPairs(ctx,
		`SELECT bidder_id AS owner, bid_id AS item FROM bids WHERE bidder_id = ANY($1) ORDER BY bid_id`, ids)
	if err != nil {
		return err
	}

	for i := range users {
		users[i].Categories = nonNil(cats[users[i].ID])
		users[i].Tenders = nonNil(tenders[users[i].ID])
		users[i].Bids = nonNil(bids[users[i].ID])
	}
	return nil
}

func (s *Storage) loadPairs(ctx context.Context, query string, ids []int64) (map[int64][]int64, error) {
	var rows []struct {
		Owner int64 `db:"owner"`
		Item  int64 `db:"item"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("load relations: %w", err)
	}
	out := make(map[int64][]int64)
	for _, r := range rows {
		out[r.Owner] = append(out[r.Owner], r.Item)
	}
	return out, nil
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
