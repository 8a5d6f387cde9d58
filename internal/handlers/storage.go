package handlers

import (
	"context"
	"time"

	"tendering/models"
)

// StorageInterface реализуют db.Storage (PostgreSQL) и mongostore.Store (MongoDB)
type StorageInterface interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []int64) ([]models.User, error)
	ListUsers(ctx context.Context, userType string, limit, offset int) ([]models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	DeleteUser(ctx context.Context, id int64) error
	SetLoginState(ctx context.Context, id int64, failed int, lockedUntil *time.Time) error
	SetUserCategories(ctx context.Context, userID int64, categoryIDs []int64) error
	ListUsersWithCategories(ctx context.Context) ([]models.UserWithCategories, error)

	CreateUserType(ctx context.Context, t *models.UserType) error
	GetUserType(ctx context.Context, id int64) (*models.UserType, error)
	GetUserTypeByName(ctx context.Context, name string) (*models.UserType, error)
	ListUserTypes(ctx context.Context) ([]models.UserType, error)
	UpdateUserType(ctx context.Context, t *models.UserType) error
	DeleteUserType(ctx context.Context, id int64) error

	CreateCategory(ctx context.Context, c *models.Category) error
	GetCategory(ctx context.Context, id int64) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	UpdateCategory(ctx context.Context, c *models.Category) error
	DeleteCategory(ctx context.Context, id int64) error
	ListCategoryUsers(ctx context.Context, categoryID int64) ([]models.User, error)

	CreateTender(ctx context.Context, t *models.Tender) error
	GetTender(ctx context.Context, id int64) (*models.Tender, error)
	ListTenders(ctx context.Context, f models.TenderFilter, limit, offset int) ([]models.Tender, error)
	UpdateTender(ctx context.Context, t *models.Tender) error
	AwardTender(ctx context.Context, t *models.Tender, winningBidID int64) error
	DeleteTender(ctx context.Context, id int64) error
	GetTenderVersion(ctx context.Context, tenderID int64, version int) (*models.TenderVersion, error)
	ListTenderVersions(ctx context.Context, tenderID int64) ([]models.TenderVersion, error)

	CreateBid(ctx context.Context, b *models.Bid) error
	GetBid(ctx context.Context, id int64) (*models.Bid, error)
	UpdateBid(ctx context.Context, b *models.Bid) error
	DeleteBid(ctx context.Context, id int64) error
	ListTenderBids(ctx context.Context, tenderID int64) ([]models.Bid, error)
	ListUserBids(ctx context.Context, bidderID int64, limit, offset int) ([]models.Bid, error)
	ListBids(ctx context.Context, limit, offset int) ([]models.BidView, error)

	CreateFeedback(ctx context.Context, f *models.Feedback) error
	GetFeedback(ctx context.Context, id int64) (*models.Feedback, error)
	ListFeedback(ctx context.Context, f models.FeedbackFilter, limit, offset int) ([]models.Feedback, error)
	DeleteFeedback(ctx context.Context, id int64) error
	GetStats(ctx context.Context) (*models.Stats, error)
}
