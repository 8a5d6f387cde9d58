package mongostore

import (
	"fmt"
	"time"

	"tendering/models"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type userTypeDoc struct {
	ID          int64  `bson:"_id"`
	Name        string `bson:"type_name"`
	Description string `bson:"description"`
}

type userDoc struct {
	ID                  int64      `bson:"_id"`
	Name                string     `bson:"name"`
	Address             string     `bson:"address"`
	UserType            string     `bson:"user_type"`
	Email               string     `bson:"email"`
	PasswordHash        string     `bson:"password_hash"`
	FailedLoginAttempts int        `bson:"failed_login_attempts"`
	LockedUntil         *time.Time `bson:"locked_until"`
	Categories          []int64    `bson:"categories"`
	CreatedAt           time.Time  `bson:"created_at"`
	UpdatedAt           time.Time  `bson:"updated_at"`
}

type categoryDoc struct {
	ID        int64     `bson:"_id"`
	Name      string    `bson:"category_name"`
	CreatedAt time.Time `bson:"created_at"`
}

type tenderDoc struct {
	ID               int64                `bson:"_id"`
	Name             string               `bson:"tender_name"`
	Description      string               `bson:"description"`
	CategoryID       *int64               `bson:"category_id"`
	ConstructionFrom time.Time            `bson:"construction_from"`
	ConstructionTo   time.Time            `bson:"construction_to"`
	NoticeDate       time.Time            `bson:"notice_date"`
	CloseDate        time.Time            `bson:"close_date"`
	WinnerDate       *time.Time           `bson:"winner_date"`
	BiddingPrice     primitive.Decimal128 `bson:"bidding_price"`
	Status           string               `bson:"tender_status"`
	StaffID          int64                `bson:"staff_id"`
	WinnerID         *int64               `bson:"winner"`
	Version          int                  `bson:"version"`
	CreatedAt        time.Time            `bson:"created_at"`
	UpdatedAt        time.Time            `bson:"updated_at"`
}

type versionDoc struct {
	TenderID         int64                `bson:"tender_id"`
	Version          int                  `bson:"version"`
	Name             string               `bson:"tender_name"`
	Description      string               `bson:"description"`
	CategoryID       *int64               `bson:"category_id"`
	ConstructionFrom time.Time            `bson:"construction_from"`
	ConstructionTo   time.Time            `bson:"construction_to"`
	NoticeDate       time.Time            `bson:"notice_date"`
	CloseDate        time.Time            `bson:"close_date"`
	BiddingPrice     primitive.Decimal128 `bson:"bidding_price"`
	Status           string               `bson:"tender_status"`
	CreatedAt        time.Time            `bson:"created_at"`
}

type bidDoc struct {
	ID           int64                `bson:"_id"`
	BidderID     int64                `bson:"bidder_id"`
	TenderID     int64                `bson:"tender_id"`
	BiddingPrice primitive.Decimal128 `bson:"bidding_price"`
	IsWinner     bool                 `bson:"is_winner"`
	CreatedAt    time.Time            `bson:"created_at"`
	UpdatedAt    time.Time            `bson:"updated_at"`
}

type feedbackDoc struct {
	ID        int64     `bson:"_id"`
	UserID    int64     `bson:"user_id"`
	TenderID  *int64    `bson:"tender_id"`
	Message   string    `bson:"message"`
	CreatedAt time.Time `bson:"created_at"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("convert price %s: %w", d.String(), err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) decimal.Decimal {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (d userTypeDoc) model() models.UserType {
	return models.UserType{ID: d.ID, Name: d.Name, Description: d.Description}
}

func (d userDoc) model() models.User {
	return models.User{
		ID:                  d.ID,
		Name:                d.Name,
		Address:             d.Address,
		UserType:            d.UserType,
		Email:               d.Email,
		PasswordHash:        d.PasswordHash,
		FailedLoginAttempts: d.FailedLoginAttempts,
		LockedUntil:         d.LockedUntil,
		Categories:          nonNil(d.Categories),
		Tenders:             []int64{},
		Bids:                []int64{},
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}

func (d categoryDoc) model() models.Category {
	return models.Category{ID: d.ID, Name: d.Name, Users: []int64{}, CreatedAt: d.CreatedAt}
}

func newTenderDoc(t *models.Tender) (tenderDoc, error) {
	price, err := toDecimal128(t.BiddingPrice)
	if err != nil {
		return tenderDoc{}, err
	}
	return tenderDoc{
		ID:               t.ID,
		Name:             t.Name,
		Description:      t.Description,
		CategoryID:       t.CategoryID,
		ConstructionFrom: t.ConstructionFrom,
		ConstructionTo:   t.ConstructionTo,
		NoticeDate:       t.NoticeDate,
		CloseDate:        t.CloseDate,
		WinnerDate:       t.WinnerDate,
		BiddingPrice:     price,
		Status:           string(t.Status),
		StaffID:          t.StaffID,
		WinnerID:         t.WinnerID,
		Version:          t.Version,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}, nil
}

func (d tenderDoc) model() models.Tender {
	return models.Tender{
		ID:               d.ID,
		Name:             d.Name,
		Description:      d.Description,
		CategoryID:       d.CategoryID,
		ConstructionFrom: d.ConstructionFrom,
		ConstructionTo:   d.ConstructionTo,
		NoticeDate:       d.NoticeDate,
		CloseDate:        d.CloseDate,
		WinnerDate:       d.WinnerDate,
		BiddingPrice:     fromDecimal128(d.BiddingPrice),
		Status:           models.TenderStatus(d.Status),
		StaffID:          d.StaffID,
		WinnerID:         d.WinnerID,
		Bids:             []int64{},
		Version:          d.Version,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

func newVersionDoc(t *models.Tender, now time.Time) (versionDoc, error) {
	v := t.Snapshot()
	price, err := toDecimal128(v.BiddingPrice)
	if err != nil {
		return versionDoc{}, err
	}
	return versionDoc{
		TenderID:         v.TenderID,
		Version:          v.Version,
		Name:             v.Name,
		Description:      v.Description,
		CategoryID:       v.CategoryID,
		ConstructionFrom: v.ConstructionFrom,
		ConstructionTo:   v.ConstructionTo,
		NoticeDate:       v.NoticeDate,
		CloseDate:        v.CloseDate,
		BiddingPrice:     price,
		Status:           string(v.Status),
		CreatedAt:        now,
	}, nil
}

func (d versionDoc) model() models.TenderVersion {
	return models.TenderVersion{
		TenderID:         d.TenderID,
		Version:          d.Version,
		Name:             d.Name,
		Description:      d.Description,
		CategoryID:       d.CategoryID,
		ConstructionFrom: d.ConstructionFrom,
		ConstructionTo:   d.ConstructionTo,
		NoticeDate:       d.NoticeDate,
		CloseDate:        d.CloseDate,
		BiddingPrice:     fromDecimal128(d.BiddingPrice),
		Status:           models.TenderStatus(d.Status),
		CreatedAt:        d.CreatedAt,
	}
}

func (d bidDoc) model() models.Bid {
	return models.Bid{
		ID:           d.ID,
		BidderID:     d.BidderID,
		TenderID:     d.TenderID,
		BiddingPrice: fromDecimal128(d.BiddingPrice),
		IsWinner:     d.IsWinner,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func (d feedbackDoc) model() models.Feedback {
	return models.Feedback{
		ID:        d.ID,
		UserID:    d.UserID,
		TenderID:  d.TenderID,
		Message:   d.Message,
		CreatedAt: d.CreatedAt,
	}
}
