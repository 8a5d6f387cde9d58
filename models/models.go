package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Роли пользователей (значения user_type)
const (
	RoleCity    = "City"
	RoleCompany = "Company"
	RoleCitizen = "Citizen"
	RoleAdmin   = "Admin"
)

// Статусы тендера
type TenderStatus string

const (
	TenderOpen    TenderStatus = "Open"
	TenderPending TenderStatus = "Pending"
	TenderClosed  TenderStatus = "Closed"
	TenderAwarded TenderStatus = "Awarded"
)

// BuiltinUserType - роли, на которые опирается проверка доступа; их нельзя переименовать или удалить
func BuiltinUserType(name string) bool {
	switch name {
	case RoleCity, RoleCompany, RoleCitizen, RoleAdmin:
		return true
	default:
		return false
	}
}

func ValidTenderStatus(s TenderStatus) bool {
	switch s {
	case TenderOpen, TenderPending, TenderClosed, TenderAwarded:
		return true
	default:
		return false
	}
}

// Сущность Пользователя. Categories, Tenders и Bids вычисляются при чтении.
type User struct {
	ID                  int64      `db:"user_id" json:"user_id"`
	Name                string     `db:"name" json:"name"`
	Address             string     `db:"address" json:"address"`
	UserType            string     `db:"user_type" json:"user_type"`
	Email               string     `db:"email" json:"email"`
	PasswordHash        string     `db:"password_hash" json:"-"`
	FailedLoginAttempts int        `db:"failed_login_attempts" json:"failed_login_attempts"`
	LockedUntil         *time.Time `db:"locked_until" json:"locked_until,omitempty"`
	Categories          []int64    `db:"-" json:"categories"`
	Tenders             []int64    `db:"-" json:"tenders"`
	Bids                []int64    `db:"-" json:"bids"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// UserSummary - публичная часть пользователя для вложенных ответов
type UserSummary struct {
	ID       int64  `json:"user_id"`
	Name     string `json:"name"`
	UserType string `json:"user_type"`
	Email    string `json:"email"`
}

func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID, Name: u.Name, UserType: u.UserType, Email: u.Email}
}

// Сущность Типа пользователя
type UserType struct {
	ID          int64  `db:"type_id" json:"type_id"`
	Name        string `db:"type_name" json:"type_name"`
	Description string `db:"description" json:"description"`
}

// Сущность Категории
type Category struct {
	ID        int64     `db:"category_id" json:"category_id"`
	Name      string    `db:"category_name" json:"category_name"`
	Users     []int64   `db:"-" json:"users"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Сущность Тендера
type Tender struct {
	ID               int64           `db:"tender_id" json:"tender_id"`
	Name             string          `db:"tender_name" json:"tender_name"`
	Description      string          `db:"description" json:"description"`
	CategoryID       *int64          `db:"category_id" json:"category_id,omitempty"`
	ConstructionFrom time.Time       `db:"construction_from" json:"construction_from"`
	ConstructionTo   time.Time       `db:"construction_to" json:"construction_to"`
	NoticeDate       time.Time       `db:"notice_date" json:"notice_date"`
	CloseDate        time.Time       `db:"close_date" json:"close_date"`
	WinnerDate       *time.Time      `db:"winner_date" json:"winner_date,omitempty"`
	BiddingPrice     decimal.Decimal `db:"bidding_price" json:"bidding_price"`
	Status           TenderStatus    `db:"tender_status" json:"tender_status"`
	StaffID          int64           `db:"staff_id" json:"staff_id"`
	WinnerID         *int64          `db:"winner" json:"winner,omitempty"`
	Bids             []int64         `db:"-" json:"bids"`
	Version          int             `db:"version" json:"version"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// TenderVersion - снимок редактируемых полей тендера
type TenderVersion struct {
	TenderID         int64           `db:"tender_id" json:"tender_id"`
	Version          int             `db:"version" json:"version"`
	Name             string          `db:"tender_name" json:"tender_name"`
	Description      string          `db:"description" json:"description"`
	CategoryID       *int64          `db:"category_id" json:"category_id,omitempty"`
	ConstructionFrom time.Time       `db:"construction_from" json:"construction_from"`
	ConstructionTo   time.Time       `db:"construction_to" json:"construction_to"`
	NoticeDate       time.Time       `db:"notice_date" json:"notice_date"`
	CloseDate        time.Time       `db:"close_date" json:"close_date"`
	BiddingPrice     decimal.Decimal `db:"bidding_price" json:"bidding_price"`
	Status           TenderStatus    `db:"tender_status" json:"tender_status"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

// Snapshot возвращает версию с текущим содержимым тендера
func (t *Tender) Snapshot() TenderVersion {
	return TenderVersion{
		TenderID:         t.ID,
		Version:          t.Version,
		Name:             t.Name,
		Description:      t.Description,
		CategoryID:       t.CategoryID,
		ConstructionFrom: t.ConstructionFrom,
		ConstructionTo:   t.ConstructionTo,
		NoticeDate:       t.NoticeDate,
		CloseDate:        t.CloseDate,
		BiddingPrice:     t.BiddingPrice,
		Status:           t.Status,
	}
}

// Сущность Предложения
type Bid struct {
	ID           int64           `db:"bid_id" json:"bid_id"`
	BidderID     int64           `db:"bidder_id" json:"bidder_id"`
	TenderID     int64           `db:"tender_id" json:"tender_id"`
	BiddingPrice decimal.Decimal `db:"bidding_price" json:"bidding_price"`
	IsWinner     bool            `db:"is_winner" json:"is_winner"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// Сущность Отзыва
type Feedback struct {
	ID        int64     `db:"feedback_id" json:"feedback_id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	TenderID  *int64    `db:"tender_id" json:"tender_id,omitempty"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Заполненные (populated) представления для ответов API

type BidView struct {
	Bid
	Bidder     *UserSummary `json:"bidder,omitempty"`
	TenderName string       `json:"tender_name,omitempty"`
}

type TenderView struct {
	Tender
	Staff    *UserSummary `json:"staff,omitempty"`
	Category *Category    `json:"category,omitempty"`
	Winner   *UserSummary `json:"winner_user,omitempty"`
	BidList  []BidView    `json:"bid_list,omitempty"`
}

type UserWithCategories struct {
	User
	CategoryList []Category `json:"category_list"`
}

// Stats - сводка для администратора
type Stats struct {
	UsersByType     map[string]int `json:"users_by_type"`
	TendersByStatus map[string]int `json:"tenders_by_status"`
	BidCount        int            `json:"bid_count"`
	FeedbackCount   int            `json:"feedback_count"`
	CategoryCount   int            `json:"category_count"`
}

// Фильтры выборок

type TenderFilter struct {
	Status      TenderStatus
	CategoryIDs []int64
	StaffID     int64
	// ClosesAfter - только тендеры с close_date позже этого момента; нулевое значение не фильтрует
	ClosesAfter time.Time
}

type FeedbackFilter struct {
	TenderID int64
	UserID   int64
}
