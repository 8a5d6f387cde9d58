package db_test

import (
	"os"
	"testing"
	"time"

	"tendering/db"
	"tendering/db/migrations"
	"tendering/db/storetest"
	"tendering/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// newTestStorage подключается к базе из POSTGRES_CONN и очищает таблицы.
// Типы пользователей из миграции остаются.
func newTestStorage(t *testing.T) *db.Storage {
	t.Helper()
	conn := os.Getenv("POSTGRES_CONN")
	if conn == "" {
		t.Skip("POSTGRES_CONN is not set")
	}
	ctx := t.Context()
	sqlDB, err := db.Connect(ctx, conn)
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, migrations.Run(ctx, sqlDB.DB))
	_, err = sqlDB.ExecContext(ctx,
		`TRUNCATE feedback, bids, tender_versions, tenders, user_categories, categories, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return db.NewStorage(sqlDB)
}

func TestStorageIntegration(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Store { return newTestStorage(t) })
}

func TestStorageRejectsInvalidPrice(t *testing.T) {
	s := newTestStorage(t)
	ctx := t.Context()
	now := time.Now().UTC()

	staff := &models.User{Name: "Clerk", UserType: models.RoleCity, Email: "clerk@example.com", PasswordHash: "x"}
	require.NoError(t, s.CreateUser(ctx, staff))
	tender := &models.Tender{
		Name:             "Lighting",
		ConstructionFrom: now.AddDate(0, 1, 0),
		ConstructionTo:   now.AddDate(0, 2, 0),
		NoticeDate:       now,
		CloseDate:        now.AddDate(0, 0, 7),
		BiddingPrice:     decimal.RequireFromString("1000"),
		Status:           models.TenderOpen,
		StaffID:          staff.ID,
	}
	require.NoError(t, s.CreateTender(ctx, tender))
	co := &models.User{Name: "Co", UserType: models.RoleCompany, Email: "co@example.com", PasswordHash: "x"}
	require.NoError(t, s.CreateUser(ctx, co))

	tests := []struct {
		name  string
		price string
	}{
		// NUMERIC(14,2) округляет до нуля, срабатывает CHECK
		{"rounds to zero", "0.001"},
		{"overflow", "1000000000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &models.Bid{BidderID: co.ID, TenderID: tender.ID, BiddingPrice: decimal.RequireFromString(tt.price)}
			require.ErrorIs(t, s.CreateBid(ctx, b), db.ErrInvalid)
		})
	}

	tender.BiddingPrice = decimal.RequireFromString("1000000000000")
	require.ErrorIs(t, s.UpdateTender(ctx, tender), db.ErrInvalid)
	got, err := s.GetTender(ctx, tender.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.Version)
	require.True(t, decimal.RequireFromString("1000").Equal(got.BiddingPrice))
}
