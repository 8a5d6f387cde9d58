package mongostore

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"tendering/db"
	"tendering/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestBuildTenderFilter(t *testing.T) {
	require.Empty(t, buildTenderFilter(models.TenderFilter{}))

	filter := buildTenderFilter(models.TenderFilter{
		Status:      models.TenderPending,
		CategoryIDs: []int64{1, 2},
		StaffID:     7,
	})
	require.Equal(t, bson.M{
		"tender_status": "Pending",
		"category_id":   bson.M{"$in": []int64{1, 2}},
		"staff_id":      int64(7),
	}, filter)

	ts := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	filter = buildTenderFilter(models.TenderFilter{Status: models.TenderOpen, ClosesAfter: ts})
	require.Equal(t, bson.M{
		"tender_status": "Open",
		"close_date":    bson.M{"$gt": ts},
	}, filter)
}

func TestMapError(t *testing.T) {
	require.NoError(t, mapError(nil))
	require.ErrorIs(t, mapError(mongo.ErrNoDocuments), db.ErrNotFound)
	require.ErrorIs(t, mapError(fmt.Errorf("find: %w", mongo.ErrNoDocuments)), db.ErrNotFound)

	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	require.ErrorIs(t, mapError(dup), db.ErrConflict)

	other := errors.New("boom")
	require.Equal(t, other, mapError(other))
}

func TestDecimalConversion(t *testing.T) {
	for _, v := range []string{"0", "1500000.50", "0.01", "99999999999.99"} {
		d := decimal.RequireFromString(v)
		dec, err := toDecimal128(d)
		require.NoError(t, err)
		require.True(t, d.Equal(fromDecimal128(dec)), v)
	}
}

func TestDedupe(t *testing.T) {
	require.Equal(t, []int64{3, 1, 2}, dedupe([]int64{3, 1, 3, 2, 1}))
	require.Equal(t, []int64{}, dedupe(nil))
}
