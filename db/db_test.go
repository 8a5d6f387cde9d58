package db

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"tendering/models"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestBuildTenderFilter(t *testing.T) {
	where, args := buildTenderFilter(models.TenderFilter{})
	require.Empty(t, where)
	require.Empty(t, args)

	where, args = buildTenderFilter(models.TenderFilter{
		Status:      models.TenderOpen,
		CategoryIDs: []int64{3, 4},
		StaffID:     9,
	})
	require.Equal(t, " WHERE tender_status = $1 AND category_id = ANY($2) AND staff_id = $3", where)
	require.Len(t, args, 3)
	require.Equal(t, "Open", args[0])
	require.Equal(t, int64(9), args[2])

	where, args = buildTenderFilter(models.TenderFilter{StaffID: 2})
	require.Equal(t, " WHERE staff_id = $1", where)
	require.Equal(t, []interface{}{int64(2)}, args)

	ts := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	where, args = buildTenderFilter(models.TenderFilter{Status: models.TenderOpen, ClosesAfter: ts})
	require.Equal(t, " WHERE tender_status = $1 AND close_date > $2", where)
	require.Equal(t, []interface{}{"Open", ts}, args)
}

func TestMapError(t *testing.T) {
	require.NoError(t, mapError(nil))
	require.ErrorIs(t, mapError(sql.ErrNoRows), ErrNotFound)
	require.ErrorIs(t, mapError(fmt.Errorf("wrapped: %w", sql.ErrNoRows)), ErrNotFound)
	require.ErrorIs(t, mapError(&pq.Error{Code: pqUniqueViolation, Message: "dup"}), ErrConflict)
	require.ErrorIs(t, mapError(&pq.Error{Code: pqForeignKeyViolation, Message: "fk"}), ErrConflict)
	require.ErrorIs(t, mapError(&pq.Error{Code: pqCheckViolation, Message: "bids_bidding_price_check"}), ErrInvalid)
	require.ErrorIs(t, mapError(&pq.Error{Code: pqNumericOutOfRange, Message: "numeric field overflow"}), ErrInvalid)

	other := errors.New("boom")
	require.Equal(t, other, mapError(other))
	require.NotErrorIs(t, mapError(&pq.Error{Code: "42P01"}), ErrConflict)
}
