package procurement_test

import (
	"testing"
	"time"

	"tendering/internal/procurement"
	"tendering/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func tender(status models.TenderStatus, closeIn time.Duration) *models.Tender {
	return &models.Tender{
		ID:               1,
		Status:           status,
		NoticeDate:       now.Add(-24 * time.Hour),
		CloseDate:        now.Add(closeIn),
		ConstructionFrom: now.Add(48 * time.Hour),
		ConstructionTo:   now.Add(96 * time.Hour),
		BiddingPrice:     decimal.NewFromInt(1000),
	}
}

func bid(id int64, price string, created time.Time) models.Bid {
	return models.Bid{
		ID:           id,
		BidderID:     100 + id,
		TenderID:     1,
		BiddingPrice: decimal.RequireFromString(price),
		CreatedAt:    created,
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name    string
		from    models.TenderStatus
		closeIn time.Duration
		to      models.TenderStatus
		ok      bool
	}{
		{"open to pending", models.TenderOpen, time.Hour, models.TenderPending, true},
		{"open to closed", models.TenderOpen, time.Hour, models.TenderClosed, true},
		{"open to awarded", models.TenderOpen, time.Hour, models.TenderAwarded, false},
		{"pending to closed", models.TenderPending, -time.Hour, models.TenderClosed, true},
		{"pending reopen before close date", models.TenderPending, time.Hour, models.TenderOpen, true},
		{"pending reopen after close date", models.TenderPending, -time.Hour, models.TenderOpen, false},
		{"pending to awarded", models.TenderPending, -time.Hour, models.TenderAwarded, false},
		{"closed is terminal", models.TenderClosed, time.Hour, models.TenderOpen, false},
		{"awarded is terminal", models.TenderAwarded, time.Hour, models.TenderClosed, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := procurement.CanTransition(tender(tc.from, tc.closeIn), tc.to, now)
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, procurement.ErrInvalidTransition)
			}
		})
	}
}

func TestAcceptsBids(t *testing.T) {
	require.NoError(t, procurement.AcceptsBids(tender(models.TenderOpen, time.Hour), now))
	require.ErrorIs(t, procurement.AcceptsBids(tender(models.TenderOpen, 0), now), procurement.ErrTenderNotOpen)
	require.ErrorIs(t, procurement.AcceptsBids(tender(models.TenderPending, time.Hour), now), procurement.ErrTenderNotOpen)
}

func TestValidateSchedule(t *testing.T) {
	tr := tender(models.TenderOpen, time.Hour)
	require.NoError(t, procurement.ValidateSchedule(tr, now, true))

	past := tender(models.TenderOpen, -time.Minute)
	require.ErrorIs(t, procurement.ValidateSchedule(past, now, true), procurement.ErrInvalidDates)
	require.NoError(t, procurement.ValidateSchedule(past, now, false))

	inverted := tender(models.TenderOpen, time.Hour)
	inverted.ConstructionTo = inverted.ConstructionFrom.Add(-time.Hour)
	require.ErrorIs(t, procurement.ValidateSchedule(inverted, now, true), procurement.ErrInvalidDates)

	free := tender(models.TenderOpen, time.Hour)
	free.BiddingPrice = decimal.Zero
	require.ErrorIs(t, procurement.ValidateSchedule(free, now, true), procurement.ErrInvalidPrice)
}

func TestValidatePrice(t *testing.T) {
	tests := []struct {
		price string
		ok    bool
	}{
		{"0.01", true},
		{"99.99", true},
		{"100.000", true},
		{"999999999999.99", true},
		{"0", false},
		{"-5", false},
		{"0.001", false},
		{"99.999", false},
		{"1000000000000", false},
	}
	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			err := procurement.ValidatePrice(decimal.RequireFromString(tt.price))
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, procurement.ErrInvalidPrice)
			}
		})
	}
}

func TestCanFinalize(t *testing.T) {
	require.NoError(t, procurement.CanFinalize(tender(models.TenderPending, time.Hour), now))
	require.NoError(t, procurement.CanFinalize(tender(models.TenderOpen, -time.Hour), now))
	require.ErrorIs(t, procurement.CanFinalize(tender(models.TenderOpen, time.Hour), now), procurement.ErrNotFinalizable)
	require.ErrorIs(t, procurement.CanFinalize(tender(models.TenderClosed, -time.Hour), now), procurement.ErrNotFinalizable)
	require.ErrorIs(t, procurement.CanFinalize(tender(models.TenderAwarded, -time.Hour), now), procurement.ErrNotFinalizable)
}

func TestSelectWinnerLowestPrice(t *testing.T) {
	bids := []models.Bid{
		bid(1, "900.00", now.Add(-3*time.Hour)),
		bid(2, "750.50", now.Add(-2*time.Hour)),
		bid(3, "820", now.Add(-time.Hour)),
	}
	w, err := procurement.SelectWinner(bids, nil)
	require.NoError(t, err)
	require.Equal(t, int64(2), w.ID)
}

func TestSelectWinnerTieBreaks(t *testing.T) {
	early := now.Add(-2 * time.Hour)
	bids := []models.Bid{
		bid(5, "500", now.Add(-time.Hour)),
		bid(4, "500", early),
		bid(3, "500", early),
	}
	w, err := procurement.SelectWinner(bids, nil)
	require.NoError(t, err)
	require.Equal(t, int64(3), w.ID)
	// исходный порядок не меняется
	require.Equal(t, int64(5), bids[0].ID)
}

func TestSelectWinnerChosen(t *testing.T) {
	bids := []models.Bid{bid(1, "100", now), bid(2, "200", now)}

	chosen := int64(2)
	w, err := procurement.SelectWinner(bids, &chosen)
	require.NoError(t, err)
	require.Equal(t, int64(2), w.ID)

	missing := int64(9)
	_, err = procurement.SelectWinner(bids, &missing)
	require.ErrorIs(t, err, procurement.ErrBidNotInTender)

	_, err = procurement.SelectWinner(nil, nil)
	require.ErrorIs(t, err, procurement.ErrNoBids)
}

func TestFinalizeWinner(t *testing.T) {
	tr := tender(models.TenderPending, -time.Hour)
	bids := []models.Bid{bid(1, "100", now), bid(2, "200", now)}
	bids[1].IsWinner = true

	updated := procurement.FinalizeWinner(tr, bids, &bids[0], now)

	require.Equal(t, models.TenderAwarded, tr.Status)
	require.NotNil(t, tr.WinnerID)
	require.Equal(t, int64(101), *tr.WinnerID)
	require.NotNil(t, tr.WinnerDate)
	require.True(t, tr.WinnerDate.Equal(now))
	require.True(t, updated[0].IsWinner)
	require.False(t, updated[1].IsWinner)
}
