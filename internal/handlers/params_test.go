package handlers

import (
	"net/http/httptest"
	"testing"

	"tendering/models"

	"github.com/stretchr/testify/require"
)

func TestParsePaginationParams(t *testing.T) {
	tests := []struct {
		query  string
		limit  int
		offset int
	}{
		{"", 5, 0},
		{"?limit=20&offset=40", 20, 40},
		{"?limit=51", 5, 0},
		{"?limit=0&offset=-1", 5, 0},
		{"?limit=abc&offset=3", 5, 3},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p := parsePaginationParams(httptest.NewRequest("GET", "/api/tenders"+tt.query, nil))
			require.Equal(t, tt.limit, p.Limit)
			require.Equal(t, tt.offset, p.Offset)
		})
	}
}

func TestParseTenderFilter(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/tenders?status=Open&category_id=1,2&category_id=7&staff_id=3", nil)
	f, err := parseTenderFilter(r)
	require.NoError(t, err)
	require.Equal(t, models.TenderOpen, f.Status)
	require.Equal(t, []int64{1, 2, 7}, f.CategoryIDs)
	require.Equal(t, int64(3), f.StaffID)

	for _, q := range []string{"?status=open", "?category_id=0", "?category_id=1,x", "?staff_id=-2"} {
		_, err := parseTenderFilter(httptest.NewRequest("GET", "/api/tenders"+q, nil))
		require.Error(t, err, q)
	}
}
