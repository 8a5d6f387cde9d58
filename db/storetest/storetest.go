// Package storetest - общие сценарии для реализаций хранилища.
// Каждая реализация запускает их в своих интеграционных тестах.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"tendering/db"
	"tendering/internal/jobs"
	"tendering/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// Store - методы, которые проверяют сценарии
type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	SetUserCategories(ctx context.Context, userID int64, categoryIDs []int64) error
	ListUsersWithCategories(ctx context.Context) ([]models.UserWithCategories, error)

	CreateCategory(ctx context.Context, c *models.Category) error
	DeleteCategory(ctx context.Context, id int64) error

	CreateTender(ctx context.Context, t *models.Tender) error
	GetTender(ctx context.Context, id int64) (*models.Tender, error)
	ListTenders(ctx context.Context, f models.TenderFilter, limit, offset int) ([]models.Tender, error)
	ListExpiredOpenTenders(ctx context.Context, now time.Time) ([]models.Tender, error)
	UpdateTender(ctx context.Context, t *models.Tender) error
	AwardTender(ctx context.Context, t *models.Tender, winningBidID int64) error
	DeleteTender(ctx context.Context, id int64) error
	GetTenderVersion(ctx context.Context, tenderID int64, version int) (*models.TenderVersion, error)
	ListTenderVersions(ctx context.Context, tenderID int64) ([]models.TenderVersion, error)

	CreateBid(ctx context.Context, b *models.Bid) error
	GetBid(ctx context.Context, id int64) (*models.Bid, error)
	ListTenderBids(ctx context.Context, tenderID int64) ([]models.Bid, error)

	CreateFeedback(ctx context.Context, f *models.Feedback) error
	GetFeedback(ctx context.Context, id int64) (*models.Feedback, error)
}

// Run прогоняет все сценарии; newStore должен возвращать пустое хранилище
func Run(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("TenderVersions", func(t *testing.T) { testTenderVersions(t, newStore(t)) })
	t.Run("StaleUpdate", func(t *testing.T) { testStaleUpdate(t, newStore(t)) })
	t.Run("AwardTender", func(t *testing.T) { testAwardTender(t, newStore(t)) })
	t.Run("CloserAfterAward", func(t *testing.T) { testCloserAfterAward(t, newStore(t)) })
	t.Run("DeleteTender", func(t *testing.T) { testDeleteTender(t, newStore(t)) })
	t.Run("DeleteCategory", func(t *testing.T) { testDeleteCategory(t, newStore(t)) })
	t.Run("ListOpenTenders", func(t *testing.T) { testListOpenTenders(t, newStore(t)) })
}

type fixture struct {
	s     Store
	now   time.Time
	staff *models.User
	seq   int
}

func newFixture(t *testing.T, s Store) *fixture {
	f := &fixture{s: s, now: time.Now().UTC().Truncate(time.Second)}
	f.staff = f.user(t, models.RoleCity)
	return f
}

func (f *fixture) user(t *testing.T, userType string) *models.User {
	t.Helper()
	f.seq++
	u := &models.User{
		Name:         fmt.Sprintf("user %d", f.seq),
		UserType:     userType,
		Email:        fmt.Sprintf("user%d@example.com", f.seq),
		PasswordHash: "x",
	}
	require.NoError(t, f.s.CreateUser(t.Context(), u))
	return u
}

func (f *fixture) tender(t *testing.T, closeDate time.Time) *models.Tender {
	t.Helper()
	tr := &models.Tender{
		Name:             "Bridge repair",
		Description:      "North bank",
		ConstructionFrom: f.now.AddDate(0, 1, 0),
		ConstructionTo:   f.now.AddDate(0, 4, 0),
		NoticeDate:       f.now.Add(-time.Hour),
		CloseDate:        closeDate,
		BiddingPrice:     decimal.RequireFromString("250000.50"),
		Status:           models.TenderOpen,
		StaffID:          f.staff.ID,
	}
	require.NoError(t, f.s.CreateTender(t.Context(), tr))
	return tr
}

func (f *fixture) bid(t *testing.T, tr *models.Tender, price string) *models.Bid {
	t.Helper()
	b := &models.Bid{
		BidderID:     f.user(t, models.RoleCompany).ID,
		TenderID:     tr.ID,
		BiddingPrice: decimal.RequireFromString(price),
	}
	require.NoError(t, f.s.CreateBid(t.Context(), b))
	return b
}

func award(tr *models.Tender, b *models.Bid, now time.Time) {
	tr.Status = models.TenderAwarded
	tr.WinnerID = &b.BidderID
	tr.WinnerDate = &now
}

func testTenderVersions(t *testing.T, s Store) {
	f := newFixture(t, s)
	ctx := t.Context()
	tr := f.tender(t, f.now.AddDate(0, 0, 7))
	require.Equal(t, 1, tr.Version)

	tr.Name = "Bridge repair, stage 2"
	tr.BiddingPrice = decimal.RequireFromString("300000")
	require.NoError(t, s.UpdateTender(ctx, tr))
	require.Equal(t, 2, tr.Version)

	got, err := s.GetTender(ctx, tr.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.Version)
	require.Equal(t, "Bridge repair, stage 2", got.Name)

	v1, err := s.GetTenderVersion(ctx, tr.ID, 1)
	require.NoError(t, err)
	require.Equal(t, "Bridge repair", v1.Name)
	require.True(t, decimal.RequireFromString("250000.50").Equal(v1.BiddingPrice))
	require.True(t, f.now.AddDate(0, 0, 7).Equal(v1.CloseDate))

	versions, err := s.ListTenderVersions(ctx, tr.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	require.Equal(t, 2, versions[1].Version)
	require.True(t, decimal.RequireFromString("300000").Equal(versions[1].BiddingPrice))

	_, err = s.GetTenderVersion(ctx, tr.ID, 3)
	require.ErrorIs(t, err, db.ErrNotFound)
}

func testStaleUpdate(t *testing.T, s Store) {
	f := newFixture(t, s)
	ctx := t.Context()
	tr := f.tender(t, f.now.AddDate(0, 0, 7))

	first, err := s.GetTender(ctx, tr.ID)
	require.NoError(t, err)
	second, err := s.GetTender(ctx, tr.ID)
	require.NoError(t, err)

	first.Name = "first writer"
	require.NoError(t, s.UpdateTender(ctx, first))

	second.Name = "second writer"
	require.ErrorIs(t, s.UpdateTender(ctx, second), db.ErrConflict)
	require.Equal(t, 1, second.Version)

	got, err := s.GetTender(ctx, tr.ID)
	require.NoError(t, err)
	require.Equal(t, "first writer", got.Name)
	require.Equal(t, 2, got.Version)

	versions, err := s.ListTenderVersions(ctx, tr.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)

	require.NoError(t, s.DeleteTender(ctx, tr.ID))
	require.ErrorIs(t, s.UpdateTender(ctx, got), db.ErrNotFound)
}

func testAwardTender(t *testing.T, s Store) {
	f := newFixture(t, s)
	ctx := t.Context()
	tr := f.tender(t, f.now.AddDate(0, 0, 7))
	loser := f.bid(t, tr, "240000")
	winner := f.bid(t, tr, "230000.99")

	other := f.tender(t, f.now.AddDate(0, 0, 7))
	foreign := f.bid(t, other, "1000")

	// предложение другого тендера не может победить
	award(tr, foreign, f.now)
	require.ErrorIs(t, s.AwardTender(ctx, tr, foreign.ID), db.ErrNotFound)
	require.ErrorIs(t, s.AwardTender(ctx, tr, 987654), db.ErrNotFound)
	got, err := s.GetTender(ctx, tr.ID)
	require.NoError(t, err)
	require.Equal(t, models.TenderOpen, got.Status)
	require.Equal(t, 1, got.Version)

	tr, err = s.GetTender(ctx, tr.ID)
	require.NoError(t, err)
	award(tr, winner, f.now)
	require.NoError(t, s.AwardTender(ctx, tr, winner.ID))
	require.Equal(t, 2, tr.Version)

	got, err = s.GetTender(ctx, tr.ID)
	require.NoError(t, err)
	require.Equal(t, models.TenderAwarded, got.Status)
	require.NotNil(t, got.WinnerID)
	require.Equal(t, winner.BidderID, *got.WinnerID)
	require.NotNil(t, got.WinnerDate)
	require.True(t, f.now.Equal(*got.WinnerDate))

	bids, err := s.ListTenderBids(ctx, tr.ID)
	require.NoError(t, err)
	require.Len(t, bids, 2)
	for _, b := range bids {
		require.Equal(t, b.ID == winner.ID, b.IsWinner, "bid %d", b.ID)
	}
	b, err := s.GetBid(ctx, loser.ID)
	require.NoError(t, err)
	require.False(t, b.IsWinner)

	// повторное награждение
	award(got, loser, f.now)
	require.ErrorIs(t, s.AwardTender(ctx, got, loser.ID), db.ErrConflict)
	b, err = s.GetBid(ctx, winner.ID)
	require.NoError(t, err)
	require.True(t, b.IsWinner)

	v, err := s.GetTenderVersion(ctx, tr.ID, 2)
	require.NoError(t, err)
	require.Equal(t, models.TenderAwarded, v.Status)
}

// testCloserAfterAward: задача закрытия прочитала тендер до награждения и пишет после
func testCloserAfterAward(t *testing.T, s Store) {
	f := newFixture(t, s)
	ctx := t.Context()
	tr := f.tender(t, f.now.Add(-time.Minute))
	winner := f.bid(t, tr, "100000")

	stale, err := s.ListExpiredOpenTenders(ctx, f.now)
	require.NoError(t, err)
	require.Len(t, stale, 1)

	award(tr, winner, f.now)
	require.NoError(t, s.AwardTender(ctx, tr, winner.ID))

	closer := jobs.NewTenderCloser(staleList{Store: s, tenders: stale}, time.Hour, zerolog.Nop())
	require.Zero(t, closer.CloseExpired(ctx))

	got, err := s.GetTender(ctx, tr.ID)
	require.NoError(t, err)
	require.Equal(t, models.TenderAwarded, got.Status)
	require.NotNil(t, got.WinnerID)
	require.Equal(t, winner.BidderID, *got.WinnerID)
	require.Equal(t, 2, got.Version)

	// без гонки задача переводит тендер в Pending
	expired := f.tender(t, f.now.Add(-time.Minute))
	closer = jobs.NewTenderCloser(s, time.Hour, zerolog.Nop())
	require.Equal(t, 1, closer.CloseExpired(ctx))
	got, err = s.GetTender(ctx, expired.ID)
	require.NoError(t, err)
	require.Equal(t, models.TenderPending, got.Status)
}

// staleList отдаёт заранее прочитанные тендеры вместо свежей выборки
type staleList struct {
	Store
	tenders []models.Tender
}

func (s staleList) ListExpiredOpenTenders(ctx context.Context, now time.Time) ([]models.Tender, error) {
	out := make([]models.Tender, len(s.tenders))
	copy(out, s.tenders)
	return out, nil
}

func testDeleteTender(t *testing.T, s Store) {
	f := newFixture(t, s)
	ctx := t.Context()
	tr := f.tender(t, f.now.AddDate(0, 0, 7))
	b := f.bid(t, tr, "5000")
	fb := &models.Feedback{UserID: f.user(t, models.RoleCitizen).ID, TenderID: &tr.ID, Message: "Too expensive"}
	require.NoError(t, s.CreateFeedback(ctx, fb))
	tr.Description = "South bank"
	require.NoError(t, s.UpdateTender(ctx, tr))

	require.NoError(t, s.DeleteTender(ctx, tr.ID))
	require.ErrorIs(t, s.DeleteTender(ctx, tr.ID), db.ErrNotFound)

	_, err := s.GetTender(ctx, tr.ID)
	require.ErrorIs(t, err, db.ErrNotFound)
	_, err = s.GetBid(ctx, b.ID)
	require.ErrorIs(t, err, db.ErrNotFound)
	_, err = s.GetFeedback(ctx, fb.ID)
	require.ErrorIs(t, err, db.ErrNotFound)
	versions, err := s.ListTenderVersions(ctx, tr.ID)
	require.NoError(t, err)
	require.Empty(t, versions)
}

func testDeleteCategory(t *testing.T, s Store) {
	f := newFixture(t, s)
	ctx := t.Context()
	roads := &models.Category{Name: "Roads"}
	parks := &models.Category{Name: "Parks"}
	require.NoError(t, s.CreateCategory(ctx, roads))
	require.NoError(t, s.CreateCategory(ctx, parks))
	require.ErrorIs(t, s.CreateCategory(ctx, &models.Category{Name: "Roads"}), db.ErrConflict)

	co := f.user(t, models.RoleCompany)
	require.NoError(t, s.SetUserCategories(ctx, co.ID, []int64{roads.ID, parks.ID}))
	tr := f.tender(t, f.now.AddDate(0, 0, 7))
	tr.CategoryID = &roads.ID
	require.NoError(t, s.UpdateTender(ctx, tr))

	joined, err := s.ListUsersWithCategories(ctx)
	require.NoError(t, err)
	require.Len(t, joined, 2)
	require.Empty(t, joined[0].CategoryList)
	require.Len(t, joined[1].CategoryList, 2)

	require.NoError(t, s.DeleteCategory(ctx, roads.ID))
	require.ErrorIs(t, s.DeleteCategory(ctx, roads.ID), db.ErrNotFound)

	u, err := s.GetUser(ctx, co.ID)
	require.NoError(t, err)
	require.Equal(t, []int64{parks.ID}, u.Categories)

	got, err := s.GetTender(ctx, tr.ID)
	require.NoError(t, err)
	require.Nil(t, got.CategoryID)

	joined, err = s.ListUsersWithCategories(ctx)
	require.NoError(t, err)
	require.Len(t, joined[1].CategoryList, 1)
	require.Equal(t, "Parks", joined[1].CategoryList[0].Name)
}

func testListOpenTenders(t *testing.T, s Store) {
	f := newFixture(t, s)
	ctx := t.Context()
	roads := &models.Category{Name: "Roads"}
	require.NoError(t, s.CreateCategory(ctx, roads))

	// истёкший тендер закрывается раньше и при сортировке по сроку идёт первым
	expired := f.tender(t, f.now.Add(-time.Hour))
	expired.CategoryID = &roads.ID
	require.NoError(t, s.UpdateTender(ctx, expired))
	live := f.tender(t, f.now.AddDate(0, 0, 3))
	live.CategoryID = &roads.ID
	require.NoError(t, s.UpdateTender(ctx, live))

	filter := models.TenderFilter{Status: models.TenderOpen, CategoryIDs: []int64{roads.ID}, ClosesAfter: f.now}
	page, err := s.ListTenders(ctx, filter, 1, 0)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, live.ID, page[0].ID)

	all, err := s.ListTenders(ctx, models.TenderFilter{CategoryIDs: []int64{roads.ID}}, 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, expired.ID, all[0].ID)

	due, err := s.ListExpiredOpenTenders(ctx, f.now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, expired.ID, due[0].ID)
}
