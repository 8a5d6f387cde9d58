package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"tendering/db"
	"tendering/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeTenderStore struct {
	tenders   []models.Tender
	listErr   error
	failOn    int64
	staleOn   int64
	updated   []models.Tender
	listCalls int
}

func (f *fakeTenderStore) ListExpiredOpenTenders(ctx context.Context, now time.Time) ([]models.Tender, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.Tender, len(f.tenders))
	copy(out, f.tenders)
	return out, nil
}

func (f *fakeTenderStore) UpdateTender(ctx context.Context, t *models.Tender) error {
	if t.ID == f.failOn {
		return errors.New("write failed")
	}
	if t.ID == f.staleOn {
		return db.ErrConflict
	}
	t.Version++
	f.updated = append(f.updated, *t)
	return nil
}

func newTestCloser(store TenderStore, now time.Time) *TenderCloser {
	tc := NewTenderCloser(store, time.Hour, zerolog.Nop())
	tc.now = func() time.Time { return now }
	return tc
}

func TestCloseExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeTenderStore{tenders: []models.Tender{
		{ID: 1, Status: models.TenderOpen, CloseDate: now.Add(-time.Hour), Version: 1},
		{ID: 2, Status: models.TenderOpen, CloseDate: now, Version: 3},
		// ещё не истёк, хранилище могло вернуть его по ошибке
		{ID: 3, Status: models.TenderOpen, CloseDate: now.Add(time.Hour), Version: 1},
		{ID: 4, Status: models.TenderClosed, CloseDate: now.Add(-time.Hour), Version: 1},
	}}

	closed := newTestCloser(store, now).CloseExpired(context.Background())

	require.Equal(t, 2, closed)
	require.Len(t, store.updated, 2)
	require.Equal(t, int64(1), store.updated[0].ID)
	require.Equal(t, models.TenderPending, store.updated[0].Status)
	require.Equal(t, 2, store.updated[0].Version)
	require.Equal(t, int64(2), store.updated[1].ID)
	require.Equal(t, 4, store.updated[1].Version)
}

func TestCloseExpiredErrors(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	store := &fakeTenderStore{listErr: errors.New("db down")}
	require.Zero(t, newTestCloser(store, now).CloseExpired(context.Background()))

	store = &fakeTenderStore{
		failOn: 1,
		tenders: []models.Tender{
			{ID: 1, Status: models.TenderOpen, CloseDate: now.Add(-time.Minute)},
			{ID: 2, Status: models.TenderOpen, CloseDate: now.Add(-time.Minute)},
		},
	}
	require.Equal(t, 1, newTestCloser(store, now).CloseExpired(context.Background()))
	require.Equal(t, int64(2), store.updated[0].ID)
}

func TestStartStop(t *testing.T) {
	store := &fakeTenderStore{}
	tc := newTestCloser(store, time.Now())

	done := make(chan struct{})
	go func() {
		tc.Start(context.Background())
		close(done)
	}()
	tc.Stop()
	tc.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("closer did not stop")
	}
}

func TestStartContextCancel(t *testing.T) {
	tc := newTestCloser(&fakeTenderStore{}, time.Now())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		tc.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("closer ignored context cancel")
	}
}

func TestCloseExpiredSkipsConcurrentChange(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeTenderStore{
		staleOn: 1,
		tenders: []models.Tender{
			{ID: 1, Status: models.TenderOpen, CloseDate: now.Add(-time.Minute), Version: 2},
			{ID: 2, Status: models.TenderOpen, CloseDate: now.Add(-time.Minute), Version: 1},
		},
	}

	require.Equal(t, 1, newTestCloser(store, now).CloseExpired(context.Background()))
	require.Len(t, store.updated, 1)
	require.Equal(t, int64(2), store.updated[0].ID)
}
