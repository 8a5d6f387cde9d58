package main

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"tendering/internal/jobs"
	"tendering/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// slowStore держит проход задачи закрытия, пока тест не отпустит его
type slowStore struct {
	started  chan struct{}
	release  chan struct{}
	finished atomic.Bool
}

func newSlowStore() *slowStore {
	return &slowStore{started: make(chan struct{}), release: make(chan struct{})}
}

func (s *slowStore) ListExpiredOpenTenders(ctx context.Context, now time.Time) ([]models.Tender, error) {
	close(s.started)
	<-s.release
	s.finished.Store(true)
	return nil, nil
}

func (s *slowStore) UpdateTender(ctx context.Context, t *models.Tender) error { return nil }

func TestServeWaitsForCloser(t *testing.T) {
	store := newSlowStore()
	closer := jobs.NewTenderCloser(store, time.Hour, zerolog.Nop())
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, srv, closer, zerolog.Nop()) }()

	<-store.started
	cancel()
	select {
	case <-done:
		t.Fatal("serve returned while the closer pass was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(store.release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after shutdown")
	}
	require.True(t, store.finished.Load())
}

func TestServeReturnsListenError(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	store := newSlowStore()
	close(store.release)
	closer := jobs.NewTenderCloser(store, time.Hour, zerolog.Nop())
	srv := &http.Server{Addr: busy.Addr().String(), Handler: http.NotFoundHandler()}

	done := make(chan error, 1)
	go func() { done <- serve(t.Context(), srv, closer, zerolog.Nop()) }()

	select {
	case err := <-done:
		require.ErrorContains(t, err, "server failed")
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not report the listen error")
	}
	// задача закрытия остановлена до возврата
	require.True(t, store.finished.Load())
}
