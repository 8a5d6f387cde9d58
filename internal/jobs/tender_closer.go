package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"tendering/db"
	"tendering/internal/procurement"
	"tendering/models"

	"github.com/rs/zerolog"
)

// TenderStore - часть хранилища, нужная задаче закрытия
type TenderStore interface {
	ListExpiredOpenTenders(ctx context.Context, now time.Time) ([]models.Tender, error)
	UpdateTender(ctx context.Context, t *models.Tender) error
}

// TenderCloser переводит открытые тендеры с истёкшим сроком подачи в Pending
type TenderCloser struct {
	store    TenderStore
	interval time.Duration
	log      zerolog.Logger
	now      func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewTenderCloser creates a new tender closing job
func NewTenderCloser(store TenderStore, interval time.Duration, log zerolog.Logger) *TenderCloser {
	return &TenderCloser{
		store:    store,
		interval: interval,
		log:      log.With().Str("job", "tender_closer").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
		stopChan: make(chan struct{}),
	}
}

// Start запускает цикл; возвращается после Stop или отмены ctx
func (tc *TenderCloser) Start(ctx context.Context) {
	tc.log.Info().Dur("interval", tc.interval).Msg("starting tender closer")

	ticker := time.NewTicker(tc.interval)
	defer ticker.Stop()

	tc.CloseExpired(ctx)
	for {
		select {
		case <-ticker.C:
			tc.CloseExpired(ctx)
		case <-ctx.Done():
			tc.log.Info().Msg("stopping tender closer")
			return
		case <-tc.stopChan:
			tc.log.Info().Msg("stopping tender closer")
			return
		}
	}
}

// Stop останавливает цикл, повторный вызов безопасен
func (tc *TenderCloser) Stop() {
	tc.stopOnce.Do(func() { close(tc.stopChan) })
}

// CloseExpired выполняет один проход и возвращает число переведённых тендеров
func (tc *TenderCloser) CloseExpired(ctx context.Context) int {
	now := tc.now()
	tenders, err := tc.store.ListExpiredOpenTenders(ctx, now)
	if err != nil {
		tc.log.Error().Err(err).Msg("fetch expired tenders")
		return 0
	}

	closed := 0
	for i := range tenders {
		t := &tenders[i]
		if !procurement.Expired(t, now) {
			continue
		}
		if err := procurement.CanTransition(t, models.TenderPending, now); err != nil {
			continue
		}
		t.Status = models.TenderPending
		if err := tc.store.UpdateTender(ctx, t); err != nil {
			// тендер успели изменить или наградить после выборки
			if errors.Is(err, db.ErrConflict) {
				tc.log.Debug().Int64("tender_id", t.ID).Msg("tender changed concurrently, skipped")
				continue
			}
			tc.log.Error().Err(err).Int64("tender_id", t.ID).Msg("move tender to pending")
			continue
		}
		closed++
	}
	if closed > 0 {
		tc.log.Info().Int("count", closed).Msg("tenders moved to pending")
	}
	return closed
}
