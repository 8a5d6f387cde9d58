// Package procurement содержит правила жизненного цикла тендера:
// допустимые переходы статусов, приём предложений и выбор победителя.
package procurement

import (
	"errors"
	"sort"
	"time"

	"tendering/models"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrTenderNotOpen     = errors.New("tender is not accepting bids")
	ErrTenderNotEditable = errors.New("tender can only be edited while open")
	ErrNotFinalizable    = errors.New("tender cannot be finalized in its current state")
	ErrNoBids            = errors.New("tender has no bids")
	ErrBidNotInTender    = errors.New("bid does not belong to tender")
	ErrInvalidDates      = errors.New("invalid tender dates")
	ErrInvalidPrice      = errors.New("bidding price must be positive, below 1e12, with at most 2 decimal places")
)

// maxPrice - верхняя граница NUMERIC(14,2)
var maxPrice = decimal.New(1, 12)

// CanTransition проверяет ручную смену статуса тендера.
// Awarded достигается только через FinalizeWinner.
func CanTransition(t *models.Tender, to models.TenderStatus, now time.Time) error {
	switch t.Status {
	case models.TenderOpen:
		if to == models.TenderPending || to == models.TenderClosed {
			return nil
		}
	case models.TenderPending:
		if to == models.TenderClosed {
			return nil
		}
		if to == models.TenderOpen && now.Before(t.CloseDate) {
			return nil
		}
	}
	return ErrInvalidTransition
}

// AcceptsBids - тендер открыт и срок подачи не истёк
func AcceptsBids(t *models.Tender, now time.Time) error {
	if t.Status != models.TenderOpen || !now.Before(t.CloseDate) {
		return ErrTenderNotOpen
	}
	return nil
}

// Editable - содержимое тендера можно менять только пока он открыт
func Editable(t *models.Tender) error {
	if t.Status != models.TenderOpen {
		return ErrTenderNotEditable
	}
	return nil
}

// Expired - открытый тендер с прошедшей датой закрытия
func Expired(t *models.Tender, now time.Time) bool {
	return t.Status == models.TenderOpen && !now.Before(t.CloseDate)
}

// ValidateSchedule проверяет даты и бюджет тендера.
// requireFutureClose включается при создании.
func ValidateSchedule(t *models.Tender, now time.Time, requireFutureClose bool) error {
	if t.ConstructionTo.Before(t.ConstructionFrom) {
		return ErrInvalidDates
	}
	if !t.CloseDate.After(t.NoticeDate) {
		return ErrInvalidDates
	}
	if requireFutureClose && !t.CloseDate.After(now) {
		return ErrInvalidDates
	}
	return ValidatePrice(t.BiddingPrice)
}

// ValidatePrice - цена хранится с точностью до копейки в обоих хранилищах,
// поэтому более мелкие доли отклоняются, а не округляются.
func ValidatePrice(p decimal.Decimal) error {
	if !p.IsPositive() || p.GreaterThanOrEqual(maxPrice) || !p.Equal(p.Truncate(2)) {
		return ErrInvalidPrice
	}
	return nil
}

// CanFinalize - выбрать победителя можно в Pending или в Open после даты закрытия
func CanFinalize(t *models.Tender, now time.Time) error {
	switch {
	case t.Status == models.TenderPending:
		return nil
	case Expired(t, now):
		return nil
	default:
		return ErrNotFinalizable
	}
}

// SelectWinner выбирает выигравшее предложение. Если chosenBidID задан,
// предложение должно принадлежать тендеру. Иначе побеждает минимальная цена,
// при равенстве - более раннее предложение, затем меньший id.
func SelectWinner(bids []models.Bid, chosenBidID *int64) (*models.Bid, error) {
	if len(bids) == 0 {
		return nil, ErrNoBids
	}
	if chosenBidID != nil {
		for i := range bids {
			if bids[i].ID == *chosenBidID {
				return &bids[i], nil
			}
		}
		return nil, ErrBidNotInTender
	}

	sorted := make([]models.Bid, len(bids))
	copy(sorted, bids)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if c := a.BiddingPrice.Cmp(b.BiddingPrice); c != 0 {
			return c < 0
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return &sorted[0], nil
}

// FinalizeWinner применяет результат выбора к тендеру и его предложениям.
// Возвращает обновлённые предложения; версия тендера увеличивается хранилищем.
func FinalizeWinner(t *models.Tender, bids []models.Bid, winner *models.Bid, now time.Time) []models.Bid {
	out := make([]models.Bid, len(bids))
	for i, b := range bids {
		b.IsWinner = b.ID == winner.ID
		out[i] = b
	}
	bidder := winner.BidderID
	at := now
	t.Status = models.TenderAwarded
	t.WinnerID = &bidder
	t.WinnerDate = &at
	return out
}
