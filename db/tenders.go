package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tendering/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const tenderColumns = `tender_id, tender_name, description, category_id, construction_from, construction_to,
        notice_date, close_date, winner_date, bidding_price, tender_status, staff_id, winner,
        version, created_at, updated_at`

// Tender (Тендер)

func (s *Storage) CreateTender(ctx context.Context, t *models.Tender) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `
            INSERT INTO tenders
                (tender_name, description, category_id, construction_from, construction_to,
                 notice_date, close_date, bidding_price, tender_status, staff_id, version)
            VALUES
                ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1)
            RETURNING tender_id, version, created_at, updated_at`
		err := tx.QueryRowContext(ctx, query,
			t.Name, t.Description, t.CategoryID, t.ConstructionFrom, t.ConstructionTo,
			t.NoticeDate, t.CloseDate, t.BiddingPrice, t.Status, t.StaffID).
			Scan(&t.ID, &t.Version, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return mapError(err)
		}
		t.Bids = []int64{}
		// Сохраняем первую версию
		return saveTenderVersion(ctx, tx, t)
	})
}

func (s *Storage) GetTender(ctx context.Context, id int64) (*models.Tender, error) {
	t := &models.Tender{}
	query := `SELECT ` + tenderColumns + ` FROM tenders WHERE tender_id=$1`
	if err := s.db.GetContext(ctx, t, query, id); err != nil {
		return nil, mapError(err)
	}
	tenders := []models.Tender{*t}
	if err := s.fillTenderBids(ctx, tenders); err != nil {
		return nil, err
	}
	return &tenders[0], nil
}

// buildTenderFilter собирает WHERE и аргументы; нумерация плейсхолдеров с 1
func buildTenderFilter(f models.TenderFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("tender_status = $%d", len(args)))
	}
	if len(f.CategoryIDs) > 0 {
		args = append(args, pq.Array(f.CategoryIDs))
		conds = append(conds, fmt.Sprintf("category_id = ANY($%d)", len(args)))
	}
	if f.StaffID > 0 {
		args = append(args, f.StaffID)
		conds = append(conds, fmt.Sprintf("staff_id = $%d", len(args)))
	}
	if !f.ClosesAfter.IsZero() {
		args = append(args, f.ClosesAfter)
		conds = append(conds, fmt.Sprintf("close_date > $%d", len(args)))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *Storage) ListTenders(ctx context.Context, f models.TenderFilter, limit, offset int) ([]models.Tender, error) {
	where, args := buildTenderFilter(f)
	query := `SELECT ` + tenderColumns + ` FROM tenders` + where +
		fmt.Sprintf(" ORDER BY close_date ASC, tender_id ASC LIMIT %d OFFSET %d", limit, offset)

	tenders := []models.Tender{}
	if err := s.db.SelectContext(ctx, &tenders, query, args...); err != nil {
		return nil, fmt.Errorf("list tenders: %w", err)
	}
	if err := s.fillTenderBids(ctx, tenders); err != nil {
		return nil, err
	}
	return tenders, nil
}

// ListExpiredOpenTenders возвращает открытые тендеры, у которых истёк срок подачи
func (s *Storage) ListExpiredOpenTenders(ctx context.Context, now time.Time) ([]models.Tender, error) {
	tenders := []models.Tender{}
	query := `SELECT ` + tenderColumns + ` FROM tenders
        WHERE tender_status = $1 AND close_date <= $2
        ORDER BY close_date ASC`
	if err := s.db.SelectContext(ctx, &tenders, query, string(models.TenderOpen), now); err != nil {
		return nil, fmt.Errorf("list expired tenders: %w", err)
	}
	return tenders, nil
}

// UpdateTender увеличивает версию и сохраняет снимок.
// Запись проходит только если версия в базе совпадает с t.Version,
// иначе тендер успели изменить и возвращается ErrConflict.
func (s *Storage) UpdateTender(ctx context.Context, t *models.Tender) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		loaded := t.Version
		t.Version++
		query := `
            UPDATE tenders
            SET tender_name=$1, description=$2, category_id=$3, construction_from=$4, construction_to=$5,
                notice_date=$6, close_date=$7, bidding_price=$8, tender_status=$9, version=$10,
                updated_at=NOW()
            WHERE tender_id=$11 AND version=$12
            RETURNING updated_at`
		err := tx.QueryRowContext(ctx, query,
			t.Name, t.Description, t.CategoryID, t.ConstructionFrom, t.ConstructionTo,
			t.NoticeDate, t.CloseDate, t.BiddingPrice, t.Status, t.Version, t.ID, loaded).
			Scan(&t.UpdatedAt)
		if err != nil {
			t.Version = loaded
			if err = mapError(err); errors.Is(err, ErrNotFound) {
				return staleTender(ctx, tx, t.ID)
			}
			return err
		}
		return saveTenderVersion(ctx, tx, t)
	})
}

// staleTender различает удалённый тендер и тендер, изменённый параллельно
func staleTender(ctx context.Context, tx *sqlx.Tx, id int64) error {
	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM tenders WHERE tender_id=$1)`, id); err != nil {
		return fmt.Errorf("check tender: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return fmt.Errorf("%w: tender was modified concurrently", ErrConflict)
}

// AwardTender в одной транзакции отмечает победившее предложение и закрывает тендер.
// Повторное награждение отклоняется через ErrConflict.
func (s *Storage) AwardTender(ctx context.Context, t *models.Tender, winningBidID int64) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		// победившее предложение должно всё ещё существовать
		err := expectAffected(tx.ExecContext(ctx,
			`UPDATE bids SET is_winner = TRUE, updated_at = NOW() WHERE tender_id = $1 AND bid_id = $2`,
			t.ID, winningBidID))
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE bids SET is_winner = FALSE, updated_at = NOW() WHERE tender_id = $1 AND bid_id <> $2`,
			t.ID, winningBidID)
		if err != nil {
			return mapError(err)
		}

		t.Version++
		query := `
            UPDATE tenders
            SET tender_status=$1, winner=$2, winner_date=$3, version=$4, updated_at=NOW()
            WHERE tender_id=$5 AND tender_status IN ($6, $7)
            RETURNING updated_at`
		err = tx.QueryRowContext(ctx, query,
			t.Status, t.WinnerID, t.WinnerDate, t.Version, t.ID,
			string(models.TenderOpen), string(models.TenderPending)).
			Scan(&t.UpdatedAt)
		if err != nil {
			t.Version--
			if err = mapError(err); errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: tender already finalized", ErrConflict)
			}
			return err
		}
		return saveTenderVersion(ctx, tx, t)
	})
}

func (s *Storage) DeleteTender(ctx context.Context, id int64) error {
	query := `DELETE FROM tenders WHERE tender_id=$1`
	return expectAffected(s.db.ExecContext(ctx, query, id))
}

func saveTenderVersion(ctx context.Context, tx *sqlx.Tx, t *models.Tender) error {
	query := `
        INSERT INTO tender_versions
            (tender_id, version, tender_name, description, category_id, construction_from,
             construction_to, notice_date, close_date, bidding_price, tender_status, created_at)
        VALUES
            (:tender_id, :version, :tender_name, :description, :category_id, :construction_from,
             :construction_to, :notice_date, :close_date, :bidding_price, :tender_status, NOW())`
	_, err := tx.NamedExecContext(ctx, query, t.Snapshot())
	return mapError(err)
}

func (s *Storage) GetTenderVersion(ctx context.Context, tenderID int64, version int) (*models.TenderVersion, error) {
	var v models.TenderVersion
	query := `
        SELECT tender_id, version, tender_name, description, category_id, construction_from,
               construction_to, notice_date, close_date, bidding_price, tender_status, created_at
        FROM tender_versions
        WHERE tender_id = $1 AND version = $2`
	if err := s.db.GetContext(ctx, &v, query, tenderID, version); err != nil {
		return nil, mapError(err)
	}
	return &v, nil
}

func (s *Storage) ListTenderVersions(ctx context.Context, tenderID int64) ([]models.TenderVersion, error) {
	versions := []models.TenderVersion{}
	query := `
        SELECT tender_id, version, tender_name, description, category_id, construction_from,
               construction_to, notice_date, close_date, bidding_price, tender_status, created_at
        FROM tender_versions
        WHERE tender_id = $1
        ORDER BY version ASC`
	if err := s.db.SelectContext(ctx, &versions, query, tenderID); err != nil {
		return nil, fmt.Errorf("list tender versions: %w", err)
	}
	return versions, nil
}

func (s *Storage) fillTenderBids(ctx context.Context, tenders []models.Tender) error {
	if len(tenders) == 0 {
		return nil
	}
	ids := make([]int64, len(tenders))
	for i := range tenders {
		ids[i] = tenders[i].ID
	}
	bids, err := s.loadPairs(ctx,
		`SELECT tender_id AS owner, bid_id AS item FROM bids WHERE tender_id = ANY($1) ORDER BY bid_id`, ids)
	if err != nil {
		return err
	}
	for i := range tenders {
		tenders[i].Bids = nonNil(bids[tenders[i].ID])
	}
	return nil
}
