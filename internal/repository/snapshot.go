package repository

import (
	"database/sql"

	"investing_monitor/internal/database"
	"investing_monitor/internal/models"
)

// SnapshotRepository handles portfolio snapshot database operations.
// Each portfolio has at most one row: the latest successful fetch.
type SnapshotRepository struct {
	db *database.DB
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(db *database.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Upsert replaces the snapshot for a portfolio atomically. Only called on
// successful fetches; a failed fetch leaves the previous snapshot in place.
func (r *SnapshotRepository) Upsert(s *models.PortfolioSnapshot) error {
	_, err := r.db.Exec(`
		INSERT INTO snapshots
			(portfolio_id, invested_capital, open_pl, open_pl_perc, daily_pl, daily_pl_perc, currency, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(portfolio_id) DO UPDATE SET
			invested_capital = excluded.invested_capital,
			open_pl = excluded.open_pl,
			open_pl_perc = excluded.open_pl_perc,
			daily_pl = excluded.daily_pl,
			daily_pl_perc = excluded.daily_pl_perc,
			currency = excluded.currency,
			fetched_at = excluded.fetched_at
	`, s.PortfolioID, s.InvestedCapital, s.OpenPL, s.OpenPLPercent,
		s.DailyPL, s.DailyPLPercent, s.Currency, s.FetchedAt)
	return err
}

// GetByPortfolioID retrieves the latest snapshot for a portfolio.
func (r *SnapshotRepository) GetByPortfolioID(portfolioID int64) (*models.PortfolioSnapshot, error) {
	row := r.db.QueryRow(`
		SELECT portfolio_id, invested_capital, open_pl, open_pl_perc, daily_pl, daily_pl_perc, currency, fetched_at
		FROM snapshots
		WHERE portfolio_id = ?
	`, portfolioID)

	s := &models.PortfolioSnapshot{}
	err := row.Scan(
		&s.PortfolioID,
		&s.InvestedCapital,
		&s.OpenPL,
		&s.OpenPLPercent,
		&s.DailyPL,
		&s.DailyPLPercent,
		&s.Currency,
		&s.FetchedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetAll retrieves the latest snapshot of every tracked portfolio.
func (r *SnapshotRepository) GetAll() ([]*models.PortfolioSnapshot, error) {
	rows, err := r.db.Query(`
		SELECT portfolio_id, invested_capital, open_pl, open_pl_perc, daily_pl, daily_pl_perc, currency, fetched_at
		FROM snapshots
		ORDER BY portfolio_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots := make([]*models.PortfolioSnapshot, 0)
	for rows.Next() {
		s := &models.PortfolioSnapshot{}
		err := rows.Scan(
			&s.PortfolioID,
			&s.InvestedCapital,
			&s.OpenPL,
			&s.OpenPLPercent,
			&s.DailyPL,
			&s.DailyPLPercent,
			&s.Currency,
			&s.FetchedAt,
		)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}
