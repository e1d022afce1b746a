package repository

import (
	"database/sql"
	"time"

	"investing_monitor/internal/database"
	"investing_monitor/internal/models"
)

// FetchHistoryRepository handles fetch history database operations.
type FetchHistoryRepository struct {
	db *database.DB
}

// NewFetchHistoryRepository creates a new FetchHistoryRepository.
func NewFetchHistoryRepository(db *database.DB) *FetchHistoryRepository {
	return &FetchHistoryRepository{db: db}
}

// Start creates a new fetch history entry with status "running" and
// returns its ID.
func (r *FetchHistoryRepository) Start(portfolioID int64, triggeredBy string) (int64, error) {
	result, err := r.db.Exec(`
		INSERT INTO fetch_history (portfolio_id, triggered_by, status, started_at)
		VALUES (?, ?, 'running', ?)
	`, portfolioID, triggeredBy, time.Now())
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// Complete marks a fetch as successful.
func (r *FetchHistoryRepository) Complete(id int64) error {
	_, err := r.db.Exec(`
		UPDATE fetch_history
		SET status = 'success', finished_at = ?
		WHERE id = ?
	`, time.Now(), id)
	return err
}

// Fail marks a fetch as failed with an error message.
func (r *FetchHistoryRepository) Fail(id int64, errorMsg string) error {
	_, err := r.db.Exec(`
		UPDATE fetch_history
		SET status = 'error', error = ?, finished_at = ?
		WHERE id = ?
	`, errorMsg, time.Now(), id)
	return err
}

// Recent retrieves the most recent fetch history for a portfolio.
func (r *FetchHistoryRepository) Recent(portfolioID int64, limit int) ([]*models.FetchRecord, error) {
	rows, err := r.db.Query(`
		SELECT id, portfolio_id, triggered_by, status, error, started_at, finished_at
		FROM fetch_history
		WHERE portfolio_id = ?
		ORDER BY started_at DESC
		LIMIT ?
	`, portfolioID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*models.FetchRecord, 0)
	for rows.Next() {
		rec := &models.FetchRecord{}
		var finishedAt sql.NullTime
		err := rows.Scan(&rec.ID, &rec.PortfolioID, &rec.TriggeredBy, &rec.Status,
			&rec.Error, &rec.StartedAt, &finishedAt)
		if err != nil {
			return nil, err
		}
		if finishedAt.Valid {
			rec.FinishedAt = &finishedAt.Time
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteOlderThan removes fetch history entries older than the given time.
func (r *FetchHistoryRepository) DeleteOlderThan(before time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM fetch_history WHERE started_at < ?`, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
