package repository

import (
	"database/sql"
	"time"

	"investing_monitor/internal/database"
	"investing_monitor/internal/models"
)

// PortfolioRepository handles portfolio configuration database operations.
type PortfolioRepository struct {
	db *database.DB
}

// NewPortfolioRepository creates a new PortfolioRepository.
func NewPortfolioRepository(db *database.DB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

// Create inserts a new portfolio configuration. Returns false when a
// portfolio with the same provider ID is already tracked.
func (r *PortfolioRepository) Create(p *models.PortfolioConfig) (bool, error) {
	result, err := r.db.Exec(`
		INSERT OR IGNORE INTO portfolios
			(id, display_name, normalized_name, interval_minutes, start_hour, end_hour,
			 night_update, morning_update, weekend_checkpoints, paused)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.PortfolioID, p.DisplayName, p.NormalizedName,
		p.Schedule.WeekdayInterval, p.Schedule.WeekdayStart, p.Schedule.WeekdayEnd,
		p.Schedule.NightUpdate, p.Schedule.MorningUpdate,
		boolToInt(p.Schedule.WeekendCheckpoints), boolToInt(p.Paused))
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// GetByID retrieves a portfolio configuration by provider ID.
func (r *PortfolioRepository) GetByID(id int64) (*models.PortfolioConfig, error) {
	row := r.db.QueryRow(`
		SELECT id, display_name, normalized_name, interval_minutes, start_hour, end_hour,
		       night_update, morning_update, weekend_checkpoints, paused, created_at, updated_at
		FROM portfolios
		WHERE id = ?
	`, id)

	return r.scanPortfolio(row)
}

// GetAll retrieves every tracked portfolio, sorted by display name.
func (r *PortfolioRepository) GetAll() ([]*models.PortfolioConfig, error) {
	rows, err := r.db.Query(`
		SELECT id, display_name, normalized_name, interval_minutes, start_hour, end_hour,
		       night_update, morning_update, weekend_checkpoints, paused, created_at, updated_at
		FROM portfolios
		ORDER BY display_name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	portfolios := make([]*models.PortfolioConfig, 0)
	for rows.Next() {
		p := &models.PortfolioConfig{}
		var weekendCheckpoints, paused int

		err := rows.Scan(
			&p.PortfolioID,
			&p.DisplayName,
			&p.NormalizedName,
			&p.Schedule.WeekdayInterval,
			&p.Schedule.WeekdayStart,
			&p.Schedule.WeekdayEnd,
			&p.Schedule.NightUpdate,
			&p.Schedule.MorningUpdate,
			&weekendCheckpoints,
			&paused,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		p.Schedule.WeekendCheckpoints = weekendCheckpoints == 1
		p.Paused = paused == 1
		portfolios = append(portfolios, p)
	}
	return portfolios, rows.Err()
}

// UpdateSchedule replaces the schedule options of a portfolio.
func (r *PortfolioRepository) UpdateSchedule(id int64, opts models.ScheduleOptions) error {
	_, err := r.db.Exec(`
		UPDATE portfolios
		SET interval_minutes = ?, start_hour = ?, end_hour = ?,
		    night_update = ?, morning_update = ?, weekend_checkpoints = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, opts.WeekdayInterval, opts.WeekdayStart, opts.WeekdayEnd,
		opts.NightUpdate, opts.MorningUpdate, boolToInt(opts.WeekendCheckpoints), id)
	return err
}

// SetPaused updates the paused flag of a portfolio.
func (r *PortfolioRepository) SetPaused(id int64, paused bool) error {
	_, err := r.db.Exec(`
		UPDATE portfolios
		SET paused = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, boolToInt(paused), id)
	return err
}

// Delete removes a portfolio. Cascades to its snapshot and fetch history.
func (r *PortfolioRepository) Delete(id int64) (bool, error) {
	result, err := r.db.Exec(`DELETE FROM portfolios WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// RecordSuccess stores the last successful refresh time and clears any
// remembered error.
func (r *PortfolioRepository) RecordSuccess(id int64, at time.Time) error {
	_, err := r.db.Exec(`
		UPDATE portfolios
		SET last_attempt_at = ?, last_success_at = ?,
		    last_error = '', last_error_kind = '', last_error_at = NULL
		WHERE id = ?
	`, at, at, id)
	return err
}

// RecordError stores the last refresh error.
func (r *PortfolioRepository) RecordError(id int64, at time.Time, kind, message string) error {
	_, err := r.db.Exec(`
		UPDATE portfolios
		SET last_attempt_at = ?, last_error = ?, last_error_kind = ?, last_error_at = ?
		WHERE id = ?
	`, at, message, kind, at, id)
	return err
}

// scanPortfolio scans a single row into a PortfolioConfig.
func (r *PortfolioRepository) scanPortfolio(row *sql.Row) (*models.PortfolioConfig, error) {
	p := &models.PortfolioConfig{}
	var weekendCheckpoints, paused int

	err := row.Scan(
		&p.PortfolioID,
		&p.DisplayName,
		&p.NormalizedName,
		&p.Schedule.WeekdayInterval,
		&p.Schedule.WeekdayStart,
		&p.Schedule.WeekdayEnd,
		&p.Schedule.NightUpdate,
		&p.Schedule.MorningUpdate,
		&weekendCheckpoints,
		&paused,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p.Schedule.WeekendCheckpoints = weekendCheckpoints == 1
	p.Paused = paused == 1
	return p, nil
}

// boolToInt converts a boolean to SQLite integer (0 or 1).
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
