package repository

import (
	"database/sql"
	"time"

	"investing_monitor/internal/database"
	"investing_monitor/internal/models"
)

// NotificationRepository handles persistent error notification operations.
type NotificationRepository struct {
	db *database.DB
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(db *database.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a new notification and returns its ID.
func (r *NotificationRepository) Create(portfolioID int64, kind, message string) (int64, error) {
	result, err := r.db.Exec(`
		INSERT INTO notifications (portfolio_id, kind, message)
		VALUES (?, ?, ?)
	`, portfolioID, kind, message)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// HasOpen reports whether an undismissed notification of the given kind
// already exists for the portfolio. Used to avoid raising duplicates for a
// condition that persists across refresh attempts.
func (r *NotificationRepository) HasOpen(portfolioID int64, kind string) (bool, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM notifications
		WHERE portfolio_id = ? AND kind = ? AND dismissed_at IS NULL
	`, portfolioID, kind).Scan(&count)
	return count > 0, err
}

// GetActive retrieves all undismissed notifications, most recent first.
func (r *NotificationRepository) GetActive() ([]*models.Notification, error) {
	rows, err := r.db.Query(`
		SELECT id, portfolio_id, kind, message, created_at, dismissed_at
		FROM notifications
		WHERE dismissed_at IS NULL
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := make([]*models.Notification, 0)
	for rows.Next() {
		n := &models.Notification{}
		var dismissedAt sql.NullTime
		err := rows.Scan(&n.ID, &n.PortfolioID, &n.Kind, &n.Message, &n.CreatedAt, &dismissedAt)
		if err != nil {
			return nil, err
		}
		if dismissedAt.Valid {
			n.DismissedAt = &dismissedAt.Time
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// Dismiss marks a notification as dismissed. Returns false when the
// notification does not exist or was already dismissed.
func (r *NotificationRepository) Dismiss(id int64) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE notifications
		SET dismissed_at = ?
		WHERE id = ? AND dismissed_at IS NULL
	`, time.Now(), id)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// DismissByPortfolio dismisses every open notification of the given kind
// for a portfolio. Called when the underlying condition clears.
func (r *NotificationRepository) DismissByPortfolio(portfolioID int64, kind string) error {
	_, err := r.db.Exec(`
		UPDATE notifications
		SET dismissed_at = ?
		WHERE portfolio_id = ? AND kind = ? AND dismissed_at IS NULL
	`, time.Now(), portfolioID, kind)
	return err
}
