package repository

import (
	"database/sql"
	"time"

	"investing_monitor/internal/database"
)

// ProviderSessionRepository persists the issued provider token so a
// restart does not force a fresh login.
type ProviderSessionRepository struct {
	db *database.DB
}

// NewProviderSessionRepository creates a new ProviderSessionRepository.
func NewProviderSessionRepository(db *database.DB) *ProviderSessionRepository {
	return &ProviderSessionRepository{db: db}
}

// SaveToken stores or replaces the cached token.
func (r *ProviderSessionRepository) SaveToken(token string, issuedAt time.Time) error {
	_, err := r.db.Exec(`
		INSERT INTO provider_session (id, token, issued_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			token = excluded.token,
			issued_at = excluded.issued_at
	`, token, issuedAt)
	return err
}

// LoadToken retrieves the cached token. Returns an empty token when none
// is cached.
func (r *ProviderSessionRepository) LoadToken() (string, time.Time, error) {
	var token string
	var issuedAt time.Time
	err := r.db.QueryRow(`SELECT token, issued_at FROM provider_session WHERE id = 1`).
		Scan(&token, &issuedAt)
	if err == sql.ErrNoRows {
		return "", time.Time{}, nil
	}
	if err != nil {
		return "", time.Time{}, err
	}
	return token, issuedAt, nil
}

// Clear removes the cached token. Called when credentials change.
func (r *ProviderSessionRepository) Clear() error {
	_, err := r.db.Exec(`DELETE FROM provider_session WHERE id = 1`)
	return err
}
