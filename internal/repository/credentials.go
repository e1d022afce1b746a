package repository

import (
	"database/sql"

	"investing_monitor/internal/database"
	"investing_monitor/internal/models"
)

// CredentialsRepository handles the stored provider login. A single row
// holds the one configured account.
type CredentialsRepository struct {
	db *database.DB
}

// NewCredentialsRepository creates a new CredentialsRepository.
func NewCredentialsRepository(db *database.DB) *CredentialsRepository {
	return &CredentialsRepository{db: db}
}

// Save stores or replaces the provider credentials.
func (r *CredentialsRepository) Save(c *models.Credentials) error {
	_, err := r.db.Exec(`
		INSERT INTO credentials (id, email, password_ciphertext, password_nonce, udid)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			password_ciphertext = excluded.password_ciphertext,
			password_nonce = excluded.password_nonce,
			udid = excluded.udid,
			updated_at = CURRENT_TIMESTAMP
	`, c.Email, c.PasswordCiphertext, c.PasswordNonce, c.UDID)
	return err
}

// Get retrieves the stored credentials, or nil when none are configured.
func (r *CredentialsRepository) Get() (*models.Credentials, error) {
	row := r.db.QueryRow(`
		SELECT email, password_ciphertext, password_nonce, udid, updated_at
		FROM credentials
		WHERE id = 1
	`)

	c := &models.Credentials{}
	err := row.Scan(&c.Email, &c.PasswordCiphertext, &c.PasswordNonce, &c.UDID, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}
