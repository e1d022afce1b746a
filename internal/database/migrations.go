package database

// SQL migrations for the investing monitor database.
// All migrations use IF NOT EXISTS to be idempotent.

const migrationPortfolios = `
CREATE TABLE IF NOT EXISTS portfolios (
    id INTEGER PRIMARY KEY,
    display_name TEXT NOT NULL,
    normalized_name TEXT NOT NULL,
    interval_minutes INTEGER NOT NULL DEFAULT 15,
    start_hour INTEGER NOT NULL DEFAULT 9,
    end_hour INTEGER NOT NULL DEFAULT 21,
    night_update TEXT NOT NULL DEFAULT '22:05',
    morning_update TEXT NOT NULL DEFAULT '04:00',
    weekend_checkpoints INTEGER NOT NULL DEFAULT 1,
    paused INTEGER NOT NULL DEFAULT 0,
    last_attempt_at DATETIME,
    last_success_at DATETIME,
    last_error TEXT NOT NULL DEFAULT '',
    last_error_kind TEXT NOT NULL DEFAULT '',
    last_error_at DATETIME,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

const migrationSnapshots = `
CREATE TABLE IF NOT EXISTS snapshots (
    portfolio_id INTEGER PRIMARY KEY REFERENCES portfolios(id) ON DELETE CASCADE,
    invested_capital REAL NOT NULL DEFAULT 0,
    open_pl REAL NOT NULL DEFAULT 0,
    open_pl_perc REAL NOT NULL DEFAULT 0,
    daily_pl REAL NOT NULL DEFAULT 0,
    daily_pl_perc REAL NOT NULL DEFAULT 0,
    currency TEXT NOT NULL DEFAULT 'EUR',
    fetched_at DATETIME NOT NULL
);
`

const migrationCredentials = `
CREATE TABLE IF NOT EXISTS credentials (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    email TEXT NOT NULL,
    password_ciphertext BLOB NOT NULL,
    password_nonce BLOB NOT NULL,
    udid TEXT NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

const migrationProviderSession = `
CREATE TABLE IF NOT EXISTS provider_session (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    token TEXT NOT NULL,
    issued_at DATETIME NOT NULL
);
`

const migrationNotifications = `
CREATE TABLE IF NOT EXISTS notifications (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    portfolio_id INTEGER NOT NULL DEFAULT 0,
    kind TEXT NOT NULL,
    message TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    dismissed_at DATETIME
);
`

const migrationFetchHistory = `
CREATE TABLE IF NOT EXISTS fetch_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    portfolio_id INTEGER NOT NULL REFERENCES portfolios(id) ON DELETE CASCADE,
    triggered_by TEXT NOT NULL DEFAULT 'scheduled',
    status TEXT NOT NULL DEFAULT 'running',
    error TEXT NOT NULL DEFAULT '',
    started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    finished_at DATETIME
);
`

const migrationIndexes = `
CREATE INDEX IF NOT EXISTS idx_notifications_open
    ON notifications(portfolio_id, kind) WHERE dismissed_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_fetch_history_portfolio
    ON fetch_history(portfolio_id, started_at);
`
