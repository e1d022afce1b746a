package database

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew_CreatesConnection(t *testing.T) {
	// Setup: use temporary directory
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	// Test: create new database connection
	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v, want nil", err)
	}
	defer db.Close()

	// Verify: database file exists
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}

	// Verify: can ping database
	if err := db.Ping(); err != nil {
		t.Errorf("Ping() error = %v, want nil", err)
	}
}

func TestNew_InvalidPath_ReturnsError(t *testing.T) {
	// Test with invalid path (directory that doesn't exist and can't be created)
	_, err := New("/nonexistent/path/that/cannot/be/created/test.db")
	if err == nil {
		t.Error("New() with invalid path should return error")
	}
}

func TestRunMigrations_CreatesAllTables(t *testing.T) {
	// Setup
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer db.Close()

	// Test: run migrations
	if err := db.RunMigrations(); err != nil {
		t.Fatalf("RunMigrations() error = %v, want nil", err)
	}

	// Verify: all tables exist
	expectedTables := []string{
		"portfolios",
		"snapshots",
		"credentials",
		"provider_session",
		"notifications",
		"fetch_history",
	}

	for _, table := range expectedTables {
		var exists int
		query := `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`
		err := db.QueryRow(query, table).Scan(&exists)
		if err != nil {
			t.Errorf("checking table %s: %v", table, err)
			continue
		}
		if exists != 1 {
			t.Errorf("table %s does not exist", table)
		}
	}
}

func TestRunMigrations_CreatesIndexes(t *testing.T) {
	// Setup
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	// Verify: indexes exist
	expectedIndexes := []string{
		"idx_notifications_open",
		"idx_fetch_history_portfolio",
	}

	for _, index := range expectedIndexes {
		var exists int
		query := `SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?`
		err := db.QueryRow(query, index).Scan(&exists)
		if err != nil {
			t.Errorf("checking index %s: %v", index, err)
			continue
		}
		if exists != 1 {
			t.Errorf("index %s does not exist", index)
		}
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	// Setup
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer db.Close()

	// Test: run migrations multiple times
	for i := 0; i < 3; i++ {
		if err := db.RunMigrations(); err != nil {
			t.Fatalf("RunMigrations() iteration %d error = %v, want nil", i+1, err)
		}
	}

	// Verify: still works and has correct tables
	var tableCount int
	query := `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'`
	if err := db.QueryRow(query).Scan(&tableCount); err != nil {
		t.Fatalf("counting tables: %v", err)
	}

	expectedCount := 6 // portfolios, snapshots, credentials, provider_session, notifications, fetch_history
	if tableCount != expectedCount {
		t.Errorf("table count = %d, want %d", tableCount, expectedCount)
	}
}

func TestDB_Close(t *testing.T) {
	// Setup
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Test: close database
	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}

	// Verify: operations fail after close
	if err := db.Ping(); err == nil {
		t.Error("Ping() after Close() should return error")
	}
}

func TestDB_Exec_InsertAndQuery(t *testing.T) {
	// Setup
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	// Test: insert a portfolio
	_, err = db.Exec(
		`INSERT INTO portfolios (id, display_name, normalized_name) VALUES (?, ?, ?)`,
		12345,
		"Long Term",
		"long_term",
	)
	if err != nil {
		t.Fatalf("Exec() insert error = %v", err)
	}

	// Verify: can query it back with schedule defaults applied
	var name string
	var interval int
	err = db.QueryRow(`SELECT display_name, interval_minutes FROM portfolios WHERE id = ?`, 12345).
		Scan(&name, &interval)
	if err != nil {
		t.Fatalf("QueryRow() error = %v", err)
	}
	if name != "Long Term" {
		t.Errorf("display_name = %q, want %q", name, "Long Term")
	}
	if interval != 15 {
		t.Errorf("interval_minutes = %d, want 15 (default)", interval)
	}
}

func TestDB_CascadeDelete(t *testing.T) {
	// Setup
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	// Insert a portfolio with a snapshot and a fetch history row
	_, err = db.Exec(
		`INSERT INTO portfolios (id, display_name, normalized_name) VALUES (?, ?, ?)`,
		42, "Pension", "pension",
	)
	if err != nil {
		t.Fatalf("insert portfolio error = %v", err)
	}
	_, err = db.Exec(
		`INSERT INTO snapshots (portfolio_id, invested_capital, fetched_at) VALUES (?, ?, ?)`,
		42, 1000.0, "2024-01-15 10:00:00",
	)
	if err != nil {
		t.Fatalf("insert snapshot error = %v", err)
	}
	_, err = db.Exec(
		`INSERT INTO fetch_history (portfolio_id, triggered_by, status) VALUES (?, ?, ?)`,
		42, "scheduled", "success",
	)
	if err != nil {
		t.Fatalf("insert fetch history error = %v", err)
	}

	// Test: delete portfolio (should cascade delete snapshot and history)
	_, err = db.Exec(`DELETE FROM portfolios WHERE id = ?`, 42)
	if err != nil {
		t.Fatalf("delete portfolio error = %v", err)
	}

	// Verify: snapshot is deleted
	var snapCount int
	db.QueryRow(`SELECT COUNT(*) FROM snapshots WHERE portfolio_id = ?`, 42).Scan(&snapCount)
	if snapCount != 0 {
		t.Error("snapshot should be deleted after portfolio delete")
	}

	// Verify: fetch history is deleted
	var histCount int
	db.QueryRow(`SELECT COUNT(*) FROM fetch_history WHERE portfolio_id = ?`, 42).Scan(&histCount)
	if histCount != 0 {
		t.Error("fetch history should be deleted after portfolio delete")
	}
}
