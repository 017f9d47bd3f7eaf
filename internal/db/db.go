package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/tokomas/goldpos/internal/db/migrations"
)

// InitSchema brings the database schema up to the current version.
func InitSchema(db *sql.DB) error {
	return migrations.New(db, nil).Migrate()
}

// Open opens (creating if needed) the goldpos SQLite database under dataDir
// and applies the schema and seed data.
func Open(dataDir string) (*sql.DB, error) {
	dbPath := filepath.Join(dataDir, "db", "goldpos.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := InitSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := Seed(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed database: %w", err)
	}

	logrus.WithField("db_path", dbPath).Info("SQLite store initialized")
	return db, nil
}

// OpenMemory opens an in-memory database with schema applied. Used by tests.
func OpenMemory() (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, err
	}
	// Every pooled connection would otherwise see its own empty database.
	db.SetMaxOpenConns(1)
	if err := InitSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
