package migrations

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// Migration is one versioned schema change, applied in its own transaction.
type Migration struct {
	Version     int
	Description string
	Up          func(*sql.Tx) error
}

// Record is an applied migration as stored in schema_version.
type Record struct {
	Version     int
	Description string
	AppliedAt   time.Time
}

// Manager applies pending schema migrations in version order.
type Manager struct {
	db         *sql.DB
	migrations []Migration
	logger     *logrus.Logger
}

// New creates a migration manager with the built-in migration set.
func New(db *sql.DB, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Manager{db: db, migrations: all(), logger: logger}
}

// CurrentVersion returns the highest applied version, 0 for a fresh database.
func (m *Manager) CurrentVersion() (int, error) {
	if err := m.ensureVersionTable(); err != nil {
		return 0, err
	}
	var version int
	if err := m.db.QueryRow(
		"SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// TargetVersion returns the highest version this build knows about.
func (m *Manager) TargetVersion() int {
	target := 0
	for _, mig := range m.migrations {
		if mig.Version > target {
			target = mig.Version
		}
	}
	return target
}

// Migrate brings the database up to the target version. Running against an
// up-to-date database is a no-op.
func (m *Manager) Migrate() error {
	current, err := m.CurrentVersion()
	if err != nil {
		return err
	}
	target := m.TargetVersion()

	if current == target {
		return nil
	}
	if current > target {
		return fmt.Errorf("database schema version (%d) is newer than this build (%d)", current, target)
	}

	sort.Slice(m.migrations, func(i, j int) bool {
		return m.migrations[i].Version < m.migrations[j].Version
	})

	for _, mig := range m.migrations {
		if mig.Version <= current {
			continue
		}
		if err := m.apply(mig); err != nil {
			return fmt.Errorf("migration %d (%s): %w", mig.Version, mig.Description, err)
		}
		m.logger.WithFields(logrus.Fields{
			"version":     mig.Version,
			"description": mig.Description,
		}).Info("Applied schema migration")
	}
	return nil
}

// History returns the applied migrations in version order.
func (m *Manager) History() ([]Record, error) {
	if err := m.ensureVersionTable(); err != nil {
		return nil, err
	}
	rows, err := m.db.Query(
		"SELECT version, description, applied_at FROM schema_version ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []Record
	for rows.Next() {
		var (
			rec       Record
			appliedAt int64
		)
		if err := rows.Scan(&rec.Version, &rec.Description, &appliedAt); err != nil {
			return nil, err
		}
		rec.AppliedAt = time.Unix(appliedAt, 0)
		history = append(history, rec)
	}
	return history, rows.Err()
}

func (m *Manager) ensureVersionTable() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}
	return nil
}

func (m *Manager) apply(mig Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := mig.Up(tx); err != nil {
		return err
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_version (version, description, applied_at) VALUES (?, ?, ?)",
		mig.Version, mig.Description, time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}
