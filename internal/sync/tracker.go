package sync

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// maxRetryCount is the dead-letter threshold: entries that fail this many
// times are excluded from future runs until manually cleared.
const maxRetryCount = 5

// PendingChange is one journal entry awaiting push.
type PendingChange struct {
	ID         string
	TableName  string
	RecordID   string
	Action     string
	Payload    *string
	RetryCount int
}

// Tracker owns the sync_log change journal. Business writers log into it;
// the push coordinator consumes and marks it.
type Tracker struct {
	db     *sql.DB
	logger *logrus.Logger
}

// NewTracker creates a change tracker over the given database.
func NewTracker(db *sql.DB, logger *logrus.Logger) *Tracker {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Tracker{db: db, logger: logger}
}

// LogChange records a local mutation for later push. At most one unsynced
// entry exists per (table, record); re-logging coalesces into it, overwriting
// the action and refreshing created_at so the entry sorts behind newer work.
func (t *Tracker) LogChange(tableName, recordID, action string, payload *string) error {
	_, err := t.db.Exec(`
		INSERT INTO sync_log (id, table_name, record_id, action, payload, synced)
		VALUES (?, ?, ?, ?, ?, 0)
		ON CONFLICT(table_name, record_id) DO UPDATE SET
			action = excluded.action,
			payload = excluded.payload,
			synced = 0,
			created_at = datetime('now')
	`, uuid.New().String(), tableName, recordID, action, payload)
	if err != nil {
		return fmt.Errorf("failed to log change: %w", err)
	}
	return nil
}

// PendingChanges returns unsynced entries below the retry cap for one table,
// oldest first.
func (t *Tracker) PendingChanges(tableName string) ([]PendingChange, error) {
	rows, err := t.db.Query(`
		SELECT id, table_name, record_id, action, payload, retry_count
		FROM sync_log
		WHERE table_name = ? AND synced = 0 AND retry_count < ?
		ORDER BY created_at ASC
	`, tableName, maxRetryCount)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending changes: %w", err)
	}
	defer rows.Close()
	return scanChanges(rows)
}

// AllPendingChanges returns unsynced entries below the retry cap across all
// tables, oldest first.
func (t *Tracker) AllPendingChanges() ([]PendingChange, error) {
	rows, err := t.db.Query(`
		SELECT id, table_name, record_id, action, payload, retry_count
		FROM sync_log
		WHERE synced = 0 AND retry_count < ?
		ORDER BY created_at ASC
	`, maxRetryCount)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending changes: %w", err)
	}
	defer rows.Close()
	return scanChanges(rows)
}

func scanChanges(rows *sql.Rows) ([]PendingChange, error) {
	var changes []PendingChange
	for rows.Next() {
		var c PendingChange
		if err := rows.Scan(&c.ID, &c.TableName, &c.RecordID, &c.Action, &c.Payload, &c.RetryCount); err != nil {
			return nil, fmt.Errorf("failed to scan pending change: %w", err)
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// CountPending counts unsynced entries below the retry cap.
func (t *Tracker) CountPending() (int, error) {
	var count int
	err := t.db.QueryRow(
		"SELECT COUNT(*) FROM sync_log WHERE synced = 0 AND retry_count < ?", maxRetryCount,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending changes: %w", err)
	}
	return count, nil
}

// MarkSynced flags a journal entry as pushed.
func (t *Tracker) MarkSynced(id string) error {
	_, err := t.db.Exec(
		"UPDATE sync_log SET synced = 1, synced_at = datetime('now') WHERE id = ?", id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark as synced: %w", err)
	}
	return nil
}

// MarkFailed records a push failure, incrementing the retry counter.
func (t *Tracker) MarkFailed(id, errorMessage string) error {
	_, err := t.db.Exec(`
		UPDATE sync_log
		SET error_message = ?, retry_count = retry_count + 1
		WHERE id = ?
	`, errorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to mark as failed: %w", err)
	}
	return nil
}

// CleanupOldRecords deletes synced entries older than seven days and returns
// how many were removed.
func (t *Tracker) CleanupOldRecords() (int, error) {
	res, err := t.db.Exec(
		"DELETE FROM sync_log WHERE synced = 1 AND synced_at < datetime('now', '-7 days')",
	)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old records: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
