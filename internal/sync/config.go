package sync

import (
	"database/sql"
	"fmt"

	"github.com/tokomas/goldpos/internal/models"
)

// LoadConfig reads the singleton sync configuration row, creating a disabled
// default when none exists.
func LoadConfig(db *sql.DB) (*models.SyncConfig, error) {
	var cfg models.SyncConfig
	err := db.QueryRow(`
		SELECT id, sf_client_id, sf_client_secret, sf_username, sf_password,
		       sf_security_token, sf_instance_url, is_sandbox, sync_enabled,
		       sync_interval_minutes, created_at, updated_at
		FROM sync_config WHERE id = 'default'
	`).Scan(&cfg.ID, &cfg.SfClientID, &cfg.SfClientSecret, &cfg.SfUsername,
		&cfg.SfPassword, &cfg.SfSecurityToken, &cfg.SfInstanceURL,
		&cfg.IsSandbox, &cfg.SyncEnabled, &cfg.SyncIntervalMinutes,
		&cfg.CreatedAt, &cfg.UpdatedAt)
	if err == sql.ErrNoRows {
		if _, err := db.Exec("INSERT INTO sync_config (id) VALUES ('default')"); err != nil {
			return nil, fmt.Errorf("failed to create sync config: %w", err)
		}
		return LoadConfig(db)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sync config: %w", err)
	}
	return &cfg, nil
}

// SaveConfig persists the singleton sync configuration.
func SaveConfig(db *sql.DB, cfg *models.SyncConfig) error {
	_, err := db.Exec(`
		INSERT INTO sync_config (id, sf_client_id, sf_client_secret, sf_username,
		                         sf_password, sf_security_token, sf_instance_url,
		                         is_sandbox, sync_enabled, sync_interval_minutes, updated_at)
		VALUES ('default', ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET
			sf_client_id = excluded.sf_client_id,
			sf_client_secret = excluded.sf_client_secret,
			sf_username = excluded.sf_username,
			sf_password = excluded.sf_password,
			sf_security_token = excluded.sf_security_token,
			sf_instance_url = excluded.sf_instance_url,
			is_sandbox = excluded.is_sandbox,
			sync_enabled = excluded.sync_enabled,
			sync_interval_minutes = excluded.sync_interval_minutes,
			updated_at = excluded.updated_at
	`, cfg.SfClientID, cfg.SfClientSecret, cfg.SfUsername, cfg.SfPassword,
		cfg.SfSecurityToken, cfg.SfInstanceURL, cfg.IsSandbox, cfg.SyncEnabled,
		cfg.SyncIntervalMinutes)
	if err != nil {
		return fmt.Errorf("failed to save sync config: %w", err)
	}
	return nil
}
