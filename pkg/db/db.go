// Package db pkg/db/db.go provides SQLite persistence for tracked devices,
// connection history, hourly presence and webhook configurations.
package db

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	// SQL statements for database initialization.
	createTablesSQL = `
	-- Devices the user asked us to track
	CREATE TABLE IF NOT EXISTS tracked_devices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		mac_address TEXT NOT NULL UNIQUE,
		friendly_name TEXT,
		site_id TEXT NOT NULL,
		added_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		last_seen TIMESTAMP,
		is_connected BOOLEAN NOT NULL DEFAULT 0,
		is_wired BOOLEAN NOT NULL DEFAULT 0,
		is_blocked BOOLEAN NOT NULL DEFAULT 0,
		current_ap_mac TEXT,
		current_ap_name TEXT,
		current_ssid TEXT,
		current_switch_mac TEXT,
		current_switch_name TEXT,
		current_switch_port INTEGER,
		current_ip_address TEXT,
		current_signal_strength INTEGER
	);

	-- Append-only session log, one row per connection
	CREATE TABLE IF NOT EXISTS connection_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id INTEGER NOT NULL,
		ap_mac TEXT,
		ap_name TEXT,
		ssid TEXT,
		is_wired BOOLEAN NOT NULL DEFAULT 0,
		switch_mac TEXT,
		switch_name TEXT,
		switch_port INTEGER,
		signal_strength INTEGER,
		connected_at TIMESTAMP NOT NULL,
		disconnected_at TIMESTAMP,
		duration_seconds INTEGER,
		FOREIGN KEY (device_id) REFERENCES tracked_devices(id) ON DELETE CASCADE
	);

	-- Aggregated presence, one row per device per hour-of-week slot
	CREATE TABLE IF NOT EXISTS hourly_presence (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id INTEGER NOT NULL,
		day_of_week INTEGER NOT NULL,
		hour_of_day INTEGER NOT NULL,
		total_minutes_connected REAL NOT NULL DEFAULT 0,
		sample_count INTEGER NOT NULL DEFAULT 0,
		last_updated TIMESTAMP,
		FOREIGN KEY (device_id) REFERENCES tracked_devices(id) ON DELETE CASCADE,
		UNIQUE (device_id, day_of_week, hour_of_day)
	);

	-- Webhook notification targets
	CREATE TABLE IF NOT EXISTS webhook_configs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		webhook_type TEXT NOT NULL,
		url TEXT NOT NULL,
		event_device_connected BOOLEAN NOT NULL DEFAULT 1,
		event_device_disconnected BOOLEAN NOT NULL DEFAULT 1,
		event_device_roamed BOOLEAN NOT NULL DEFAULT 1,
		event_device_blocked BOOLEAN NOT NULL DEFAULT 1,
		event_device_unblocked BOOLEAN NOT NULL DEFAULT 1,
		enabled BOOLEAN NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		last_triggered TIMESTAMP
	);

	-- At most one open session per device
	CREATE UNIQUE INDEX IF NOT EXISTS uix_open_session
		ON connection_history(device_id) WHERE disconnected_at IS NULL;

	CREATE INDEX IF NOT EXISTS idx_history_device_time
		ON connection_history(device_id, connected_at);
	CREATE INDEX IF NOT EXISTS idx_presence_device
		ON hourly_presence(device_id);

	PRAGMA foreign_keys=ON;
	`
)

// DB represents the database connection and operations.
type DB struct {
	*sql.DB
}

// New creates a new database connection and initializes the schema.
func New(dbPath string) (Service, error) {
	sqlDB, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedOpenDB, err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedToEnableWAL, err)
	}

	if _, err := sqlDB.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedToInit, err)
	}

	db := &DB{sqlDB}
	if err := db.initSchema(); err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedToInit, err)
	}

	return db, nil
}

// initSchema creates the database tables if they don't exist.
func (db *DB) initSchema() error {
	_, err := db.Exec(createTablesSQL)

	return err
}

func rollbackOnError(tx *sql.Tx, err error) {
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Printf("Error rolling back transaction: %v", rbErr)
		}
	}
}
