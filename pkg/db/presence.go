package db

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/unifitools/wifistalker/pkg/models"
)

// upsertPresence adds one cycle's minutes to a device's hour slot. The
// read-modify-write happens inside the UPDATE itself so overlapping writers
// can never double count, and the slot total is clamped at 60 minutes.
func upsertPresence(tx execer, deviceID int64, sample *models.PresenceSample, at time.Time) error {
	_, err := tx.Exec(`
        INSERT INTO hourly_presence
            (device_id, day_of_week, hour_of_day, total_minutes_connected, sample_count, last_updated)
        VALUES (?, ?, ?, MIN(60.0, ?), 1, ?)
        ON CONFLICT(device_id, day_of_week, hour_of_day) DO UPDATE SET
            total_minutes_connected = MIN(60.0, total_minutes_connected + excluded.total_minutes_connected),
            sample_count = sample_count + 1,
            last_updated = excluded.last_updated
    `, deviceID, sample.DayOfWeek, sample.HourOfDay, sample.Minutes, at.UTC())
	if err != nil {
		return fmt.Errorf("%w presence: %w", errFailedToInsert, err)
	}

	return nil
}

// GetDevicePresence returns all populated hour slots for a device, ordered
// by day then hour.
func (db *DB) GetDevicePresence(deviceID int64) ([]models.HourlyPresence, error) {
	const querySQL = `
        SELECT id, device_id, day_of_week, hour_of_day,
               total_minutes_connected, sample_count, last_updated
        FROM hourly_presence
        WHERE device_id = ?
        ORDER BY day_of_week, hour_of_day
    `

	rows, err := db.Query(querySQL, deviceID) //nolint:rowserrcheck // rows.Close() is deferred
	if err != nil {
		return nil, fmt.Errorf("%w presence: %w", errFailedToQuery, err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			log.Printf("failed to close rows: %v", err)
		}
	}(rows)

	var slots []models.HourlyPresence

	for rows.Next() {
		var (
			p       models.HourlyPresence
			updated sql.NullTime
		)

		if err := rows.Scan(&p.ID, &p.DeviceID, &p.DayOfWeek, &p.HourOfDay,
			&p.TotalMinutesConnected, &p.SampleCount, &updated); err != nil {
			return nil, fmt.Errorf("%w presence row: %w", errFailedToScan, err)
		}

		if updated.Valid {
			t := updated.Time
			p.LastUpdated = &t
		}

		slots = append(slots, p)
	}

	return slots, nil
}
