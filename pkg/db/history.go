package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/unifitools/wifistalker/pkg/models"
)

type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

const historyColumns = `
	id, device_id, ap_mac, ap_name, ssid, is_wired,
	switch_mac, switch_name, switch_port, signal_strength,
	connected_at, disconnected_at, duration_seconds`

func scanHistory(row scanner) (*models.ConnectionHistory, error) {
	var (
		h            models.ConnectionHistory
		apMAC        sql.NullString
		apName       sql.NullString
		ssid         sql.NullString
		switchMAC    sql.NullString
		switchName   sql.NullString
		switchPort   sql.NullInt64
		signal       sql.NullInt64
		disconnected sql.NullTime
		duration     sql.NullInt64
	)

	err := row.Scan(&h.ID, &h.DeviceID, &apMAC, &apName, &ssid, &h.IsWired,
		&switchMAC, &switchName, &switchPort, &signal,
		&h.ConnectedAt, &disconnected, &duration)
	if err != nil {
		return nil, err
	}

	h.APMAC = apMAC.String
	h.APName = apName.String
	h.SSID = ssid.String
	h.SwitchMAC = switchMAC.String
	h.SwitchName = switchName.String
	h.SwitchPort = int(switchPort.Int64)

	if signal.Valid {
		s := int(signal.Int64)
		h.SignalStrength = &s
	}

	if disconnected.Valid {
		t := disconnected.Time
		h.DisconnectedAt = &t
	}

	if duration.Valid {
		d := duration.Int64
		h.DurationSecs = &d
	}

	return &h, nil
}

// insertSession opens a new history row for a freshly seen attachment.
func insertSession(tx execer, session *models.ConnectionHistory) error {
	var signal interface{}
	if session.SignalStrength != nil {
		signal = *session.SignalStrength
	}

	_, err := tx.Exec(`
        INSERT INTO connection_history
            (device_id, ap_mac, ap_name, ssid, is_wired,
             switch_mac, switch_name, switch_port, signal_strength, connected_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, session.DeviceID,
		nullable(session.APMAC), nullable(session.APName), nullable(session.SSID), session.IsWired,
		nullable(session.SwitchMAC), nullable(session.SwitchName), nullablePort(session.SwitchPort),
		signal, session.ConnectedAt.UTC())
	if err != nil {
		return fmt.Errorf("%w history: %w", errFailedToInsert, err)
	}

	return nil
}

// closeOpenSession closes the device's open history row at the given instant.
// duration_seconds is the floor of the elapsed wall-clock seconds; the whole
// and fractional parts are combined separately because strftime('%s')
// truncates, and the difference of two truncations can over-count a
// sub-second session that spans a second boundary. Closing a device with no
// open row is a no-op so the call is idempotent.
func closeOpenSession(tx execer, deviceID int64, at time.Time) error {
	_, err := tx.Exec(`
        UPDATE connection_history
        SET disconnected_at = ?,
            duration_seconds = CAST(
                strftime('%s', ?) - strftime('%s', connected_at)
                + (strftime('%f', ?) - strftime('%S', ?))
                - (strftime('%f', connected_at) - strftime('%S', connected_at))
            AS INTEGER)
        WHERE device_id = ? AND disconnected_at IS NULL
    `, at.UTC(), at.UTC(), at.UTC(), at.UTC(), deviceID)
	if err != nil {
		return fmt.Errorf("%w history close: %w", errFailedToUpdate, err)
	}

	return nil
}

// GetDeviceHistory returns the most recent sessions for a device.
func (db *DB) GetDeviceHistory(deviceID int64, limit int) ([]models.ConnectionHistory, error) {
	const querySQL = `
        SELECT ` + historyColumns + `
        FROM connection_history
        WHERE device_id = ?
        ORDER BY connected_at DESC
        LIMIT ?
    `

	rows, err := db.Query(querySQL, deviceID, limit) //nolint:rowserrcheck // rows.Close() is deferred
	if err != nil {
		return nil, fmt.Errorf("%w history: %w", errFailedToQuery, err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			log.Printf("failed to close rows: %v", err)
		}
	}(rows)

	var history []models.ConnectionHistory

	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("%w history row: %w", errFailedToScan, err)
		}

		history = append(history, *h)
	}

	return history, nil
}

// GetOpenSession returns the device's open session, or nil when the device
// has none.
func (db *DB) GetOpenSession(deviceID int64) (*models.ConnectionHistory, error) {
	row := db.QueryRow(`
        SELECT `+historyColumns+`
        FROM connection_history
        WHERE device_id = ? AND disconnected_at IS NULL
    `, deviceID)

	session, err := scanHistory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("%w open session: %w", errFailedToQuery, err)
	}

	return session, nil
}

// RecoverOrphanSessions closes history rows left open by a crash. Any open
// session whose device was last seen before the cutoff is closed at that
// last_seen, and the device is marked disconnected with its attachment
// cleared. Returns the number of devices recovered.
func (db *DB) RecoverOrphanSessions(cutoff time.Time) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", errFailedToBeginTx, err)
	}

	var committed bool
	defer func() {
		if !committed {
			rollbackOnError(tx, err)
		}
	}()

	rows, err := tx.Query(`
        SELECT d.id, d.last_seen
        FROM tracked_devices d
        JOIN connection_history h ON h.device_id = d.id
        WHERE h.disconnected_at IS NULL
          AND d.last_seen IS NOT NULL
          AND d.last_seen < ?
    `, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("%w orphan sessions: %w", errFailedToQuery, err)
	}

	type orphan struct {
		deviceID int64
		lastSeen time.Time
	}

	var orphans []orphan

	for rows.Next() {
		var o orphan
		if err = rows.Scan(&o.deviceID, &o.lastSeen); err != nil {
			CloseRows(rows)
			return 0, fmt.Errorf("%w orphan row: %w", errFailedToScan, err)
		}

		orphans = append(orphans, o)
	}

	CloseRows(rows)

	for _, o := range orphans {
		if err = closeOpenSession(tx, o.deviceID, o.lastSeen); err != nil {
			return 0, err
		}

		// The real disconnect time is unknowable; last_seen is the most
		// conservative guess.
		if _, err = tx.Exec(`
            UPDATE tracked_devices
            SET is_connected = 0,
                current_ap_mac = NULL, current_ap_name = NULL, current_ssid = NULL,
                current_switch_mac = NULL, current_switch_name = NULL, current_switch_port = NULL,
                current_signal_strength = NULL
            WHERE id = ?
        `, o.deviceID); err != nil {
			return 0, fmt.Errorf("%w orphan device: %w", errFailedToUpdate, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit orphan recovery: %w", err)
	}

	committed = true

	return len(orphans), nil
}

// CloseRows safely closes a Rows and logs any error.
func CloseRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		log.Printf("failed to close rows: %v", err)
	}
}
