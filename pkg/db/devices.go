package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/unifitools/wifistalker/pkg/models"
)

const deviceColumns = `
	id, mac_address, friendly_name, site_id, added_at, last_seen,
	is_connected, is_wired, is_blocked,
	current_ap_mac, current_ap_name, current_ssid,
	current_switch_mac, current_switch_name, current_switch_port,
	current_ip_address, current_signal_strength`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDevice(row scanner) (*models.TrackedDevice, error) {
	var (
		d          models.TrackedDevice
		name       sql.NullString
		lastSeen   sql.NullTime
		apMAC      sql.NullString
		apName     sql.NullString
		ssid       sql.NullString
		switchMAC  sql.NullString
		switchName sql.NullString
		switchPort sql.NullInt64
		ip         sql.NullString
		signal     sql.NullInt64
	)

	err := row.Scan(&d.ID, &d.MACAddress, &name, &d.SiteID, &d.AddedAt, &lastSeen,
		&d.IsConnected, &d.IsWired, &d.IsBlocked,
		&apMAC, &apName, &ssid, &switchMAC, &switchName, &switchPort, &ip, &signal)
	if err != nil {
		return nil, err
	}

	d.FriendlyName = name.String
	d.CurrentAPMAC = apMAC.String
	d.CurrentAPName = apName.String
	d.CurrentSSID = ssid.String
	d.CurrentSwitchMAC = switchMAC.String
	d.CurrentSwitchName = switchName.String
	d.CurrentSwitchPort = int(switchPort.Int64)
	d.CurrentIPAddress = ip.String

	if lastSeen.Valid {
		t := lastSeen.Time
		d.LastSeen = &t
	}

	if signal.Valid {
		s := int(signal.Int64)
		d.CurrentSignalStrength = &s
	}

	return &d, nil
}

// nullable turns the empty string into NULL for insert parameters.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}

	return s
}

// AddDevice registers a new MAC for tracking. The MAC is stored normalized
// to lower case so snapshot lookups are case-insensitive.
func (db *DB) AddDevice(device *models.TrackedDevice) (*models.TrackedDevice, error) {
	mac := strings.ToLower(device.MACAddress)

	addedAt := device.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now().UTC()
	}

	result, err := db.Exec(`
        INSERT INTO tracked_devices (mac_address, friendly_name, site_id, added_at)
        VALUES (?, ?, ?, ?)
    `, mac, nullable(device.FriendlyName), device.SiteID, addedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrDeviceExists
		}

		return nil, fmt.Errorf("%w device: %w", errFailedToInsert, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w device id: %w", errFailedToInsert, err)
	}

	return db.GetDevice(id)
}

func (db *DB) GetDevice(id int64) (*models.TrackedDevice, error) {
	row := db.QueryRow(`SELECT `+deviceColumns+` FROM tracked_devices WHERE id = ?`, id)

	device, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("%w device: %w", errFailedToQuery, err)
	}

	return device, nil
}

func (db *DB) GetDeviceByMAC(mac string) (*models.TrackedDevice, error) {
	row := db.QueryRow(`SELECT `+deviceColumns+` FROM tracked_devices WHERE mac_address = ?`,
		strings.ToLower(mac))

	device, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("%w device: %w", errFailedToQuery, err)
	}

	return device, nil
}

// ListDevices returns all tracked devices, optionally filtered by site.
func (db *DB) ListDevices(siteID string) ([]models.TrackedDevice, error) {
	query := `SELECT ` + deviceColumns + ` FROM tracked_devices`
	args := make([]interface{}, 0, 1)

	if siteID != "" {
		query += ` WHERE site_id = ?`
		args = append(args, siteID)
	}

	query += ` ORDER BY mac_address`

	rows, err := db.Query(query, args...) //nolint:rowserrcheck // rows.Close() is deferred
	if err != nil {
		return nil, fmt.Errorf("%w devices: %w", errFailedToQuery, err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			log.Printf("failed to close rows: %v", err)
		}
	}(rows)

	var devices []models.TrackedDevice

	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("%w device row: %w", errFailedToScan, err)
		}

		devices = append(devices, *device)
	}

	return devices, nil
}

// DeleteDevice removes a device together with its history and presence rows.
// The cleanup runs in the same transaction as the parent delete.
func (db *DB) DeleteDevice(id int64) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %w", errFailedToBeginTx, err)
	}

	var committed bool
	defer func() {
		if !committed {
			rollbackOnError(tx, err)
		}
	}()

	if _, err = tx.Exec(`DELETE FROM connection_history WHERE device_id = ?`, id); err != nil {
		return fmt.Errorf("%w history: %w", errFailedToDelete, err)
	}

	if _, err = tx.Exec(`DELETE FROM hourly_presence WHERE device_id = ?`, id); err != nil {
		return fmt.Errorf("%w presence: %w", errFailedToDelete, err)
	}

	result, err := tx.Exec(`DELETE FROM tracked_devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w device: %w", errFailedToDelete, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w device: %w", errFailedToDelete, err)
	}

	if affected == 0 {
		err = ErrDeviceNotFound
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit device delete: %w", err)
	}

	committed = true

	return nil
}

func (db *DB) SetDeviceBlocked(id int64, blocked bool) error {
	result, err := db.Exec(`UPDATE tracked_devices SET is_blocked = ? WHERE id = ?`, blocked, id)
	if err != nil {
		return fmt.Errorf("%w device: %w", errFailedToUpdate, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w device: %w", errFailedToUpdate, err)
	}

	if affected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}
