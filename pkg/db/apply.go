package db

import (
	"fmt"

	"github.com/unifitools/wifistalker/pkg/models"
)

// ApplyDeviceUpdate commits one device's reconciliation outcome: the device
// row, any session close/open, and the cycle's presence contributions, all
// in a single transaction.
func (db *DB) ApplyDeviceUpdate(update *DeviceUpdate) error {
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

	if update.CloseSessionAt != nil {
		if err = closeOpenSession(tx, update.Device.ID, *update.CloseSessionAt); err != nil {
			return err
		}
	}

	if update.OpenSession != nil {
		if err = insertSession(tx, update.OpenSession); err != nil {
			return err
		}
	}

	if err = updateDeviceRow(tx, update.Device); err != nil {
		return err
	}

	for i := range update.Presence {
		if err = upsertPresence(tx, update.Device.ID, &update.Presence[i], update.PresenceAt); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit device update: %w", err)
	}

	committed = true

	return nil
}

func updateDeviceRow(tx execer, device *models.TrackedDevice) error {
	var signal interface{}
	if device.CurrentSignalStrength != nil {
		signal = *device.CurrentSignalStrength
	}

	var lastSeen interface{}
	if device.LastSeen != nil {
		lastSeen = device.LastSeen.UTC()
	}

	_, err := tx.Exec(`
        UPDATE tracked_devices
        SET last_seen = ?,
            is_connected = ?,
            is_wired = ?,
            current_ap_mac = ?,
            current_ap_name = ?,
            current_ssid = ?,
            current_switch_mac = ?,
            current_switch_name = ?,
            current_switch_port = ?,
            current_ip_address = ?,
            current_signal_strength = ?
        WHERE id = ?
    `, lastSeen, device.IsConnected, device.IsWired,
		nullable(device.CurrentAPMAC), nullable(device.CurrentAPName), nullable(device.CurrentSSID),
		nullable(device.CurrentSwitchMAC), nullable(device.CurrentSwitchName), nullablePort(device.CurrentSwitchPort),
		nullable(device.CurrentIPAddress), signal, device.ID)
	if err != nil {
		return fmt.Errorf("%w device: %w", errFailedToUpdate, err)
	}

	return nil
}

func nullablePort(port int) interface{} {
	if port == 0 {
		return nil
	}

	return port
}
