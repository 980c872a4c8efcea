package stalker

import (
	"time"

	"github.com/unifitools/wifistalker/pkg/db"
	"github.com/unifitools/wifistalker/pkg/models"
)

// reconcileDevice compares one tracked device against its snapshot entry
// (nil when absent) and decides what, if anything, to commit. A nil
// update means the cycle touches nothing for this device.
func (s *Server) reconcileDevice(device *models.TrackedDevice, snap *models.ClientSnapshot, now time.Time) (*db.DeviceUpdate, *models.TransitionEvent) {
	switch {
	case snap != nil && !device.IsConnected:
		return s.connect(device, snap, now)
	case snap != nil && device.IsConnected:
		if attachmentChanged(device, snap) {
			return s.roam(device, snap, now)
		}

		return s.touch(device, snap, now), nil
	case snap == nil && device.IsConnected:
		return s.disconnect(device, now)
	default:
		// Absent and already disconnected; nothing to write.
		return nil, nil
	}
}

// attachmentChanged reports whether the device moved to a different AP,
// switch, or switch port, or changed between wired and wireless.
func attachmentChanged(device *models.TrackedDevice, snap *models.ClientSnapshot) bool {
	if device.IsWired != snap.IsWired {
		return true
	}

	if snap.IsWired {
		return device.CurrentSwitchMAC != snap.SwitchMAC ||
			device.CurrentSwitchPort != snap.SwitchPort
	}

	return device.CurrentAPMAC != snap.APMAC
}

func (s *Server) connect(device *models.TrackedDevice, snap *models.ClientSnapshot, now time.Time) (*db.DeviceUpdate, *models.TransitionEvent) {
	applySnapshot(device, snap, now)

	update := &db.DeviceUpdate{
		Device:      device,
		OpenSession: sessionFromSnapshot(device.ID, snap, now),
		PresenceAt:  now,
	}

	return update, s.event(models.EventConnected, device, now)
}

// touch refreshes a connected device's volatile fields and credits the
// elapsed interval to the presence heat map. No event is emitted.
func (s *Server) touch(device *models.TrackedDevice, snap *models.ClientSnapshot, now time.Time) *db.DeviceUpdate {
	prevSeen := device.LastSeen
	applySnapshot(device, snap, now)

	update := &db.DeviceUpdate{
		Device:     device,
		PresenceAt: now,
	}

	if prevSeen != nil {
		update.Presence = presenceSamples(*prevSeen, now)
	}

	return update
}

// roam closes the current session and opens a new one in the same
// transaction. The interval leading up to the roam still counts as
// presence: the device was connected the whole time.
func (s *Server) roam(device *models.TrackedDevice, snap *models.ClientSnapshot, now time.Time) (*db.DeviceUpdate, *models.TransitionEvent) {
	prevSeen := device.LastSeen
	applySnapshot(device, snap, now)

	closeAt := now
	update := &db.DeviceUpdate{
		Device:         device,
		CloseSessionAt: &closeAt,
		OpenSession:    sessionFromSnapshot(device.ID, snap, now),
		PresenceAt:     now,
	}

	if prevSeen != nil {
		update.Presence = presenceSamples(*prevSeen, now)
	}

	return update, s.event(models.EventRoamed, device, now)
}

// disconnect marks the device offline and closes its session. With a
// grace period configured, a device is left untouched until it has been
// unseen longer than the grace; a reappearance in the meantime cancels
// the disconnect entirely.
func (s *Server) disconnect(device *models.TrackedDevice, now time.Time) (*db.DeviceUpdate, *models.TransitionEvent) {
	grace := time.Duration(s.config.DisconnectGrace)
	if grace > 0 && device.LastSeen != nil && now.Sub(*device.LastSeen) < grace {
		return nil, nil
	}

	// The event carries the attachment the device disconnected from.
	event := s.event(models.EventDisconnected, device, now)

	device.IsConnected = false
	clearAttachment(device)

	closeAt := now

	return &db.DeviceUpdate{
		Device:         device,
		CloseSessionAt: &closeAt,
		PresenceAt:     now,
	}, event
}

func (s *Server) event(eventType models.EventType, device *models.TrackedDevice, now time.Time) *models.TransitionEvent {
	return &models.TransitionEvent{
		Type:           eventType,
		DeviceID:       device.ID,
		DeviceName:     device.FriendlyName,
		DeviceMAC:      device.MACAddress,
		AttachmentName: device.AttachmentName(),
		SignalStrength: device.CurrentSignalStrength,
		Timestamp:      now,
	}
}

// applySnapshot copies the controller-reported attachment onto the
// device row and stamps last_seen.
func applySnapshot(device *models.TrackedDevice, snap *models.ClientSnapshot, now time.Time) {
	seen := now
	device.LastSeen = &seen
	device.IsConnected = true
	device.IsWired = snap.IsWired
	device.CurrentIPAddress = snap.IP

	if snap.IsWired {
		device.CurrentAPMAC = ""
		device.CurrentAPName = ""
		device.CurrentSSID = ""
		device.CurrentSignalStrength = nil
		device.CurrentSwitchMAC = snap.SwitchMAC
		device.CurrentSwitchName = snap.SwitchName
		device.CurrentSwitchPort = snap.SwitchPort

		return
	}

	device.CurrentAPMAC = snap.APMAC
	device.CurrentAPName = snap.APName
	device.CurrentSSID = snap.SSID
	device.CurrentSignalStrength = snap.SignalStrength
	device.CurrentSwitchMAC = ""
	device.CurrentSwitchName = ""
	device.CurrentSwitchPort = 0
}

func clearAttachment(device *models.TrackedDevice) {
	device.CurrentAPMAC = ""
	device.CurrentAPName = ""
	device.CurrentSSID = ""
	device.CurrentSignalStrength = nil
	device.CurrentSwitchMAC = ""
	device.CurrentSwitchName = ""
	device.CurrentSwitchPort = 0
	device.CurrentIPAddress = ""
}

func sessionFromSnapshot(deviceID int64, snap *models.ClientSnapshot, now time.Time) *models.ConnectionHistory {
	session := &models.ConnectionHistory{
		DeviceID:    deviceID,
		IsWired:     snap.IsWired,
		ConnectedAt: now,
	}

	if snap.IsWired {
		session.SwitchMAC = snap.SwitchMAC
		session.SwitchName = snap.SwitchName
		session.SwitchPort = snap.SwitchPort
	} else {
		session.APMAC = snap.APMAC
		session.APName = snap.APName
		session.SSID = snap.SSID
		session.SignalStrength = snap.SignalStrength
	}

	return session
}
