package models

import "time"

// EventType classifies what a reconciliation cycle decided about a device.
type EventType string

const (
	EventConnected    EventType = "connected"
	EventDisconnected EventType = "disconnected"
	EventRoamed       EventType = "roamed"
	EventBlocked      EventType = "blocked"
	EventUnblocked    EventType = "unblocked"
)

// TransitionEvent is emitted by the reconciler whenever a device changes
// state, and consumed by the notification dispatcher and the live feed.
type TransitionEvent struct {
	Type           EventType `json:"event_type"`
	DeviceID       int64     `json:"device_id"`
	DeviceName     string    `json:"device_name"`
	DeviceMAC      string    `json:"device_mac"`
	AttachmentName string    `json:"attachment_name,omitempty"`
	SignalStrength *int      `json:"signal_strength,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
