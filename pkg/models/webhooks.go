package models

import "time"

// WebhookType identifies the payload format a webhook expects.
type WebhookType string

const (
	WebhookSlack   WebhookType = "slack"
	WebhookDiscord WebhookType = "discord"
	WebhookN8N     WebhookType = "n8n"
)

// Valid reports whether t is one of the supported webhook types.
func (t WebhookType) Valid() bool {
	switch t {
	case WebhookSlack, WebhookDiscord, WebhookN8N:
		return true
	default:
		return false
	}
}

// WebhookConfig is a stored notification target. URLs are validated against
// the SSRF guard before a config is persisted and again before each delivery.
type WebhookConfig struct {
	ID                      int64       `json:"id"`
	Name                    string      `json:"name"`
	Type                    WebhookType `json:"webhook_type"`
	URL                     string      `json:"url"`
	EventDeviceConnected    bool        `json:"event_device_connected"`
	EventDeviceDisconnected bool        `json:"event_device_disconnected"`
	EventDeviceRoamed       bool        `json:"event_device_roamed"`
	EventDeviceBlocked      bool        `json:"event_device_blocked"`
	EventDeviceUnblocked    bool        `json:"event_device_unblocked"`
	Enabled                 bool        `json:"enabled"`
	CreatedAt               time.Time   `json:"created_at"`
	LastTriggered           *time.Time  `json:"last_triggered,omitempty"`
}

// WantsEvent reports whether this webhook's trigger flags select the
// given event type.
func (w *WebhookConfig) WantsEvent(t EventType) bool {
	switch t {
	case EventConnected:
		return w.EventDeviceConnected
	case EventDisconnected:
		return w.EventDeviceDisconnected
	case EventRoamed:
		return w.EventDeviceRoamed
	case EventBlocked:
		return w.EventDeviceBlocked
	case EventUnblocked:
		return w.EventDeviceUnblocked
	default:
		return false
	}
}
