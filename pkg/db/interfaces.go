// Package db pkg/db/interfaces.go
package db

import (
	"time"

	"github.com/unifitools/wifistalker/pkg/models"
)

//go:generate mockgen -destination=mock_db.go -package=db github.com/unifitools/wifistalker/pkg/db Service

// DeviceUpdate is everything one reconciliation cycle decided for a single
// device. ApplyDeviceUpdate commits all of it in one transaction so a crash
// can never leave the device row and its session history disagreeing.
type DeviceUpdate struct {
	Device *models.TrackedDevice

	// CloseSessionAt, when non-nil, closes the device's open history row at
	// that instant and computes duration_seconds.
	CloseSessionAt *time.Time

	// OpenSession, when non-nil, inserts a new open history row.
	OpenSession *models.ConnectionHistory

	// Presence contributions for the hour slots this cycle touched.
	Presence []models.PresenceSample

	// PresenceAt stamps last_updated on the touched slots.
	PresenceAt time.Time
}

// Service represents all database operations.
type Service interface {
	Close() error

	// Device operations.

	AddDevice(device *models.TrackedDevice) (*models.TrackedDevice, error)
	GetDevice(id int64) (*models.TrackedDevice, error)
	GetDeviceByMAC(mac string) (*models.TrackedDevice, error)
	ListDevices(siteID string) ([]models.TrackedDevice, error)
	DeleteDevice(id int64) error
	SetDeviceBlocked(id int64, blocked bool) error

	// Reconciliation.

	ApplyDeviceUpdate(update *DeviceUpdate) error
	RecoverOrphanSessions(cutoff time.Time) (int, error)

	// History and presence queries.

	GetDeviceHistory(deviceID int64, limit int) ([]models.ConnectionHistory, error)
	GetOpenSession(deviceID int64) (*models.ConnectionHistory, error)
	GetDevicePresence(deviceID int64) ([]models.HourlyPresence, error)

	// Webhook operations.

	CreateWebhook(webhook *models.WebhookConfig) (*models.WebhookConfig, error)
	GetWebhook(id int64) (*models.WebhookConfig, error)
	ListWebhooks() ([]models.WebhookConfig, error)
	UpdateWebhook(webhook *models.WebhookConfig) error
	DeleteWebhook(id int64) error
	MarkWebhookTriggered(id int64, at time.Time) error
}
