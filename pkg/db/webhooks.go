package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/unifitools/wifistalker/pkg/models"
)

const webhookColumns = `
	id, name, webhook_type, url,
	event_device_connected, event_device_disconnected, event_device_roamed,
	event_device_blocked, event_device_unblocked,
	enabled, created_at, last_triggered`

func scanWebhook(row scanner) (*models.WebhookConfig, error) {
	var (
		w         models.WebhookConfig
		triggered sql.NullTime
	)

	err := row.Scan(&w.ID, &w.Name, &w.Type, &w.URL,
		&w.EventDeviceConnected, &w.EventDeviceDisconnected, &w.EventDeviceRoamed,
		&w.EventDeviceBlocked, &w.EventDeviceUnblocked,
		&w.Enabled, &w.CreatedAt, &triggered)
	if err != nil {
		return nil, err
	}

	if triggered.Valid {
		t := triggered.Time
		w.LastTriggered = &t
	}

	return &w, nil
}

// CreateWebhook persists a new webhook configuration. Callers are expected
// to have validated the URL against the SSRF guard already.
func (db *DB) CreateWebhook(webhook *models.WebhookConfig) (*models.WebhookConfig, error) {
	createdAt := webhook.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	result, err := db.Exec(`
        INSERT INTO webhook_configs
            (name, webhook_type, url,
             event_device_connected, event_device_disconnected, event_device_roamed,
             event_device_blocked, event_device_unblocked, enabled, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, webhook.Name, webhook.Type, webhook.URL,
		webhook.EventDeviceConnected, webhook.EventDeviceDisconnected, webhook.EventDeviceRoamed,
		webhook.EventDeviceBlocked, webhook.EventDeviceUnblocked, webhook.Enabled, createdAt)
	if err != nil {
		return nil, fmt.Errorf("%w webhook: %w", errFailedToInsert, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w webhook id: %w", errFailedToInsert, err)
	}

	return db.GetWebhook(id)
}

func (db *DB) GetWebhook(id int64) (*models.WebhookConfig, error) {
	row := db.QueryRow(`SELECT `+webhookColumns+` FROM webhook_configs WHERE id = ?`, id)

	webhook, err := scanWebhook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWebhookNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("%w webhook: %w", errFailedToQuery, err)
	}

	return webhook, nil
}

func (db *DB) ListWebhooks() ([]models.WebhookConfig, error) {
	rows, err := db.Query(`SELECT ` + webhookColumns + ` FROM webhook_configs ORDER BY id`) //nolint:rowserrcheck // rows.Close() is deferred
	if err != nil {
		return nil, fmt.Errorf("%w webhooks: %w", errFailedToQuery, err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			log.Printf("failed to close rows: %v", err)
		}
	}(rows)

	var webhooks []models.WebhookConfig

	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("%w webhook row: %w", errFailedToScan, err)
		}

		webhooks = append(webhooks, *w)
	}

	return webhooks, nil
}

// UpdateWebhook replaces the mutable fields of an existing webhook.
func (db *DB) UpdateWebhook(webhook *models.WebhookConfig) error {
	result, err := db.Exec(`
        UPDATE webhook_configs
        SET name = ?, webhook_type = ?, url = ?,
            event_device_connected = ?, event_device_disconnected = ?, event_device_roamed = ?,
            event_device_blocked = ?, event_device_unblocked = ?, enabled = ?
        WHERE id = ?
    `, webhook.Name, webhook.Type, webhook.URL,
		webhook.EventDeviceConnected, webhook.EventDeviceDisconnected, webhook.EventDeviceRoamed,
		webhook.EventDeviceBlocked, webhook.EventDeviceUnblocked, webhook.Enabled, webhook.ID)
	if err != nil {
		return fmt.Errorf("%w webhook: %w", errFailedToUpdate, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w webhook: %w", errFailedToUpdate, err)
	}

	if affected == 0 {
		return ErrWebhookNotFound
	}

	return nil
}

func (db *DB) DeleteWebhook(id int64) error {
	result, err := db.Exec(`DELETE FROM webhook_configs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w webhook: %w", errFailedToDelete, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w webhook: %w", errFailedToDelete, err)
	}

	if affected == 0 {
		return ErrWebhookNotFound
	}

	return nil
}

// MarkWebhookTriggered records a confirmed successful delivery. It is the
// only field the delivery path is allowed to mutate.
func (db *DB) MarkWebhookTriggered(id int64, at time.Time) error {
	_, err := db.Exec(`UPDATE webhook_configs SET last_triggered = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("%w webhook trigger time: %w", errFailedToUpdate, err)
	}

	return nil
}
