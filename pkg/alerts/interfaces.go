// Package alerts pkg/alerts/interfaces.go

//go:generate mockgen -destination=mock_alerts.go -package=alerts github.com/unifitools/wifistalker/pkg/alerts Service

package alerts

import (
	"context"

	"github.com/unifitools/wifistalker/pkg/models"
)

// Service is the notification surface the reconciler and the HTTP API talk
// to.
type Service interface {
	// Dispatch hands an event to the dispatcher without blocking the
	// caller. Delivery is best-effort, at most once per webhook.
	Dispatch(event *models.TransitionEvent)

	// Deliver validates, formats and posts one event to one webhook
	// synchronously. Used by the manual test-webhook path.
	Deliver(ctx context.Context, webhook *models.WebhookConfig, event *models.TransitionEvent) error
}
