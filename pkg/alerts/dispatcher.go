package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/unifitools/wifistalker/pkg/db"
	"github.com/unifitools/wifistalker/pkg/models"
)

var (
	errUnknownWebhookType = errors.New("unknown webhook type")
	errUnsafeWebhookURL   = errors.New("webhook URL failed validation")
	errWebhookStatus      = errors.New("webhook returned non-success status")
)

const (
	deliveryTimeout = 10 * time.Second

	// defaultEventBuffer bounds the queue between the reconciler and the
	// dispatcher; the poll loop never blocks on notifications.
	defaultEventBuffer = 64

	// Outbound deliveries per second across all webhooks.
	defaultDeliveryRate  = 5
	defaultDeliveryBurst = 10
)

// urlChecker is the slice of the URL validator the dispatcher needs.
// Tests substitute a permissive one so deliveries can target loopback
// fixtures, which the real literal-IP check would refuse.
type urlChecker interface {
	Validate(rawURL string) (bool, string)
}

// Dispatcher fans transition events out to every webhook whose trigger
// flags match. Deliveries run concurrently, each bounded by its own
// timeout, and never feed errors back into the polling pipeline.
type Dispatcher struct {
	db        db.Service
	client    *http.Client
	validator urlChecker
	limiter   *rate.Limiter
	events    chan *models.TransitionEvent
}

func NewDispatcher(database db.Service) *Dispatcher {
	return &Dispatcher{
		db: database,
		client: &http.Client{
			Timeout: deliveryTimeout,
		},
		validator: NewURLValidator(),
		limiter:   rate.NewLimiter(rate.Limit(defaultDeliveryRate), defaultDeliveryBurst),
		events:    make(chan *models.TransitionEvent, defaultEventBuffer),
	}
}

// Dispatch enqueues an event for delivery. If the queue is full the event
// is dropped with a log line; notifications are best-effort by design.
func (d *Dispatcher) Dispatch(event *models.TransitionEvent) {
	select {
	case d.events <- event:
	default:
		log.Printf("Notification queue full, dropping %s event for %s", event.Type, event.DeviceMAC)
	}
}

// Start consumes the event queue until the context is canceled.
func (d *Dispatcher) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-d.events:
			d.dispatchEvent(event)
		}
	}
}

// dispatchEvent matches one event against the stored webhook configs and
// spawns a delivery per match.
func (d *Dispatcher) dispatchEvent(event *models.TransitionEvent) {
	webhooks, err := d.db.ListWebhooks()
	if err != nil {
		log.Printf("Failed to load webhooks for %s event: %v", event.Type, err)
		return
	}

	for i := range webhooks {
		webhook := webhooks[i]

		if !webhook.Enabled || !webhook.WantsEvent(event.Type) {
			continue
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
			defer cancel()

			if err := d.limiter.Wait(ctx); err != nil {
				log.Printf("Webhook '%s' delivery rate limited out: %v", webhook.Name, err)
				return
			}

			if err := d.Deliver(ctx, &webhook, event); err != nil {
				// Failures are logged and dropped; the webhook stays
				// enabled and last_triggered is untouched.
				log.Printf("Webhook '%s' delivery failed: %v", webhook.Name, err)
			}
		}()
	}
}

// Deliver validates the stored URL, builds the provider payload and posts
// it. Success means HTTP 200 or 204; only then is last_triggered updated.
// The URL is re-checked here, not just at config time, so a DNS record
// rebound to an internal address since creation still gets refused.
func (d *Dispatcher) Deliver(ctx context.Context, webhook *models.WebhookConfig, event *models.TransitionEvent) error {
	if ok, reason := d.validator.Validate(webhook.URL); !ok {
		return fmt.Errorf("%w: %s", errUnsafeWebhookURL, reason)
	}

	payload, err := BuildPayload(webhook.Type, event)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req) //nolint:bodyclose // Response body is closed later
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			log.Printf("failed to close response body: %v", err)
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return fmt.Errorf("%w: status=%d body=%s", errWebhookStatus, resp.StatusCode, respBody)
	}

	if err := d.db.MarkWebhookTriggered(webhook.ID, time.Now().UTC()); err != nil {
		log.Printf("Delivered to webhook '%s' but failed to record trigger time: %v", webhook.Name, err)
	}

	log.Printf("Webhook delivered to %s: %s for %s", webhook.Type, event.Type, event.DeviceName)

	return nil
}
