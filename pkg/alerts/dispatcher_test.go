package alerts

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifitools/wifistalker/pkg/db"
	"github.com/unifitools/wifistalker/pkg/models"
)

// allowAllValidator accepts every URL. The real validator's literal-IP
// check would refuse the loopback addresses httptest servers listen on,
// before the resolver is ever consulted.
type allowAllValidator struct{}

func (allowAllValidator) Validate(string) (bool, string) { return true, "" }

func newTestDispatcher(t *testing.T) (*Dispatcher, db.Service) {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "alerts.db"))
	require.NoError(t, err)

	t.Cleanup(func() { _ = database.Close() })

	dispatcher := NewDispatcher(database)
	dispatcher.validator = allowAllValidator{}

	return dispatcher, database
}

func hookServer(t *testing.T, status int, hits *atomic.Int64) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)

	return server
}

func TestDeliverSuccessUpdatesLastTriggered(t *testing.T) {
	dispatcher, database := newTestDispatcher(t)

	var hits atomic.Int64
	server := hookServer(t, http.StatusOK, &hits)

	webhook, err := database.CreateWebhook(&models.WebhookConfig{
		Name:    "ops",
		Type:    models.WebhookN8N,
		URL:     server.URL,
		Enabled: true,
	})
	require.NoError(t, err)

	err = dispatcher.Deliver(context.Background(), webhook, testEvent(models.EventConnected))
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load())

	stored, err := database.GetWebhook(webhook.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastTriggered)
}

func TestDeliverFailureLeavesLastTriggeredUnset(t *testing.T) {
	dispatcher, database := newTestDispatcher(t)

	var hits atomic.Int64
	server := hookServer(t, http.StatusInternalServerError, &hits)

	webhook, err := database.CreateWebhook(&models.WebhookConfig{
		Name:    "ops",
		Type:    models.WebhookSlack,
		URL:     server.URL,
		Enabled: true,
	})
	require.NoError(t, err)

	err = dispatcher.Deliver(context.Background(), webhook, testEvent(models.EventConnected))
	assert.ErrorIs(t, err, errWebhookStatus)
	assert.Equal(t, int64(1), hits.Load())

	stored, err := database.GetWebhook(webhook.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.LastTriggered)
}

func TestDeliverRefusesUnsafeURL(t *testing.T) {
	dispatcher, database := newTestDispatcher(t)

	// Simulate a DNS record that has been rebound to the metadata address
	// since the webhook was created.
	dispatcher.validator = &URLValidator{resolve: func(string) ([]string, error) {
		return []string{"169.254.169.254"}, nil
	}}

	webhook, err := database.CreateWebhook(&models.WebhookConfig{
		Name:    "rebound",
		Type:    models.WebhookN8N,
		URL:     "https://rebound.example/hook",
		Enabled: true,
	})
	require.NoError(t, err)

	err = dispatcher.Deliver(context.Background(), webhook, testEvent(models.EventConnected))
	assert.ErrorIs(t, err, errUnsafeWebhookURL)

	// The webhook stays enabled; only delivery was skipped.
	stored, err := database.GetWebhook(webhook.ID)
	require.NoError(t, err)
	assert.True(t, stored.Enabled)
	assert.Nil(t, stored.LastTriggered)
}

func TestDeliverRefusesLoopbackLiteral(t *testing.T) {
	dispatcher, database := newTestDispatcher(t)

	// With the real validator the literal-IP path rejects loopback
	// before the resolver or the network is touched.
	dispatcher.validator = NewURLValidator()

	var hits atomic.Int64
	server := hookServer(t, http.StatusOK, &hits)

	webhook, err := database.CreateWebhook(&models.WebhookConfig{
		Name:    "local",
		Type:    models.WebhookN8N,
		URL:     server.URL,
		Enabled: true,
	})
	require.NoError(t, err)

	err = dispatcher.Deliver(context.Background(), webhook, testEvent(models.EventConnected))
	assert.ErrorIs(t, err, errUnsafeWebhookURL)
	assert.Zero(t, hits.Load())
}

func TestDispatchSelectivity(t *testing.T) {
	dispatcher, database := newTestDispatcher(t)

	var wanted, unwanted, disabled atomic.Int64
	wantedServer := hookServer(t, http.StatusNoContent, &wanted)
	unwantedServer := hookServer(t, http.StatusNoContent, &unwanted)
	disabledServer := hookServer(t, http.StatusNoContent, &disabled)

	for _, cfg := range []*models.WebhookConfig{
		{Name: "wants disconnects", Type: models.WebhookN8N, URL: wantedServer.URL,
			EventDeviceDisconnected: true, Enabled: true},
		{Name: "connects only", Type: models.WebhookN8N, URL: unwantedServer.URL,
			EventDeviceConnected: true, Enabled: true},
		{Name: "disabled", Type: models.WebhookN8N, URL: disabledServer.URL,
			EventDeviceDisconnected: true, Enabled: false},
	} {
		_, err := database.CreateWebhook(cfg)
		require.NoError(t, err)
	}

	dispatcher.dispatchEvent(testEvent(models.EventDisconnected))

	assert.Eventually(t, func() bool {
		return wanted.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Give stray deliveries a moment to show up before asserting absence.
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, unwanted.Load())
	assert.Zero(t, disabled.Load())
}

func TestDeliverTimeout(t *testing.T) {
	dispatcher, database := newTestDispatcher(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server can observe the client disconnect;
		// with an unread body the request context is never canceled and
		// server.Close in cleanup would wait on this handler forever.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)

	webhook, err := database.CreateWebhook(&models.WebhookConfig{
		Name:    "slow",
		Type:    models.WebhookN8N,
		URL:     server.URL,
		Enabled: true,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = dispatcher.Deliver(ctx, webhook, testEvent(models.EventConnected))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	stored, err := database.GetWebhook(webhook.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.LastTriggered)
}
