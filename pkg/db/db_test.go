package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifitools/wifistalker/pkg/models"
)

func newTestDB(t *testing.T) Service {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "stalker.db")

	database, err := New(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

func addTestDevice(t *testing.T, database Service, mac string) *models.TrackedDevice {
	t.Helper()

	device, err := database.AddDevice(&models.TrackedDevice{
		MACAddress:   mac,
		FriendlyName: "Test Device",
		SiteID:       "default",
	})
	require.NoError(t, err)

	return device
}

func intPtr(v int) *int { return &v }

func TestAddDevice(t *testing.T) {
	database := newTestDB(t)

	device := addTestDevice(t, database, "AA:BB:CC:DD:EE:FF")
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", device.MACAddress)
	assert.False(t, device.IsConnected)
	assert.Nil(t, device.LastSeen)

	// MAC is unique regardless of case
	_, err := database.AddDevice(&models.TrackedDevice{
		MACAddress: "aa:bb:cc:dd:ee:ff",
		SiteID:     "default",
	})
	assert.ErrorIs(t, err, ErrDeviceExists)

	byMAC, err := database.GetDeviceByMAC("AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	assert.Equal(t, device.ID, byMAC.ID)
}

func TestGetDeviceNotFound(t *testing.T) {
	database := newTestDB(t)

	_, err := database.GetDevice(42)
	assert.ErrorIs(t, err, ErrDeviceNotFound)

	_, err = database.GetDeviceByMAC("00:00:00:00:00:01")
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestSessionDurationFloorsSubSecond(t *testing.T) {
	database := newTestDB(t)
	device := addTestDevice(t, database, "aa:bb:cc:dd:ee:fd")

	// 900ms session straddling a second boundary; naive epoch-truncation
	// arithmetic would record 1s instead of 0.
	t0 := time.Date(2026, 3, 2, 10, 0, 0, 600_000_000, time.UTC)
	t1 := t0.Add(900 * time.Millisecond)

	device.IsConnected = true
	device.CurrentAPMAC = "11:22:33:44:55:66"
	device.LastSeen = &t0

	err := database.ApplyDeviceUpdate(&DeviceUpdate{
		Device: device,
		OpenSession: &models.ConnectionHistory{
			DeviceID:    device.ID,
			APMAC:       "11:22:33:44:55:66",
			ConnectedAt: t0,
		},
	})
	require.NoError(t, err)

	device.IsConnected = false
	device.CurrentAPMAC = ""

	err = database.ApplyDeviceUpdate(&DeviceUpdate{
		Device:         device,
		CloseSessionAt: &t1,
	})
	require.NoError(t, err)

	history, err := database.GetDeviceHistory(device.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].DurationSecs)
	assert.Equal(t, int64(0), *history[0].DurationSecs)
}

func TestApplyDeviceUpdateSessionRoundTrip(t *testing.T) {
	database := newTestDB(t)
	device := addTestDevice(t, database, "aa:bb:cc:dd:ee:ff")

	t0 := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	// Connect at t0.
	device.IsConnected = true
	device.CurrentAPMAC = "11:22:33:44:55:66"
	device.CurrentAPName = "Office"
	device.CurrentSignalStrength = intPtr(-50)
	device.LastSeen = &t0

	err := database.ApplyDeviceUpdate(&DeviceUpdate{
		Device: device,
		OpenSession: &models.ConnectionHistory{
			DeviceID:       device.ID,
			APMAC:          "11:22:33:44:55:66",
			APName:         "Office",
			SignalStrength: intPtr(-50),
			ConnectedAt:    t0,
		},
	})
	require.NoError(t, err)

	open, err := database.GetOpenSession(device.ID)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, "Office", open.APName)
	assert.Nil(t, open.DisconnectedAt)

	// Disconnect 300 seconds later.
	t1 := t0.Add(300 * time.Second)
	device.IsConnected = false
	device.CurrentAPMAC = ""
	device.CurrentAPName = ""
	device.CurrentSignalStrength = nil
	device.LastSeen = &t0

	err = database.ApplyDeviceUpdate(&DeviceUpdate{
		Device:         device,
		CloseSessionAt: &t1,
	})
	require.NoError(t, err)

	open, err = database.GetOpenSession(device.ID)
	require.NoError(t, err)
	assert.Nil(t, open)

	history, err := database.GetDeviceHistory(device.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].DurationSecs)
	assert.Equal(t, int64(300), *history[0].DurationSecs)

	stored, err := database.GetDevice(device.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsConnected)
	assert.Empty(t, stored.CurrentAPName)
	require.NotNil(t, stored.LastSeen)
	assert.Equal(t, t0.Unix(), stored.LastSeen.Unix())
}

func TestRoamClosesAndOpensInOneTransaction(t *testing.T) {
	database := newTestDB(t)
	device := addTestDevice(t, database, "aa:bb:cc:dd:ee:01")

	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	t1 := t0.Add(90 * time.Second)

	device.IsConnected = true
	device.CurrentAPName = "Office"
	device.LastSeen = &t0

	require.NoError(t, database.ApplyDeviceUpdate(&DeviceUpdate{
		Device: device,
		OpenSession: &models.ConnectionHistory{
			DeviceID: device.ID, APName: "Office", ConnectedAt: t0,
		},
	}))

	device.CurrentAPName = "Guest"
	device.LastSeen = &t1

	require.NoError(t, database.ApplyDeviceUpdate(&DeviceUpdate{
		Device:         device,
		CloseSessionAt: &t1,
		OpenSession: &models.ConnectionHistory{
			DeviceID: device.ID, APName: "Guest", ConnectedAt: t1,
		},
	}))

	history, err := database.GetDeviceHistory(device.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)

	// Newest first: the Guest session is still open.
	assert.Equal(t, "Guest", history[0].APName)
	assert.Nil(t, history[0].DisconnectedAt)
	assert.Equal(t, "Office", history[1].APName)
	require.NotNil(t, history[1].DurationSecs)
	assert.Equal(t, int64(90), *history[1].DurationSecs)

	// Invariant: never more than one open row per device.
	open, err := database.GetOpenSession(device.ID)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, "Guest", open.APName)
}

func TestPresenceUpsertClampsAt60(t *testing.T) {
	database := newTestDB(t)
	device := addTestDevice(t, database, "aa:bb:cc:dd:ee:02")

	now := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	device.IsConnected = true
	device.LastSeen = &now

	for i := 0; i < 3; i++ {
		err := database.ApplyDeviceUpdate(&DeviceUpdate{
			Device: device,
			Presence: []models.PresenceSample{
				{DayOfWeek: 0, HourOfDay: 14, Minutes: 25},
			},
			PresenceAt: now,
		})
		require.NoError(t, err)
	}

	slots, err := database.GetDevicePresence(device.ID)
	require.NoError(t, err)
	require.Len(t, slots, 1)

	assert.Equal(t, 0, slots[0].DayOfWeek)
	assert.Equal(t, 14, slots[0].HourOfDay)
	assert.InDelta(t, 60.0, slots[0].TotalMinutesConnected, 0.001)
	assert.Equal(t, int64(3), slots[0].SampleCount)
}

func TestDeleteDeviceCascades(t *testing.T) {
	database := newTestDB(t)
	device := addTestDevice(t, database, "aa:bb:cc:dd:ee:03")

	t0 := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	device.IsConnected = true
	device.LastSeen = &t0

	require.NoError(t, database.ApplyDeviceUpdate(&DeviceUpdate{
		Device: device,
		OpenSession: &models.ConnectionHistory{
			DeviceID: device.ID, APName: "Office", ConnectedAt: t0,
		},
		Presence:   []models.PresenceSample{{DayOfWeek: 0, HourOfDay: 8, Minutes: 5}},
		PresenceAt: t0,
	}))

	require.NoError(t, database.DeleteDevice(device.ID))

	_, err := database.GetDevice(device.ID)
	assert.ErrorIs(t, err, ErrDeviceNotFound)

	history, err := database.GetDeviceHistory(device.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, history)

	slots, err := database.GetDevicePresence(device.ID)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestRecoverOrphanSessions(t *testing.T) {
	database := newTestDB(t)
	stale := addTestDevice(t, database, "aa:bb:cc:dd:ee:04")
	fresh := addTestDevice(t, database, "aa:bb:cc:dd:ee:05")

	now := time.Now().UTC()
	staleSeen := now.Add(-time.Hour)

	for _, tc := range []struct {
		device *models.TrackedDevice
		seen   time.Time
	}{
		{stale, staleSeen},
		{fresh, now},
	} {
		tc.device.IsConnected = true
		tc.device.CurrentAPName = "Office"
		seen := tc.seen
		tc.device.LastSeen = &seen

		require.NoError(t, database.ApplyDeviceUpdate(&DeviceUpdate{
			Device: tc.device,
			OpenSession: &models.ConnectionHistory{
				DeviceID: tc.device.ID, APName: "Office", ConnectedAt: seen.Add(-2 * time.Hour),
			},
		}))
	}

	recovered, err := database.RecoverOrphanSessions(now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	// The stale device is closed at its last_seen and marked disconnected.
	open, err := database.GetOpenSession(stale.ID)
	require.NoError(t, err)
	assert.Nil(t, open)

	staleStored, err := database.GetDevice(stale.ID)
	require.NoError(t, err)
	assert.False(t, staleStored.IsConnected)
	assert.Empty(t, staleStored.CurrentAPName)

	history, err := database.GetDeviceHistory(stale.ID, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].DisconnectedAt)
	assert.Equal(t, staleSeen.Unix(), history[0].DisconnectedAt.Unix())

	// The fresh device keeps its open session.
	open, err = database.GetOpenSession(fresh.ID)
	require.NoError(t, err)
	assert.NotNil(t, open)
}

func TestWebhookCRUD(t *testing.T) {
	database := newTestDB(t)

	created, err := database.CreateWebhook(&models.WebhookConfig{
		Name:                    "ops",
		Type:                    models.WebhookSlack,
		URL:                     "https://hooks.example.com/T000/B000",
		EventDeviceConnected:    true,
		EventDeviceDisconnected: true,
		Enabled:                 true,
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Nil(t, created.LastTriggered)

	created.URL = "https://hooks.example.com/T000/B001"
	created.EventDeviceRoamed = true
	require.NoError(t, database.UpdateWebhook(created))

	fetched, err := database.GetWebhook(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://hooks.example.com/T000/B001", fetched.URL)
	assert.True(t, fetched.EventDeviceRoamed)

	at := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	require.NoError(t, database.MarkWebhookTriggered(created.ID, at))

	fetched, err = database.GetWebhook(created.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched.LastTriggered)
	assert.Equal(t, at.Unix(), fetched.LastTriggered.Unix())

	require.NoError(t, database.DeleteWebhook(created.ID))
	_, err = database.GetWebhook(created.ID)
	assert.ErrorIs(t, err, ErrWebhookNotFound)

	assert.ErrorIs(t, database.DeleteWebhook(created.ID), ErrWebhookNotFound)
	assert.ErrorIs(t, database.UpdateWebhook(created), ErrWebhookNotFound)
}
