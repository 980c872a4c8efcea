package alerts

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifitools/wifistalker/pkg/models"
)

func intPtr(v int) *int { return &v }

func testEvent(eventType models.EventType) *models.TransitionEvent {
	return &models.TransitionEvent{
		Type:           eventType,
		DeviceName:     "Laptop",
		DeviceMAC:      "aa:bb:cc:dd:ee:ff",
		AttachmentName: "Office",
		SignalStrength: intPtr(-50),
		Timestamp:      time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
}

func TestSlackPayload(t *testing.T) {
	payload, err := BuildPayload(models.WebhookSlack, testEvent(models.EventConnected))
	require.NoError(t, err)

	msg, ok := payload.(*slackMessage)
	require.True(t, ok)
	require.Len(t, msg.Attachments, 1)

	att := msg.Attachments[0]
	assert.Equal(t, "good", att.Color)
	assert.Equal(t, ":white_check_mark: Laptop Connected", att.Title)
	assert.Equal(t, "Device connected to Office", att.Text)
	assert.Equal(t, int64(1772445600), att.TS)

	require.Len(t, att.Fields, 4)
	assert.Equal(t, "Device", att.Fields[0].Title)
	assert.Equal(t, "MAC Address", att.Fields[1].Title)
	assert.Equal(t, "Access Point", att.Fields[2].Title)
	assert.Equal(t, "Office", att.Fields[2].Value)
	assert.Equal(t, "-50 dBm", att.Fields[3].Value)
}

func TestSlackDisconnectedOmitsAttachmentFields(t *testing.T) {
	payload, err := BuildPayload(models.WebhookSlack, testEvent(models.EventDisconnected))
	require.NoError(t, err)

	msg := payload.(*slackMessage)
	att := msg.Attachments[0]

	assert.Equal(t, "danger", att.Color)
	assert.Equal(t, "Device went offline", att.Text)
	assert.Len(t, att.Fields, 2)
}

func TestDiscordPayload(t *testing.T) {
	tests := []struct {
		eventType models.EventType
		color     int
		title     string
	}{
		{models.EventConnected, 0x4CAF50, "Device Connected"},
		{models.EventDisconnected, 0xF44336, "Device Disconnected"},
		{models.EventRoamed, 0x2196F3, "Device Roamed"},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			payload, err := BuildPayload(models.WebhookDiscord, testEvent(tt.eventType))
			require.NoError(t, err)

			msg := payload.(*discordMessage)
			require.Len(t, msg.Embeds, 1)

			embed := msg.Embeds[0]
			assert.Equal(t, tt.color, embed.Color)
			assert.Equal(t, tt.title, embed.Title)
			assert.Equal(t, "2026-03-02T10:00:00Z", embed.Timestamp)
			assert.Equal(t, "Wi-Fi Stalker | UI Toolkit", embed.Footer.Text)
		})
	}
}

func TestGenericPayloadShape(t *testing.T) {
	payload, err := BuildPayload(models.WebhookN8N, testEvent(models.EventRoamed))
	require.NoError(t, err)

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "roamed", decoded["event_type"])
	assert.Equal(t, "Office", decoded["access_point"])
	assert.Equal(t, float64(-50), decoded["signal_strength"])
	assert.Equal(t, "unifi-toolkit", decoded["source"])
	assert.Equal(t, "2026-03-02T10:00:00Z", decoded["timestamp"])

	device, ok := decoded["device"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Laptop", device["name"])
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", device["mac_address"])
}

func TestBuildPayloadUnknownType(t *testing.T) {
	_, err := BuildPayload(models.WebhookType("teams"), testEvent(models.EventConnected))
	assert.ErrorIs(t, err, errUnknownWebhookType)
}
