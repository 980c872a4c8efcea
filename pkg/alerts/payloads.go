package alerts

import (
	"fmt"
	"time"

	"github.com/unifitools/wifistalker/pkg/models"
)

const payloadSource = "unifi-toolkit"
const payloadFooter = "Wi-Fi Stalker | UI Toolkit"

// Discord embed colors per event type.
const (
	discordColorGreen = 0x4CAF50
	discordColorRed   = 0xF44336
	discordColorBlue  = 0x2196F3
	discordColorGrey  = 0x9E9E9E
)

// slackMessage is the Slack incoming-webhook attachment format.
type slackMessage struct {
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Fields []slackField `json:"fields"`
	Footer string       `json:"footer"`
	TS     int64        `json:"ts"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// discordMessage is the Discord webhook embed format.
type discordMessage struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields"`
	Footer      discordFooter  `json:"footer"`
	Timestamp   string         `json:"timestamp"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordFooter struct {
	Text string `json:"text"`
}

// genericPayload is the flat envelope n8n and other automation receivers
// consume.
type genericPayload struct {
	EventType      string        `json:"event_type"`
	Device         genericDevice `json:"device"`
	AccessPoint    string        `json:"access_point"`
	SignalStrength *int          `json:"signal_strength"`
	Timestamp      string        `json:"timestamp"`
	Source         string        `json:"source"`
}

type genericDevice struct {
	Name       string `json:"name"`
	MACAddress string `json:"mac_address"`
}

func slackStyle(event *models.TransitionEvent) (emoji, color, title, text string) {
	switch event.Type {
	case models.EventConnected:
		return ":white_check_mark:", "good",
			fmt.Sprintf("%s Connected", event.DeviceName),
			fmt.Sprintf("Device connected to %s", event.AttachmentName)
	case models.EventDisconnected:
		return ":x:", "danger",
			fmt.Sprintf("%s Disconnected", event.DeviceName),
			"Device went offline"
	case models.EventRoamed:
		return ":arrows_counterclockwise:", "#2196F3",
			fmt.Sprintf("%s Roamed", event.DeviceName),
			fmt.Sprintf("Device moved to %s", event.AttachmentName)
	case models.EventBlocked:
		return ":no_entry:", "#9E9E9E",
			fmt.Sprintf("%s Blocked", event.DeviceName),
			"Device was blocked"
	default: // unblocked
		return ":unlock:", "#9E9E9E",
			fmt.Sprintf("%s Unblocked", event.DeviceName),
			"Device was unblocked"
	}
}

// hasAttachmentFields reports whether the payload should carry the AP/switch
// name and signal, which only make sense while the device is online.
func hasAttachmentFields(event *models.TransitionEvent) bool {
	return event.Type != models.EventDisconnected &&
		event.Type != models.EventBlocked && event.Type != models.EventUnblocked
}

func formatSlackMessage(event *models.TransitionEvent) interface{} {
	emoji, color, title, text := slackStyle(event)

	fields := []slackField{
		{Title: "Device", Value: event.DeviceName, Short: true},
		{Title: "MAC Address", Value: event.DeviceMAC, Short: true},
	}

	if event.AttachmentName != "" && hasAttachmentFields(event) {
		fields = append(fields, slackField{Title: "Access Point", Value: event.AttachmentName, Short: true})
	}

	if event.SignalStrength != nil && hasAttachmentFields(event) {
		fields = append(fields, slackField{
			Title: "Signal",
			Value: fmt.Sprintf("%d dBm", *event.SignalStrength),
			Short: true,
		})
	}

	return &slackMessage{
		Attachments: []slackAttachment{{
			Color:  color,
			Title:  fmt.Sprintf("%s %s", emoji, title),
			Text:   text,
			Fields: fields,
			Footer: payloadFooter,
			TS:     event.Timestamp.UTC().Unix(),
		}},
	}
}

func formatDiscordMessage(event *models.TransitionEvent) interface{} {
	var (
		color       int
		title       string
		description string
	)

	switch event.Type {
	case models.EventConnected:
		color = discordColorGreen
		title = "Device Connected"
		description = fmt.Sprintf("**%s** connected to %s", event.DeviceName, event.AttachmentName)
	case models.EventDisconnected:
		color = discordColorRed
		title = "Device Disconnected"
		description = fmt.Sprintf("**%s** went offline", event.DeviceName)
	case models.EventRoamed:
		color = discordColorBlue
		title = "Device Roamed"
		description = fmt.Sprintf("**%s** moved to %s", event.DeviceName, event.AttachmentName)
	case models.EventBlocked:
		color = discordColorGrey
		title = "Device Blocked"
		description = fmt.Sprintf("**%s** was blocked", event.DeviceName)
	default:
		color = discordColorGrey
		title = "Device Unblocked"
		description = fmt.Sprintf("**%s** was unblocked", event.DeviceName)
	}

	fields := []discordField{
		{Name: "MAC Address", Value: event.DeviceMAC, Inline: true},
	}

	if event.AttachmentName != "" && hasAttachmentFields(event) {
		fields = append(fields, discordField{Name: "Access Point", Value: event.AttachmentName, Inline: true})
	}

	if event.SignalStrength != nil && hasAttachmentFields(event) {
		fields = append(fields, discordField{
			Name:   "Signal Strength",
			Value:  fmt.Sprintf("%d dBm", *event.SignalStrength),
			Inline: true,
		})
	}

	return &discordMessage{
		Embeds: []discordEmbed{{
			Title:       title,
			Description: description,
			Color:       color,
			Fields:      fields,
			Footer:      discordFooter{Text: payloadFooter},
			Timestamp:   event.Timestamp.UTC().Format(time.RFC3339),
		}},
	}
}

func formatGenericMessage(event *models.TransitionEvent) interface{} {
	return &genericPayload{
		EventType: string(event.Type),
		Device: genericDevice{
			Name:       event.DeviceName,
			MACAddress: event.DeviceMAC,
		},
		AccessPoint:    event.AttachmentName,
		SignalStrength: event.SignalStrength,
		Timestamp:      event.Timestamp.UTC().Format(time.RFC3339),
		Source:         payloadSource,
	}
}

// BuildPayload renders the provider-specific body for one event.
func BuildPayload(webhookType models.WebhookType, event *models.TransitionEvent) (interface{}, error) {
	switch webhookType {
	case models.WebhookSlack:
		return formatSlackMessage(event), nil
	case models.WebhookDiscord:
		return formatDiscordMessage(event), nil
	case models.WebhookN8N:
		return formatGenericMessage(event), nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownWebhookType, webhookType)
	}
}
