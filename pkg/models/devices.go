// Package models pkg/models/devices.go contains the shared types for
// device tracking.
package models

import "time"

// ClientSnapshot is one controller-reported record of an attached client
// at poll time.
type ClientSnapshot struct {
	MAC            string `json:"mac"`
	Hostname       string `json:"hostname,omitempty"`
	IsWired        bool   `json:"is_wired"`
	APMAC          string `json:"ap_mac,omitempty"`
	APName         string `json:"ap_name,omitempty"`
	SSID           string `json:"essid,omitempty"`
	SwitchMAC      string `json:"sw_mac,omitempty"`
	SwitchName     string `json:"sw_name,omitempty"`
	SwitchPort     int    `json:"sw_port,omitempty"`
	IP             string `json:"ip,omitempty"`
	SignalStrength *int   `json:"signal,omitempty"`
}

// TrackedDevice is a device the user wants to track, wireless or wired.
// One row per MAC address.
type TrackedDevice struct {
	ID                    int64      `json:"id"`
	MACAddress            string     `json:"mac_address"`
	FriendlyName          string     `json:"friendly_name"`
	SiteID                string     `json:"site_id"`
	AddedAt               time.Time  `json:"added_at"`
	LastSeen              *time.Time `json:"last_seen,omitempty"`
	IsConnected           bool       `json:"is_connected"`
	IsWired               bool       `json:"is_wired"`
	IsBlocked             bool       `json:"is_blocked"`
	CurrentAPMAC          string     `json:"current_ap_mac,omitempty"`
	CurrentAPName         string     `json:"current_ap_name,omitempty"`
	CurrentSSID           string     `json:"current_ssid,omitempty"`
	CurrentSwitchMAC      string     `json:"current_switch_mac,omitempty"`
	CurrentSwitchName     string     `json:"current_switch_name,omitempty"`
	CurrentSwitchPort     int        `json:"current_switch_port,omitempty"`
	CurrentIPAddress      string     `json:"current_ip_address,omitempty"`
	CurrentSignalStrength *int       `json:"current_signal_strength,omitempty"`
}

// AttachmentName returns the AP or switch the device is attached to,
// whichever kind is populated.
func (d *TrackedDevice) AttachmentName() string {
	if d.IsWired {
		return d.CurrentSwitchName
	}

	return d.CurrentAPName
}

// ConnectionHistory is one session row. A row with a nil DisconnectedAt is
// an open session; at most one open row may exist per device.
type ConnectionHistory struct {
	ID             int64      `json:"id"`
	DeviceID       int64      `json:"device_id"`
	APMAC          string     `json:"ap_mac,omitempty"`
	APName         string     `json:"ap_name,omitempty"`
	SSID           string     `json:"ssid,omitempty"`
	IsWired        bool       `json:"is_wired"`
	SwitchMAC      string     `json:"switch_mac,omitempty"`
	SwitchName     string     `json:"switch_name,omitempty"`
	SwitchPort     int        `json:"switch_port,omitempty"`
	SignalStrength *int       `json:"signal_strength,omitempty"`
	ConnectedAt    time.Time  `json:"connected_at"`
	DisconnectedAt *time.Time `json:"disconnected_at,omitempty"`
	DurationSecs   *int64     `json:"duration_seconds,omitempty"`
}

// HourlyPresence is the aggregated presence for one device in one of the
// 168 day-of-week x hour-of-day slots. Day 0 is Monday.
type HourlyPresence struct {
	ID                    int64      `json:"id"`
	DeviceID              int64      `json:"device_id"`
	DayOfWeek             int        `json:"day_of_week"`
	HourOfDay             int        `json:"hour_of_day"`
	TotalMinutesConnected float64    `json:"total_minutes_connected"`
	SampleCount           int64      `json:"sample_count"`
	LastUpdated           *time.Time `json:"last_updated,omitempty"`
}

// PresenceSample is one presence contribution to a single hour slot,
// produced by the aggregator and applied inside the device's transaction.
type PresenceSample struct {
	DayOfWeek int
	HourOfDay int
	Minutes   float64
}
