// Package alerts pkg/alerts/urlcheck.go validates webhook URLs before any
// outbound request is made, blocking destinations that would let a stored
// URL reach internal networks, localhost, or cloud metadata endpoints.
package alerts

import (
	"net"
	"net/url"
	"strings"
)

// blockedRanges are the private/internal networks webhook deliveries must
// never reach.
var blockedRanges = mustParseCIDRs(
	"10.0.0.0/8",     // Private Class A
	"172.16.0.0/12",  // Private Class B
	"192.168.0.0/16", // Private Class C
	"127.0.0.0/8",    // Loopback
	"169.254.0.0/16", // Link-local (includes cloud metadata)
	"0.0.0.0/8",      // "This" network
	"224.0.0.0/4",    // Multicast
	"240.0.0.0/4",    // Reserved
	"100.64.0.0/10",  // Carrier-grade NAT
	"192.0.0.0/24",   // IETF Protocol Assignments
	"192.0.2.0/24",   // TEST-NET-1
	"198.51.100.0/24", // TEST-NET-2
	"203.0.113.0/24", // TEST-NET-3
	"fc00::/7",       // IPv6 Unique Local
	"fe80::/10",      // IPv6 Link-Local
	"::1/128",        // IPv6 Loopback
)

// blockedHostnames are rejected outright, case-insensitively.
var blockedHostnames = map[string]struct{}{
	"localhost":                {},
	"localhost.localdomain":    {},
	"metadata.google.internal": {},
	"metadata.goog":            {},
}

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))

	for _, cidr := range cidrs {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(err)
		}

		nets = append(nets, ipNet)
	}

	return nets
}

// URLValidator classifies outbound URLs as safe or unsafe. The resolver is
// swappable for tests.
type URLValidator struct {
	resolve func(host string) ([]string, error)
}

func NewURLValidator() *URLValidator {
	return &URLValidator{resolve: net.LookupHost}
}

// isIPBlocked reports whether a literal IP falls in any blocked range.
func isIPBlocked(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}

	for _, blocked := range blockedRanges {
		if blocked.Contains(ip) {
			return true
		}
	}

	return false
}

// Validate checks a webhook URL. It returns ok=false with a human-readable
// reason when the URL must not be used. A hostname that fails to resolve is
// allowed through: DNS may well resolve at delivery time, and the check runs
// again right before every send.
func (v *URLValidator) Validate(rawURL string) (bool, string) {
	if rawURL == "" {
		return false, "URL is required"
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, "Invalid URL format"
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false, "URL must use http or https scheme"
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return false, "URL must include a hostname"
	}

	if _, blocked := blockedHostnames[strings.ToLower(hostname)]; blocked {
		return false, "This hostname is not allowed for webhooks"
	}

	// Literal IP: no resolution needed.
	if ip := net.ParseIP(hostname); ip != nil {
		if isIPBlocked(hostname) {
			return false, "Private, reserved, or internal IP addresses are not allowed"
		}

		return true, ""
	}

	addrs, err := v.resolve(hostname)
	if err != nil || len(addrs) == 0 {
		// Fail open: we cannot classify what we cannot resolve.
		return true, ""
	}

	for _, addr := range addrs {
		if isIPBlocked(addr) {
			return false, "URL resolves to a private or reserved IP address"
		}
	}

	return true, ""
}

var defaultValidator = NewURLValidator()

// ValidateWebhookURL checks a webhook URL with the default resolver.
func ValidateWebhookURL(rawURL string) (bool, string) {
	return defaultValidator.Validate(rawURL)
}
