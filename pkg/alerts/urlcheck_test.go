package alerts

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errNoSuchHost = errors.New("no such host")

func newTestValidator(addrs map[string][]string) *URLValidator {
	return &URLValidator{
		resolve: func(host string) ([]string, error) {
			if ips, ok := addrs[host]; ok {
				return ips, nil
			}

			return nil, errNoSuchHost
		},
	}
}

func TestValidateURL(t *testing.T) {
	validator := newTestValidator(map[string][]string{
		"hooks.example.com": {"93.184.216.34"},
		"rebound.example":   {"93.184.216.34", "169.254.169.254"},
		"internal.example":  {"10.1.2.3"},
		"ula.example":       {"fc00::1"},
	})

	tests := []struct {
		name   string
		url    string
		ok     bool
		reason string
	}{
		{"empty", "", false, "URL is required"},
		{"ftp scheme", "ftp://example.com", false, "URL must use http or https scheme"},
		{"no hostname", "http://", false, "URL must include a hostname"},
		{"localhost", "http://localhost/hook", false, "This hostname is not allowed for webhooks"},
		{"localhost mixed case", "http://LocalHost:8080/hook", false, "This hostname is not allowed for webhooks"},
		{"gcp metadata hostname", "http://metadata.google.internal/computeMetadata", false, "This hostname is not allowed for webhooks"},
		{"loopback literal", "http://127.0.0.1/hook", false, "Private, reserved, or internal IP addresses are not allowed"},
		{"rfc1918 literal", "https://192.168.1.10/hook", false, "Private, reserved, or internal IP addresses are not allowed"},
		{"metadata literal", "http://169.254.169.254/latest/meta-data", false, "Private, reserved, or internal IP addresses are not allowed"},
		{"cgnat literal", "http://100.64.0.1/hook", false, "Private, reserved, or internal IP addresses are not allowed"},
		{"test-net literal", "http://203.0.113.7/hook", false, "Private, reserved, or internal IP addresses are not allowed"},
		{"ipv6 loopback literal", "http://[::1]/hook", false, "Private, reserved, or internal IP addresses are not allowed"},
		{"public literal", "https://8.8.8.8/hook", true, ""},
		{"public hostname", "https://hooks.example.com/services/T000", true, ""},
		{"resolves to metadata", "https://rebound.example/hook", false, "URL resolves to a private or reserved IP address"},
		{"resolves to rfc1918", "https://internal.example/hook", false, "URL resolves to a private or reserved IP address"},
		{"resolves to ipv6 ula", "https://ula.example/hook", false, "URL resolves to a private or reserved IP address"},
		{"unresolvable fails open", "https://no-such-host.invalid/hook", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := validator.Validate(tt.url)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestValidateMixedResolutionRejectsOnAnyBlocked(t *testing.T) {
	// One public address does not redeem a host that also resolves to an
	// internal one.
	validator := newTestValidator(map[string][]string{
		"dual.example": {"93.184.216.34", "192.168.0.5"},
	})

	ok, reason := validator.Validate("https://dual.example/hook")
	assert.False(t, ok)
	assert.Equal(t, "URL resolves to a private or reserved IP address", reason)
}
