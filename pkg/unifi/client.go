// Package unifi pkg/unifi/client.go talks to a UniFi network controller.
package unifi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/unifitools/wifistalker/pkg/config"
	"github.com/unifitools/wifistalker/pkg/models"
)

var (
	errLoginFailed    = errors.New("controller login failed")
	errRequestFailed  = errors.New("controller request failed")
	errDecodeResponse = errors.New("failed to decode controller response")
	errMissingField   = errors.New("missing required config field")
)

const defaultFetchTimeout = 15 * time.Second

// Config holds the controller connection settings.
type Config struct {
	// URL is the controller base URL, e.g. https://unifi.local:8443.
	URL      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password"`

	// SkipTLSVerify accepts the controller's self-signed certificate,
	// which is what most UniFi installs ship with.
	SkipTLSVerify bool            `json:"skip_tls_verify"`
	FetchTimeout  config.Duration `json:"fetch_timeout"`
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("%w: url", errMissingField)
	}

	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("%w: username/password", errMissingField)
	}

	c.URL = strings.TrimRight(c.URL, "/")

	if time.Duration(c.FetchTimeout) == 0 {
		c.FetchTimeout = config.Duration(defaultFetchTimeout)
	}

	return nil
}

// Client is an HTTP ClientFetcher for classic UniFi controllers. It logs in
// lazily, keeps the session cookie in a jar, and retries exactly once after
// re-authenticating when the session expires.
type Client struct {
	config Config
	client *http.Client

	mu       sync.Mutex
	loggedIn bool
}

func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.SkipTLSVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // self-signed controller certs
	}

	return &Client{
		config: cfg,
		client: &http.Client{
			Jar:       jar,
			Transport: transport,
			Timeout:   time.Duration(cfg.FetchTimeout),
		},
	}, nil
}

func (c *Client) login(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{
		"username": c.config.Username,
		"password": c.config.Password,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal login body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.URL+"/api/login", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create login request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", errLoginFailed, err)
	}
	defer closeBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status=%d", errLoginFailed, resp.StatusCode)
	}

	c.loggedIn = true

	return nil
}

// staRecord is the subset of /stat/sta fields the tracker cares about.
type staRecord struct {
	MAC        string `json:"mac"`
	Hostname   string `json:"hostname"`
	IsWired    bool   `json:"is_wired"`
	APMAC      string `json:"ap_mac"`
	ESSID      string `json:"essid"`
	SwitchMAC  string `json:"sw_mac"`
	SwitchPort int    `json:"sw_port"`
	IP         string `json:"ip"`
	Signal     *int   `json:"signal"`
}

// deviceRecord is the subset of /stat/device fields used to resolve AP and
// switch names.
type deviceRecord struct {
	MAC  string `json:"mac"`
	Name string `json:"name"`
}

type apiResponse[T any] struct {
	Data []T `json:"data"`
}

// FetchClients implements ClientFetcher against /api/s/{site}/stat/sta,
// joining /stat/device so snapshots carry AP and switch names.
func (c *Client) FetchClients(ctx context.Context, siteID string) ([]models.ClientSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stations, err := getList[staRecord](ctx, c, fmt.Sprintf("/api/s/%s/stat/sta", siteID))
	if err != nil {
		return nil, err
	}

	devices, err := getList[deviceRecord](ctx, c, fmt.Sprintf("/api/s/%s/stat/device", siteID))
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(devices))
	for _, device := range devices {
		names[strings.ToLower(device.MAC)] = device.Name
	}

	snapshots := make([]models.ClientSnapshot, 0, len(stations))

	for _, sta := range stations {
		snapshot := models.ClientSnapshot{
			MAC:            strings.ToLower(sta.MAC),
			Hostname:       sta.Hostname,
			IsWired:        sta.IsWired,
			IP:             sta.IP,
			SignalStrength: sta.Signal,
		}

		if sta.IsWired {
			snapshot.SwitchMAC = strings.ToLower(sta.SwitchMAC)
			snapshot.SwitchName = names[snapshot.SwitchMAC]
			snapshot.SwitchPort = sta.SwitchPort
		} else {
			snapshot.APMAC = strings.ToLower(sta.APMAC)
			snapshot.APName = names[snapshot.APMAC]
			snapshot.SSID = sta.ESSID
		}

		snapshots = append(snapshots, snapshot)
	}

	return snapshots, nil
}

// getList performs an authenticated GET, logging in first if needed and
// once more if the controller reports the session as expired.
func getList[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	if !c.loggedIn {
		if err := c.login(ctx); err != nil {
			return nil, err
		}
	}

	status, body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		c.loggedIn = false
		if err := c.login(ctx); err != nil {
			return nil, err
		}

		status, body, err = c.doGet(ctx, path)
		if err != nil {
			return nil, err
		}
	}

	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: %s status=%d", errRequestFailed, path, status)
	}

	var parsed apiResponse[T]
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %w", errDecodeResponse, err)
	}

	return parsed.Data, nil
}

func (c *Client) doGet(ctx context.Context, path string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.URL+path, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s: %w", errRequestFailed, path, err)
	}
	defer closeBody(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s: %w", errRequestFailed, path, err)
	}

	return resp.StatusCode, body, nil
}

func closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		log.Printf("failed to close response body: %v", err)
	}
}
