// Package stalker pkg/stalker/types.go
package stalker

import (
	"time"

	"github.com/unifitools/wifistalker/pkg/config"
	"github.com/unifitools/wifistalker/pkg/models"
)

const (
	defaultPollInterval = 30 * time.Second
	defaultSite         = "default"
)

// Config represents the tracking pipeline configuration.
type Config struct {
	// Sites lists the controller sites to poll each cycle.
	Sites []string `json:"sites"`

	// PollInterval is the cycle cadence.
	PollInterval config.Duration `json:"poll_interval"`

	// DisconnectGrace debounces flapping: a device missing from the
	// snapshot is only marked disconnected once it has been unseen for
	// this long. Zero records every transition.
	DisconnectGrace config.Duration `json:"disconnect_grace"`
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	if len(c.Sites) == 0 {
		c.Sites = []string{defaultSite}
	}

	if time.Duration(c.PollInterval) == 0 {
		c.PollInterval = config.Duration(defaultPollInterval)
	}

	return nil
}

// Snapshot is the last good poll result, kept in a single-owner cell
// written only by the poll loop and read through Server.LastSnapshot.
type Snapshot struct {
	TakenAt time.Time                          `json:"taken_at"`
	Clients map[string][]models.ClientSnapshot `json:"clients"`
}

// ClientCounts returns the number of attached clients per site.
func (s *Snapshot) ClientCounts() map[string]int {
	counts := make(map[string]int, len(s.Clients))
	for site, clients := range s.Clients {
		counts[site] = len(clients)
	}

	return counts
}
