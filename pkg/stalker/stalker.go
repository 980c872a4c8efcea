package stalker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/unifitools/wifistalker/pkg/db"
	"github.com/unifitools/wifistalker/pkg/models"
	"github.com/unifitools/wifistalker/pkg/unifi"
)

// Server polls the controller and reconciles tracked devices against
// each snapshot. One Server owns the poll loop; cycles never overlap.
type Server struct {
	config  Config
	db      db.Service
	fetcher unifi.ClientFetcher
	sinks   []EventSink

	mu   sync.RWMutex
	last *Snapshot

	done chan struct{}
}

// New creates a tracking server. Sinks receive every transition event.
func New(cfg Config, database db.Service, fetcher unifi.ClientFetcher, sinks ...EventSink) *Server {
	return &Server{
		config:  cfg,
		db:      database,
		fetcher: fetcher,
		sinks:   sinks,
		done:    make(chan struct{}),
	}
}

// LastSnapshot returns the most recent successful poll result, or nil
// before the first cycle completes.
func (s *Server) LastSnapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.last
}

// Start recovers sessions left open by an unclean shutdown, then runs
// the poll loop until the context is canceled.
func (s *Server) Start(ctx context.Context) error {
	if err := s.recoverSessions(); err != nil {
		return fmt.Errorf("session recovery failed: %w", err)
	}

	interval := time.Duration(s.config.PollInterval)
	log.Printf("Starting device tracking: sites=%v interval=%s", s.config.Sites, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer close(s.done)

	s.runCycle(ctx, time.Now())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx, time.Now())
		}
	}
}

// Stop implements lifecycle shutdown. The poll loop exits via context
// cancellation; Stop waits for the in-flight cycle to finish.
func (s *Server) Stop(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// recoverSessions closes history rows orphaned by a crash. Anything
// still open whose device was last seen more than two intervals ago is
// closed at that last_seen timestamp.
func (s *Server) recoverSessions() error {
	cutoff := time.Now().Add(-2 * time.Duration(s.config.PollInterval))

	recovered, err := s.db.RecoverOrphanSessions(cutoff)
	if err != nil {
		return err
	}

	if recovered > 0 {
		log.Printf("Recovered %d stale sessions from previous run", recovered)
	}

	return nil
}

// runCycle fetches every configured site and reconciles tracked devices
// against the result. A site fetch failure skips that site for the
// cycle; device state is left untouched rather than guessed at.
func (s *Server) runCycle(ctx context.Context, now time.Time) {
	clients := make(map[string][]models.ClientSnapshot, len(s.config.Sites))

	for _, site := range s.config.Sites {
		snaps, err := s.fetcher.FetchClients(ctx, site)
		if err != nil {
			log.Printf("Error fetching clients for site %s: %v", site, err)
			continue
		}

		clients[site] = snaps
		s.reconcileSite(site, snaps, now)
	}

	s.mu.Lock()
	s.last = &Snapshot{TakenAt: now, Clients: clients}
	s.mu.Unlock()
}

func (s *Server) reconcileSite(site string, snaps []models.ClientSnapshot, now time.Time) {
	devices, err := s.db.ListDevices(site)
	if err != nil {
		log.Printf("Error listing devices for site %s: %v", site, err)
		return
	}

	index := indexSnapshots(snaps)

	for i := range devices {
		device := &devices[i]

		update, event := s.reconcileDevice(device, index[device.MACAddress], now)
		if update == nil {
			continue
		}

		if err := s.db.ApplyDeviceUpdate(update); err != nil {
			log.Printf("Error updating device %s: %v", device.MACAddress, err)
			continue
		}

		if event != nil {
			s.emit(event)
		}
	}
}

func (s *Server) emit(event *models.TransitionEvent) {
	for _, sink := range s.sinks {
		sink.Dispatch(event)
	}
}

// indexSnapshots maps snapshots by MAC. When the controller reports the
// same client on both a wired and a wireless attachment the wired one
// wins; otherwise the first occurrence does.
func indexSnapshots(snaps []models.ClientSnapshot) map[string]*models.ClientSnapshot {
	index := make(map[string]*models.ClientSnapshot, len(snaps))

	for i := range snaps {
		snap := &snaps[i]

		existing, ok := index[snap.MAC]
		if !ok || (snap.IsWired && !existing.IsWired) {
			index[snap.MAC] = snap
		}
	}

	return index
}
