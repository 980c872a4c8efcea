// Package api pkg/api/server.go
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/unifitools/wifistalker/pkg/alerts"
	"github.com/unifitools/wifistalker/pkg/db"
	httpx "github.com/unifitools/wifistalker/pkg/http"
	"github.com/unifitools/wifistalker/pkg/models"
	"github.com/unifitools/wifistalker/pkg/stalker"
)

// SnapshotSource exposes the tracker's last good poll result.
type SnapshotSource interface {
	LastSnapshot() *stalker.Snapshot
}

// APIServer is the HTTP surface: device and webhook management plus the
// live event feed. It implements stalker.EventSink so transition events
// reach connected websocket clients.
type APIServer struct {
	db        db.Service
	alerter   alerts.Service
	snapshots SnapshotSource
	hub       *eventHub
	router    *mux.Router
	startedAt time.Time
}

func NewAPIServer(database db.Service, alerter alerts.Service, snapshots SnapshotSource) *APIServer {
	s := &APIServer{
		db:        database,
		alerter:   alerter,
		snapshots: snapshots,
		hub:       newEventHub(),
		router:    mux.NewRouter(),
		startedAt: time.Now(),
	}
	s.setupRoutes()

	return s
}

// SetSnapshots wires the snapshot source after construction; the tracker
// and the API reference each other, so one side has to come late.
func (s *APIServer) SetSnapshots(snapshots SnapshotSource) {
	s.snapshots = snapshots
}

// Router returns the configured handler for mounting on an HTTP server.
func (s *APIServer) Router() http.Handler {
	return s.router
}

// Dispatch implements stalker.EventSink by fanning the event out to
// websocket subscribers.
func (s *APIServer) Dispatch(event *models.TransitionEvent) {
	s.hub.broadcast(event)
}

func (s *APIServer) setupRoutes() {
	s.router.Use(httpx.CommonMiddleware)

	// Device endpoints
	s.router.HandleFunc("/api/devices", s.listDevices).Methods("GET")
	s.router.HandleFunc("/api/devices", s.addDevice).Methods("POST")
	s.router.HandleFunc("/api/devices/{id}", s.getDevice).Methods("GET")
	s.router.HandleFunc("/api/devices/{id}", s.deleteDevice).Methods("DELETE")
	s.router.HandleFunc("/api/devices/{id}/block", s.blockDevice(true)).Methods("POST")
	s.router.HandleFunc("/api/devices/{id}/unblock", s.blockDevice(false)).Methods("POST")
	s.router.HandleFunc("/api/devices/{id}/history", s.getDeviceHistory).Methods("GET")
	s.router.HandleFunc("/api/devices/{id}/presence", s.getDevicePresence).Methods("GET")

	// Webhook endpoints
	s.router.HandleFunc("/api/webhooks", s.listWebhooks).Methods("GET")
	s.router.HandleFunc("/api/webhooks", s.createWebhook).Methods("POST")
	s.router.HandleFunc("/api/webhooks/{id}", s.getWebhook).Methods("GET")
	s.router.HandleFunc("/api/webhooks/{id}", s.updateWebhook).Methods("PUT")
	s.router.HandleFunc("/api/webhooks/{id}", s.deleteWebhook).Methods("DELETE")
	s.router.HandleFunc("/api/webhooks/{id}/test", s.testWebhook).Methods("POST")

	// Status and live feed
	s.router.HandleFunc("/api/status", s.getStatus).Methods("GET")
	s.router.HandleFunc("/ws", s.hub.serveWS)
}

type statusResponse struct {
	Status             string         `json:"status"`
	UptimeSeconds      int64          `json:"uptime_seconds"`
	SnapshotTakenAt    *time.Time     `json:"snapshot_taken_at,omitempty"`
	SnapshotAgeSeconds *float64       `json:"snapshot_age_seconds,omitempty"`
	ClientsPerSite     map[string]int `json:"clients_per_site,omitempty"`
}

func (s *APIServer) getStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	}

	if s.snapshots == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if snapshot := s.snapshots.LastSnapshot(); snapshot != nil {
		taken := snapshot.TakenAt
		age := time.Since(taken).Seconds()
		resp.SnapshotTakenAt = &taken
		resp.SnapshotAgeSeconds = &age
		resp.ClientsPerSite = snapshot.ClientCounts()
	}

	writeJSON(w, http.StatusOK, resp)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
