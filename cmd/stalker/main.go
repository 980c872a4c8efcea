// cmd/stalker/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/unifitools/wifistalker/pkg/alerts"
	"github.com/unifitools/wifistalker/pkg/api"
	"github.com/unifitools/wifistalker/pkg/config"
	"github.com/unifitools/wifistalker/pkg/db"
	"github.com/unifitools/wifistalker/pkg/lifecycle"
	"github.com/unifitools/wifistalker/pkg/stalker"
	"github.com/unifitools/wifistalker/pkg/unifi"
)

const (
	defaultListenAddr = ":8080"
	defaultDBPath     = "/var/lib/wifistalker/stalker.db"
)

// Config is the top-level JSON configuration.
type Config struct {
	ListenAddr string         `json:"listen_addr"`
	DBPath     string         `json:"db_path"`
	UniFi      unifi.Config   `json:"unifi"`
	Tracking   stalker.Config `json:"tracking"`
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}

	if c.DBPath == "" {
		c.DBPath = defaultDBPath
	}

	if err := c.UniFi.Validate(); err != nil {
		return fmt.Errorf("unifi config: %w", err)
	}

	return c.Tracking.Validate()
}

// services runs the tracker and the notification dispatcher as one
// lifecycle unit.
type services struct {
	tracker *stalker.Server
	alerter *alerts.Dispatcher
}

func (s *services) Start(ctx context.Context) error {
	go func() {
		if err := s.alerter.Start(ctx); err != nil && ctx.Err() == nil {
			log.Printf("Notification dispatcher stopped: %v", err)
		}
	}()

	return s.tracker.Start(ctx)
}

func (s *services) Stop(ctx context.Context) error {
	return s.tracker.Stop(ctx)
}

func main() {
	configPath := flag.String("config", "/etc/wifistalker/stalker.json", "Path to config file")
	flag.Parse()

	var cfg Config
	if err := config.LoadAndValidate(*configPath, &cfg); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	defer func() {
		if err := database.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	fetcher, err := unifi.NewClient(cfg.UniFi)
	if err != nil {
		log.Fatalf("Failed to create controller client: %v", err)
	}

	alerter := alerts.NewDispatcher(database)
	apiServer := api.NewAPIServer(database, alerter, nil)
	tracker := stalker.New(cfg.Tracking, database, fetcher, alerter, apiServer)
	apiServer.SetSnapshots(tracker)

	if err := lifecycle.RunServer(context.Background(), &lifecycle.ServerOptions{
		ListenAddr:  cfg.ListenAddr,
		ServiceName: "wifistalker",
		Service:     &services{tracker: tracker, alerter: alerter},
		Handler:     apiServer.Router(),
	}); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
