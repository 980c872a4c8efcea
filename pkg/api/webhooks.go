package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/unifitools/wifistalker/pkg/alerts"
	"github.com/unifitools/wifistalker/pkg/db"
	"github.com/unifitools/wifistalker/pkg/models"
)

func validateWebhookRequest(webhook *models.WebhookConfig) (string, bool) {
	if webhook.Name == "" {
		return "name is required", false
	}

	if !webhook.Type.Valid() {
		return "webhook_type must be slack, discord, or n8n", false
	}

	if ok, reason := alerts.ValidateWebhookURL(webhook.URL); !ok {
		return reason, false
	}

	return "", true
}

func (s *APIServer) listWebhooks(w http.ResponseWriter, _ *http.Request) {
	webhooks, err := s.db.ListWebhooks()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list webhooks")
		return
	}

	writeJSON(w, http.StatusOK, webhooks)
}

func (s *APIServer) createWebhook(w http.ResponseWriter, r *http.Request) {
	var webhook models.WebhookConfig
	if err := json.NewDecoder(r.Body).Decode(&webhook); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if reason, ok := validateWebhookRequest(&webhook); !ok {
		writeError(w, http.StatusBadRequest, reason)
		return
	}

	created, err := s.db.CreateWebhook(&webhook)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create webhook")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (s *APIServer) getWebhook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook id")
		return
	}

	webhook, err := s.db.GetWebhook(id)
	switch {
	case errors.Is(err, db.ErrWebhookNotFound):
		writeError(w, http.StatusNotFound, "webhook not found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to get webhook")
		return
	}

	writeJSON(w, http.StatusOK, webhook)
}

func (s *APIServer) updateWebhook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook id")
		return
	}

	var webhook models.WebhookConfig
	if err := json.NewDecoder(r.Body).Decode(&webhook); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if reason, ok := validateWebhookRequest(&webhook); !ok {
		writeError(w, http.StatusBadRequest, reason)
		return
	}

	webhook.ID = id

	err = s.db.UpdateWebhook(&webhook)
	switch {
	case errors.Is(err, db.ErrWebhookNotFound):
		writeError(w, http.StatusNotFound, "webhook not found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to update webhook")
		return
	}

	writeJSON(w, http.StatusOK, &webhook)
}

func (s *APIServer) deleteWebhook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook id")
		return
	}

	err = s.db.DeleteWebhook(id)
	switch {
	case errors.Is(err, db.ErrWebhookNotFound):
		writeError(w, http.StatusNotFound, "webhook not found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to delete webhook")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type testWebhookResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// testWebhook sends a synthetic connected event through the normal
// delivery path so the user can verify formatting end to end.
func (s *APIServer) testWebhook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook id")
		return
	}

	webhook, err := s.db.GetWebhook(id)
	switch {
	case errors.Is(err, db.ErrWebhookNotFound):
		writeError(w, http.StatusNotFound, "webhook not found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to get webhook")
		return
	}

	signal := -45
	event := &models.TransitionEvent{
		Type:           models.EventConnected,
		DeviceName:     "Test Device",
		DeviceMAC:      "AA:BB:CC:DD:EE:FF",
		AttachmentName: "Test Access Point",
		SignalStrength: &signal,
		Timestamp:      time.Now().UTC(),
	}

	if err := s.alerter.Deliver(r.Context(), webhook, event); err != nil {
		writeJSON(w, http.StatusBadGateway, testWebhookResponse{Success: false, Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, testWebhookResponse{Success: true})
}
