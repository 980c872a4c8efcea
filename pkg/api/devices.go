package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/unifitools/wifistalker/pkg/db"
	"github.com/unifitools/wifistalker/pkg/models"
)

const defaultHistoryLimit = 50

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

type addDeviceRequest struct {
	MACAddress   string `json:"mac_address"`
	FriendlyName string `json:"friendly_name"`
	SiteID       string `json:"site_id"`
}

func (s *APIServer) listDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.db.ListDevices(r.URL.Query().Get("site"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list devices")
		return
	}

	writeJSON(w, http.StatusOK, devices)
}

func (s *APIServer) addDevice(w http.ResponseWriter, r *http.Request) {
	var req addDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	hwAddr, err := net.ParseMAC(strings.TrimSpace(req.MACAddress))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid MAC address")
		return
	}

	if req.FriendlyName == "" {
		writeError(w, http.StatusBadRequest, "friendly_name is required")
		return
	}

	if req.SiteID == "" {
		req.SiteID = "default"
	}

	device, err := s.db.AddDevice(&models.TrackedDevice{
		MACAddress:   hwAddr.String(),
		FriendlyName: req.FriendlyName,
		SiteID:       req.SiteID,
	})

	switch {
	case errors.Is(err, db.ErrDeviceExists):
		writeError(w, http.StatusConflict, "device already tracked")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to add device")
		return
	}

	writeJSON(w, http.StatusCreated, device)
}

func (s *APIServer) getDevice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid device id")
		return
	}

	device, err := s.db.GetDevice(id)
	switch {
	case errors.Is(err, db.ErrDeviceNotFound):
		writeError(w, http.StatusNotFound, "device not found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, device)
}

func (s *APIServer) deleteDevice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid device id")
		return
	}

	err = s.db.DeleteDevice(id)
	switch {
	case errors.Is(err, db.ErrDeviceNotFound):
		writeError(w, http.StatusNotFound, "device not found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to delete device")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// blockDevice flips the stored blocked flag and publishes the matching
// event. Controller-side enforcement is not wired up here.
func (s *APIServer) blockDevice(blocked bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid device id")
			return
		}

		device, err := s.db.GetDevice(id)
		switch {
		case errors.Is(err, db.ErrDeviceNotFound):
			writeError(w, http.StatusNotFound, "device not found")
			return
		case err != nil:
			writeError(w, http.StatusInternalServerError, "failed to get device")
			return
		}

		if device.IsBlocked != blocked {
			if err := s.db.SetDeviceBlocked(id, blocked); err != nil {
				writeError(w, http.StatusInternalServerError, "failed to update device")
				return
			}

			eventType := models.EventBlocked
			if !blocked {
				eventType = models.EventUnblocked
			}

			event := &models.TransitionEvent{
				Type:       eventType,
				DeviceID:   device.ID,
				DeviceName: device.FriendlyName,
				DeviceMAC:  device.MACAddress,
				Timestamp:  time.Now().UTC(),
			}
			s.alerter.Dispatch(event)
			s.hub.broadcast(event)
		}

		device.IsBlocked = blocked
		writeJSON(w, http.StatusOK, device)
	}
}

func (s *APIServer) getDeviceHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid device id")
		return
	}

	if _, err := s.db.GetDevice(id); err != nil {
		if errors.Is(err, db.ErrDeviceNotFound) {
			writeError(w, http.StatusNotFound, "device not found")
			return
		}

		writeError(w, http.StatusInternalServerError, "failed to get device")

		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}

		limit = parsed
	}

	history, err := s.db.GetDeviceHistory(id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get history")
		return
	}

	writeJSON(w, http.StatusOK, history)
}

func (s *APIServer) getDevicePresence(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid device id")
		return
	}

	if _, err := s.db.GetDevice(id); err != nil {
		if errors.Is(err, db.ErrDeviceNotFound) {
			writeError(w, http.StatusNotFound, "device not found")
			return
		}

		writeError(w, http.StatusInternalServerError, "failed to get device")

		return
	}

	presence, err := s.db.GetDevicePresence(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get presence")
		return
	}

	writeJSON(w, http.StatusOK, presence)
}
