package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/brickplay-core/internal/device"
)

// errInUse is returned when removing something the running session holds.
var errInUse = errors.New("in use by the running session")

// deviceView is a catalogue record with the live connection state.
type deviceView struct {
	device.Info
	State string `json:"state"`
}

// registerDeviceRequest is the body of POST /devices.
type registerDeviceRequest struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Family       device.Family `json:"family"`
	ChannelCount int           `json:"channel_count"`
	Address      string        `json:"address"`
}

// renameDeviceRequest is the body of PATCH /devices/{id}.
type renameDeviceRequest struct {
	Name string `json:"name"`
}

func (s *Server) viewDevice(info device.Info) deviceView {
	v := deviceView{Info: info, State: device.Disconnected.String()}
	if d, ok := s.registry.ByID(info.ID); ok {
		v.State = d.State().String()
	}
	return v
}

// handleListDevices returns the device catalogue.
//
// Query parameters:
//   - family: filter by device family (buwizz, sbrick, ...)
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	family := device.Family(r.URL.Query().Get("family"))
	if family != "" && !family.Valid() {
		writeValidation(w, "unknown family "+string(family))
		return
	}

	infos := s.registry.ListInfo()
	devices := make([]deviceView, 0, len(infos))
	for _, info := range infos {
		if family != "" && info.Family != family {
			continue
		}
		devices = append(devices, s.viewDevice(info))
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	info, err := s.registry.GetInfo(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.viewDevice(*info))
}

// handleRegisterDevice adds a device to the catalogue.
func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	info := &device.Info{
		ID:           req.ID,
		Name:         req.Name,
		Family:       req.Family,
		ChannelCount: req.ChannelCount,
		Address:      req.Address,
	}
	if err := s.registry.Register(r.Context(), info); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.auditLog("device.registered", "device", info.ID, subjectFromContext(r.Context()), map[string]any{
		"name":   info.Name,
		"family": string(info.Family),
	})
	writeJSON(w, http.StatusCreated, s.viewDevice(*info))
}

// handleRenameDevice changes a device's display name.
func (s *Server) handleRenameDevice(w http.ResponseWriter, r *http.Request) {
	var req renameDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	id := chi.URLParam(r, "id")
	info, err := s.registry.Rename(r.Context(), id, req.Name)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.auditLog("device.renamed", "device", id, subjectFromContext(r.Context()), map[string]any{"name": req.Name})
	writeJSON(w, http.StatusOK, s.viewDevice(*info))
}

// handleDeleteDevice removes a device from the catalogue. A device the
// running session drives cannot be removed.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if sess, ok := s.player.Current(); ok {
		for _, d := range sess.Devices() {
			if d.ID() == id {
				s.writeDomainError(w, fmt.Errorf("device %s: %w", id, errInUse))
				return
			}
		}
	}

	if err := s.registry.Delete(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.auditLog("device.deleted", "device", id, subjectFromContext(r.Context()), nil)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeviceStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deviceCounts())
}
