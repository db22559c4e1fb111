package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nerrad567/brickplay-core/internal/device"
	"github.com/nerrad567/brickplay-core/internal/play"
)

// startSessionRequest is the body of POST /session.
type startSessionRequest struct {
	CreationID string `json:"creation_id"`
	ProfileID  string `json:"profile_id"` // optional: defaults to the first profile
}

// selectProfileRequest is the body of PUT /session/profile.
type selectProfileRequest struct {
	ProfileID string `json:"profile_id"`
}

// setLevelRequest is the body of PUT /session/level.
type setLevelRequest struct {
	Family device.Family `json:"family"`
	Level  int           `json:"level"`
}

// handleSessionStatus returns the current or most recent session.
func (s *Server) handleSessionStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.player.Status())
}

// handleStartSession starts playing a creation. The session connects in
// the background; progress is broadcast on ui.progress and the outcome on
// session.status.
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.CreationID == "" {
		writeValidation(w, "creation_id is required")
		return
	}

	c, err := s.creations.GetCreation(r.Context(), req.CreationID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if req.ProfileID != "" && c.FindProfile(req.ProfileID) == nil {
		s.writeDomainError(w, fmt.Errorf("%w: %s", play.ErrProfileNotFound, req.ProfileID))
		return
	}

	sess, err := s.player.Start(c, subjectFromContext(r.Context()))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if req.ProfileID != "" {
		if err := sess.SelectProfile(req.ProfileID); err != nil {
			s.logger.Warn("selecting start profile failed", "session_id", sess.ID(), "error", err)
		}
	}

	writeJSON(w, http.StatusAccepted, sess.Status())
}

// handleStopSession stops the running session and waits for its teardown.
func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), gracefulShutdownTimeout)
	defer cancel()

	if err := s.player.Stop(ctx); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.player.Status())
}

// handleSelectProfile switches the running session's active profile.
func (s *Server) handleSelectProfile(w http.ResponseWriter, r *http.Request) {
	var req selectProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.ProfileID == "" {
		writeValidation(w, "profile_id is required")
		return
	}

	if err := s.player.SelectProfile(req.ProfileID); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.player.Status())
}

// handleSetLevel broadcasts an output level to the session's devices of a
// family. Devices that reject the level are reported, not fatal.
func (s *Server) handleSetLevel(w http.ResponseWriter, r *http.Request) {
	var req setLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if !req.Family.Valid() {
		writeValidation(w, "unknown family "+string(req.Family))
		return
	}

	result, err := s.player.SetLevel(req.Level, req.Family)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
