package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// answerRequest is the body of POST /prompts/{id}/answer.
type answerRequest struct {
	Yes bool `json:"yes"`
}

// handleListPrompts returns the questions waiting for an answer.
func (s *Server) handleListPrompts(w http.ResponseWriter, _ *http.Request) {
	prompts := s.ui.Prompts()
	writeJSON(w, http.StatusOK, map[string]any{"prompts": prompts, "count": len(prompts)})
}

// handleAnswerPrompt answers a pending question.
func (s *Server) handleAnswerPrompt(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.ui.Answer(chi.URLParam(r, "id"), req.Yes); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListProgress returns the running progress indicators.
func (s *Server) handleListProgress(w http.ResponseWriter, _ *http.Request) {
	progress := s.ui.ActiveProgress()
	writeJSON(w, http.StatusOK, map[string]any{"progress": progress, "count": len(progress)})
}

// handleCancelProgress cancels a running, cancellable progress, such as a
// session connecting its devices.
func (s *Server) handleCancelProgress(w http.ResponseWriter, r *http.Request) {
	if err := s.ui.CancelProgress(chi.URLParam(r, "id")); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
