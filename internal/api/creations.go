package api

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/brickplay-core/internal/creation"
)

// creationSummary is a creation without its event tree.
type creationSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Profiles  int       `json:"profiles"`
	Events    int       `json:"events"`
	Actions   int       `json:"actions"`
	Devices   []string  `json:"devices"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func summarise(c *creation.Creation) creationSummary {
	sum := creationSummary{
		ID:        c.ID,
		Name:      c.Name,
		Profiles:  len(c.Profiles),
		Devices:   []string{},
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	seen := make(map[string]bool)
	for _, p := range c.Profiles {
		sum.Events += len(p.Events)
		for _, e := range p.Events {
			sum.Actions += len(e.Actions)
			for _, a := range e.Actions {
				if !seen[a.DeviceID] {
					seen[a.DeviceID] = true
					sum.Devices = append(sum.Devices, a.DeviceID)
				}
			}
		}
	}
	return sum
}

// handleListCreations returns a summary of every creation.
func (s *Server) handleListCreations(w http.ResponseWriter, r *http.Request) {
	creations, err := s.creations.ListCreations(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	out := make([]creationSummary, 0, len(creations))
	for i := range creations {
		out = append(out, summarise(&creations[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"creations": out, "count": len(out)})
}

// handleGetCreation returns a creation with all profiles, events and actions.
func (s *Server) handleGetCreation(w http.ResponseWriter, r *http.Request) {
	c, err := s.creations.GetCreation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleImportCreation stores a creation document sent as YAML or JSON.
// Actions bound to devices missing from the catalogue are accepted and
// reported; a session skips them until the device is registered.
func (s *Server) handleImportCreation(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "failed to read body")
		return
	}

	c, err := creation.LoadYAML(data, s.transform)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if err := s.creations.CreateCreation(r.Context(), c); err != nil {
		s.writeDomainError(w, err)
		return
	}

	sum := summarise(c)
	missing := []string{}
	for _, id := range sum.Devices {
		if _, ok := s.registry.ByID(id); !ok {
			missing = append(missing, id)
		}
	}

	s.auditLog("creation.imported", "creation", c.ID, subjectFromContext(r.Context()), map[string]any{
		"name":     c.Name,
		"profiles": sum.Profiles,
		"actions":  sum.Actions,
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"creation":        c,
		"unknown_devices": missing,
	})
}

// handleDeleteCreation removes a creation. The creation being played
// cannot be removed.
func (s *Server) handleDeleteCreation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if sess, ok := s.player.Current(); ok && sess.Creation().ID == id {
		s.writeDomainError(w, fmt.Errorf("creation %s: %w", id, errInUse))
		return
	}

	if err := s.creations.DeleteCreation(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.auditLog("creation.deleted", "creation", id, subjectFromContext(r.Context()), nil)
	w.WriteHeader(http.StatusNoContent)
}
