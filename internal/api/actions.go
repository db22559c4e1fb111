package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/brickplay-core/internal/creation"
	"github.com/nerrad567/brickplay-core/internal/device"
)

// ChannelActionDeleted carries the outcome of a delete that waited for
// the user's confirmation.
const ChannelActionDeleted = "action.deleted"

// bindActionRequest is the body of POST /events/{eventID}/actions.
// Unset fields keep the edited action's value: the existing action's when
// action_id is given, otherwise the defaults of a new action.
type bindActionRequest struct {
	ActionID           string                       `json:"action_id"`
	DeviceID           *string                      `json:"device_id"`
	Channel            *int                         `json:"channel"`
	Invert             *bool                        `json:"invert"`
	OutputKind         *creation.OutputKind         `json:"output_kind"`
	ButtonType         *creation.ButtonType         `json:"button_type"`
	AxisCharacteristic *creation.AxisCharacteristic `json:"axis_characteristic"`
	MaxOutputPercent   *int                         `json:"max_output_percent"`
	DeadZonePercent    *int                         `json:"dead_zone_percent"`
	MaxServoAngle      *int                         `json:"max_servo_angle"`
}

// editorChange is broadcast on editor.change for every field an edit changes.
type editorChange struct {
	EventID  string `json:"event_id"`
	ActionID string `json:"action_id,omitempty"`
	creation.Change
}

// deviceOption is a device an action can be bound to.
type deviceOption struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Family       device.Family `json:"family"`
	ChannelCount int           `json:"channel_count"`
}

// actionDeleteOutcome is broadcast on action.deleted.
type actionDeleteOutcome struct {
	ActionID string `json:"action_id"`
	Deleted  bool   `json:"deleted"`
	Error    string `json:"error,omitempty"`
}

// loadEventAction loads the event and, when actionID is set, the action
// of that event being edited.
func (s *Server) loadEventAction(ctx context.Context, eventID, actionID string) (*creation.Event, *creation.Action, error) {
	event, err := s.creations.GetEvent(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	if actionID == "" {
		return event, nil, nil
	}
	for i := range event.Actions {
		if event.Actions[i].ID == actionID {
			return event, &event.Actions[i], nil
		}
	}
	return nil, nil, fmt.Errorf("%w: %s in event %s", creation.ErrActionNotFound, actionID, eventID)
}

// handleActionForm returns what an action editor starts from: the edited
// fields and the values each field can take.
//
// Query parameters:
//   - action_id: edit an existing action of the event instead of a new one
func (s *Server) handleActionForm(w http.ResponseWriter, r *http.Request) {
	event, existing, err := s.loadEventAction(r.Context(), chi.URLParam(r, "eventID"), r.URL.Query().Get("action_id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	editor := creation.NewActionEditor(s.registry, existing)

	devices := s.registry.All()
	options := make([]deviceOption, 0, len(devices))
	for _, d := range devices {
		options = append(options, deviceOption{ID: d.ID(), Name: d.Name(), Family: d.Family(), ChannelCount: d.ChannelCount()})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"event": map[string]any{"id": event.ID, "type": event.Type, "code": event.Code},
		"input": editor.Input(),
		"options": map[string]any{
			"devices":              options,
			"output_kinds":         creation.AllOutputKinds(),
			"button_types":         s.transform.Buttons().Names(),
			"axis_characteristics": s.transform.Curves().Names(),
		},
	})
}

// handleBindAction edits an action of an event and saves it.
//
// Fields are applied in a fixed order, device first, so a channel given
// together with a new device is checked against that device. Every field
// change is broadcast on editor.change as it happens.
func (s *Server) handleBindAction(w http.ResponseWriter, r *http.Request) { //nolint:gocognit,gocyclo // one branch per optional field
	var req bindActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	ctx := r.Context()
	eventID := chi.URLParam(r, "eventID")
	event, existing, err := s.loadEventAction(ctx, eventID, req.ActionID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	editor := creation.NewActionEditor(s.registry, existing)
	unsubscribe := editor.Subscribe(func(c creation.Change) {
		s.hub.Broadcast(ChannelEditor, editorChange{EventID: eventID, ActionID: req.ActionID, Change: c})
	})
	defer unsubscribe()

	if req.DeviceID != nil {
		if _, err := editor.SelectDevice(*req.DeviceID); err != nil {
			s.writeDomainError(w, err)
			return
		}
	}
	if req.Channel != nil {
		if _, err := editor.SetChannel(*req.Channel); err != nil {
			s.writeDomainError(w, err)
			return
		}
	}
	if req.Invert != nil {
		editor.SetInvert(*req.Invert)
	}
	if req.OutputKind != nil {
		if _, err := editor.SetOutputKind(*req.OutputKind); err != nil {
			s.writeDomainError(w, err)
			return
		}
	}
	if req.ButtonType != nil {
		editor.SetButtonType(*req.ButtonType)
	}
	if req.AxisCharacteristic != nil {
		editor.SetAxisCharacteristic(*req.AxisCharacteristic)
	}
	if req.MaxOutputPercent != nil {
		if _, err := editor.SetMaxOutputPercent(*req.MaxOutputPercent); err != nil {
			s.writeDomainError(w, err)
			return
		}
	}
	if req.DeadZonePercent != nil {
		if _, err := editor.SetDeadZonePercent(*req.DeadZonePercent); err != nil {
			s.writeDomainError(w, err)
			return
		}
	}
	if req.MaxServoAngle != nil {
		if _, err := editor.SetMaxServoAngle(*req.MaxServoAngle); err != nil {
			s.writeDomainError(w, err)
			return
		}
	}

	action, err := s.binder(s.ui).BindAction(ctx, event, editor.Input())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	status := http.StatusOK
	if existing == nil {
		status = http.StatusCreated
	}
	s.auditLog("action.saved", "action", action.ID, subjectFromContext(ctx), map[string]any{
		"event_id":  eventID,
		"device_id": action.DeviceID,
		"channel":   action.Channel,
	})
	writeJSON(w, status, action)
}

// handleGetAction returns one action.
func (s *Server) handleGetAction(w http.ResponseWriter, r *http.Request) {
	action, err := s.creations.GetAction(r.Context(), chi.URLParam(r, "actionID"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, action)
}

// handleDeleteAction removes an action.
//
// With confirm=true the caller has already confirmed and the action is
// removed before the response. Otherwise the question goes to the UI and
// the request returns 202 at once; the outcome is broadcast on
// action.deleted when the user answers.
func (s *Server) handleDeleteAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	action, err := s.creations.GetAction(ctx, chi.URLParam(r, "actionID"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	subject := subjectFromContext(ctx)

	confirm, _ := strconv.ParseBool(r.URL.Query().Get("confirm")) //nolint:errcheck // anything but a true value asks the user
	if confirm {
		deleted, err := s.binder(confirmedDialogs{s.ui}).DeleteAction(ctx, action)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		s.auditLog("action.deleted", "action", action.ID, subject, nil)
		writeJSON(w, http.StatusOK, map[string]any{"action_id": action.ID, "deleted": deleted})
		return
	}

	go s.deleteAfterConfirmation(action, subject)
	writeJSON(w, http.StatusAccepted, map[string]any{"action_id": action.ID, "pending": true})
}

// deleteAfterConfirmation asks the user and deletes on yes. It is bounded
// by the server's lifetime and the prompt timeout.
func (s *Server) deleteAfterConfirmation(action *creation.Action, subject string) {
	deleted, err := s.binder(s.ui).DeleteAction(s.backgroundContext(), action)

	outcome := actionDeleteOutcome{ActionID: action.ID, Deleted: deleted}
	if err != nil {
		outcome.Error = err.Error()
		s.logger.Warn("deleting action failed", "action_id", action.ID, "error", err)
	}
	if deleted {
		s.auditLog("action.deleted", "action", action.ID, subject, nil)
	}
	s.hub.Broadcast(ChannelActionDeleted, outcome)
}

// binder builds a binder that asks through dialogs and navigates the UI.
func (s *Server) binder(dialogs creation.Dialogs) *creation.Binder {
	b := creation.NewBinder(s.creations, s.registry, s.transform, dialogs, s.ui)
	b.SetLogger(s.logger)
	return b
}
