package api

import (
	"net/http"
	"testing"

	"github.com/nerrad567/brickplay-core/internal/auth"
	"github.com/nerrad567/brickplay-core/internal/creation"
	"github.com/nerrad567/brickplay-core/internal/device"
)

// ─── Action form ───────────────────────────────────────────────────

func TestActionForm_NewAction(t *testing.T) {
	env := newTestEnv(t)
	env.registerDevice(t, "dev-1", device.FamilyBuWizz)
	env.importCrane(t)

	w := env.do(t, http.MethodGet, "/api/v1/events/ev-horn/action-form", env.token(t, auth.RoleViewer), nil)
	wantStatus(t, w, http.StatusOK)

	resp := decodeBody[struct {
		Event   map[string]any       `json:"event"`
		Input   creation.ActionInput `json:"input"`
		Options struct {
			Devices     []deviceOption `json:"devices"`
			OutputKinds []string       `json:"output_kinds"`
			ButtonTypes []string       `json:"button_types"`
		} `json:"options"`
	}](t, w)

	if resp.Event["code"] != "ButtonA" {
		t.Errorf("event = %v", resp.Event)
	}
	if resp.Input != creation.DefaultActionInput("dev-1") {
		t.Errorf("input = %+v, want defaults bound to dev-1", resp.Input)
	}
	if len(resp.Options.Devices) != 1 || resp.Options.Devices[0].ChannelCount != 4 {
		t.Errorf("devices = %+v", resp.Options.Devices)
	}
	if len(resp.Options.OutputKinds) != len(creation.AllOutputKinds()) {
		t.Errorf("output_kinds = %v", resp.Options.OutputKinds)
	}
	if len(resp.Options.ButtonTypes) < 2 {
		t.Errorf("button_types = %v, want the built-in modes", resp.Options.ButtonTypes)
	}
}

func TestActionForm_ExistingAction(t *testing.T) {
	env := newTestEnv(t)
	env.registerDevice(t, "dev-1", device.FamilyBuWizz)
	env.importCrane(t)
	viewer := env.token(t, auth.RoleViewer)

	w := env.do(t, http.MethodGet, "/api/v1/events/ev-boom/action-form?action_id=act-2", viewer, nil)
	wantStatus(t, w, http.StatusOK)
	resp := decodeBody[struct {
		Input creation.ActionInput `json:"input"`
	}](t, w)
	if resp.Input.ActionID != "act-2" || resp.Input.Channel != 1 || !resp.Input.Invert {
		t.Errorf("input = %+v", resp.Input)
	}

	w = env.do(t, http.MethodGet, "/api/v1/events/ev-boom/action-form?action_id=act-1", viewer, nil)
	wantStatus(t, w, http.StatusNotFound)

	w = env.do(t, http.MethodGet, "/api/v1/events/ev-missing/action-form", viewer, nil)
	wantStatus(t, w, http.StatusNotFound)
}

// ─── Binding ───────────────────────────────────────────────────────

func TestBindAction_CreateThenEdit(t *testing.T) {
	env := newTestEnv(t)
	env.registerDevice(t, "dev-1", device.FamilyBuWizz)
	env.importCrane(t)
	admin := env.token(t, auth.RoleAdmin)
	client := env.listen(t, ChannelEditor, ChannelUINavigate)

	w := env.do(t, http.MethodPost, "/api/v1/events/ev-horn/actions", admin, map[string]any{
		"device_id":   "dev-1",
		"channel":     2,
		"output_kind": "switch",
		"button_type": "toggle",
	})
	wantStatus(t, w, http.StatusCreated)
	created := decodeBody[creation.Action](t, w)
	if created.ID == "" || created.Channel != 2 || created.OutputKind != creation.OutputSwitch || created.ButtonType != creation.ButtonToggle {
		t.Fatalf("created = %+v", created)
	}

	change := payloadAs[editorChange](t, nextEvent(t, client, ChannelEditor))
	if change.EventID != "ev-horn" || change.Field != creation.FieldChannel || change.New != float64(2) {
		t.Errorf("first change = %+v, want channel 0 -> 2", change)
	}
	nextEvent(t, client, ChannelUINavigate)

	w = env.do(t, http.MethodPost, "/api/v1/events/ev-horn/actions", admin, map[string]any{
		"action_id": created.ID,
		"invert":    true,
	})
	wantStatus(t, w, http.StatusOK)
	edited := decodeBody[creation.Action](t, w)
	if edited.ID != created.ID || !edited.Invert || edited.Channel != 2 || edited.ButtonType != creation.ButtonToggle {
		t.Errorf("edited = %+v", edited)
	}

	w = env.do(t, http.MethodGet, "/api/v1/actions/"+created.ID, admin, nil)
	wantStatus(t, w, http.StatusOK)
	if got := decodeBody[creation.Action](t, w); !got.Invert {
		t.Error("stored action should be inverted")
	}

	event, err := env.creations.GetEvent(t.Context(), "ev-horn")
	if err != nil {
		t.Fatal(err)
	}
	if len(event.Actions) != 1 {
		t.Errorf("ev-horn actions = %d, want 1", len(event.Actions))
	}

	if logs := env.flushAudit(t); !hasAudit(logs, "action.saved", created.ID) {
		t.Error("missing action.saved audit entry")
	}
}

func TestBindAction_NoDevice(t *testing.T) {
	env := newTestEnv(t)
	env.importCrane(t)
	client := env.listen(t, ChannelUIMessage, ChannelUINavigate)

	w := env.do(t, http.MethodPost, "/api/v1/events/ev-horn/actions", env.token(t, auth.RoleAdmin), map[string]any{})
	wantStatus(t, w, http.StatusBadRequest)

	msg := payloadAs[Message](t, nextEvent(t, client, ChannelUIMessage))
	if msg.Title != creation.MsgWarningTitle || msg.Message != creation.MsgSelectDevice {
		t.Errorf("message = %+v", msg)
	}
	nextEvent(t, client, ChannelUINavigate)

	event, err := env.creations.GetEvent(t.Context(), "ev-horn")
	if err != nil {
		t.Fatal(err)
	}
	if len(event.Actions) != 0 {
		t.Error("nothing should be saved without a device")
	}
}

func TestBindAction_Rejected(t *testing.T) {
	env := newTestEnv(t)
	env.registerDevice(t, "dev-1", device.FamilyPoweredUp)
	env.importCrane(t)
	admin := env.token(t, auth.RoleAdmin)

	tests := []struct {
		name  string
		event string
		body  any
		want  int
	}{
		{"invalid json", "ev-horn", "{", http.StatusBadRequest},
		{"unknown event", "ev-missing", map[string]any{"device_id": "dev-1"}, http.StatusNotFound},
		{"unknown action", "ev-horn", map[string]any{"action_id": "act-nope"}, http.StatusNotFound},
		{"unknown device", "ev-horn", map[string]any{"device_id": "dev-9"}, http.StatusBadRequest},
		{"channel out of range", "ev-horn", map[string]any{"device_id": "dev-1", "channel": 2}, http.StatusBadRequest},
		{"unknown output kind", "ev-horn", map[string]any{"output_kind": "laser"}, http.StatusBadRequest},
		{"percent too large", "ev-stick", map[string]any{"dead_zone_percent": 101}, http.StatusBadRequest},
		{"servo angle zero", "ev-stick", map[string]any{"max_servo_angle": 0}, http.StatusBadRequest},
		{"unknown curve", "ev-stick", map[string]any{"axis_characteristic": "wobbly"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/events/"+tt.event+"/actions", admin, tt.body)
			wantStatus(t, w, tt.want)
		})
	}
}

func TestBindAction_ViewerForbidden(t *testing.T) {
	env := newTestEnv(t)
	env.importCrane(t)

	w := env.do(t, http.MethodPost, "/api/v1/events/ev-horn/actions", env.token(t, auth.RoleOperator), map[string]any{})
	wantStatus(t, w, http.StatusForbidden)
}

// ─── Deleting ──────────────────────────────────────────────────────

func TestDeleteAction_Confirmed(t *testing.T) {
	env := newTestEnv(t)
	env.importCrane(t)
	admin := env.token(t, auth.RoleAdmin)

	w := env.do(t, http.MethodDelete, "/api/v1/actions/act-1?confirm=true", admin, nil)
	wantStatus(t, w, http.StatusOK)
	resp := decodeBody[map[string]any](t, w)
	if resp["action_id"] != "act-1" || resp["deleted"] != true {
		t.Errorf("delete = %v", resp)
	}
	if len(env.ui.Prompts()) != 0 {
		t.Error("a confirmed delete should not ask")
	}

	w = env.do(t, http.MethodGet, "/api/v1/actions/act-1", admin, nil)
	wantStatus(t, w, http.StatusNotFound)

	w = env.do(t, http.MethodDelete, "/api/v1/actions/act-1?confirm=true", admin, nil)
	wantStatus(t, w, http.StatusNotFound)

	if logs := env.flushAudit(t); !hasAudit(logs, "action.deleted", "act-1") {
		t.Error("missing action.deleted audit entry")
	}
}

func TestDeleteAction_AsksUser(t *testing.T) {
	tests := []struct {
		name        string
		answer      bool
		wantDeleted bool
		wantStatus  int
	}{
		{"declined", false, false, http.StatusOK},
		{"accepted", true, true, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.importCrane(t)
			admin := env.token(t, auth.RoleAdmin)
			client := env.listen(t, ChannelUIQuestion, ChannelActionDeleted)

			w := env.do(t, http.MethodDelete, "/api/v1/actions/act-1", admin, nil)
			wantStatus(t, w, http.StatusAccepted)
			if resp := decodeBody[map[string]any](t, w); resp["pending"] != true {
				t.Errorf("delete = %v, want pending", resp)
			}

			question := payloadAs[Prompt](t, nextEvent(t, client, ChannelUIQuestion))
			if question.Question != creation.MsgConfirmDelete {
				t.Errorf("question = %q", question.Question)
			}

			w = env.do(t, http.MethodGet, "/api/v1/prompts", admin, nil)
			wantStatus(t, w, http.StatusOK)
			if list := decodeBody[map[string]any](t, w); list["count"] != float64(1) {
				t.Errorf("prompts = %v", list)
			}

			w = env.do(t, http.MethodPost, "/api/v1/prompts/"+question.ID+"/answer", admin, map[string]any{"yes": tt.answer})
			wantStatus(t, w, http.StatusNoContent)

			outcome := payloadAs[actionDeleteOutcome](t, nextEvent(t, client, ChannelActionDeleted))
			if outcome.ActionID != "act-1" || outcome.Deleted != tt.wantDeleted || outcome.Error != "" {
				t.Errorf("outcome = %+v", outcome)
			}

			w = env.do(t, http.MethodGet, "/api/v1/actions/act-1", admin, nil)
			wantStatus(t, w, tt.wantStatus)

			logs := env.flushAudit(t)
			if got := hasAudit(logs, "action.deleted", "act-1"); got != tt.wantDeleted {
				t.Errorf("action.deleted audited = %v, want %v", got, tt.wantDeleted)
			}
		})
	}
}

func TestDeleteAction_Unknown(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodDelete, "/api/v1/actions/act-nope", env.token(t, auth.RoleAdmin), nil)
	wantStatus(t, w, http.StatusNotFound)
}

func TestAnswerPrompt_Unknown(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, auth.RoleAdmin)

	w := env.do(t, http.MethodPost, "/api/v1/prompts/prm-nope/answer", admin, map[string]any{"yes": true})
	wantStatus(t, w, http.StatusNotFound)

	w = env.do(t, http.MethodPost, "/api/v1/prompts/prm-nope/answer", admin, "{")
	wantStatus(t, w, http.StatusBadRequest)

	w = env.do(t, http.MethodPost, "/api/v1/prompts/prm-nope/answer", env.token(t, auth.RoleOperator), map[string]any{"yes": true})
	wantStatus(t, w, http.StatusForbidden)
}
