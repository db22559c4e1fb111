package api

import (
	"net/http"
	"testing"

	"github.com/nerrad567/brickplay-core/internal/auth"
	"github.com/nerrad567/brickplay-core/internal/device"
	"github.com/nerrad567/brickplay-core/internal/play"
)

// startCrane starts the crane creation and waits until it plays.
func (e *testEnv) startCrane(t *testing.T, token string) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/session", token, map[string]any{"creation_id": "cr-crane"})
	wantStatus(t, w, http.StatusAccepted)

	waitFor(t, "session playing", func() bool {
		st := e.player.Status()
		return st.Session != nil && st.Session.State == play.StatePlaying
	})
}

func TestSession_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.registerDevice(t, "dev-1", device.FamilyBuWizz)
	env.importCrane(t)
	operator := env.token(t, auth.RoleOperator)
	client := env.listen(t, ChannelSession)

	w := env.do(t, http.MethodGet, "/api/v1/session", operator, nil)
	wantStatus(t, w, http.StatusOK)
	if st := decodeBody[play.PlayerStatus](t, w); st.Active || st.Session != nil {
		t.Errorf("idle status = %+v", st)
	}

	env.startCrane(t, operator)

	w = env.do(t, http.MethodGet, "/api/v1/session", operator, nil)
	wantStatus(t, w, http.StatusOK)
	st := decodeBody[play.PlayerStatus](t, w)
	if !st.Active || st.Session.CreationID != "cr-crane" || st.Session.ActiveProfile != "pr-drive" {
		t.Fatalf("playing status = %+v", st)
	}
	if len(st.Session.Devices) != 1 || st.Session.Devices[0].State != "connected" {
		t.Errorf("devices = %+v", st.Session.Devices)
	}

	if status := payloadAs[play.SessionStatus](t, nextEvent(t, client, ChannelSession)); status.CreationID != "cr-crane" {
		t.Errorf("broadcast status = %+v", status)
	}

	w = env.do(t, http.MethodPost, "/api/v1/session", operator, map[string]any{"creation_id": "cr-crane"})
	wantStatus(t, w, http.StatusConflict)

	w = env.do(t, http.MethodPut, "/api/v1/session/profile", operator, map[string]any{"profile_id": "pr-boom"})
	wantStatus(t, w, http.StatusOK)
	if st := decodeBody[play.PlayerStatus](t, w); st.Session.ActiveProfile != "pr-boom" {
		t.Errorf("active profile = %s, want pr-boom", st.Session.ActiveProfile)
	}

	w = env.do(t, http.MethodPut, "/api/v1/session/profile", operator, map[string]any{"profile_id": "pr-nope"})
	wantStatus(t, w, http.StatusNotFound)

	w = env.do(t, http.MethodPut, "/api/v1/session/level", operator, map[string]any{"family": "buwizz", "level": 2})
	wantStatus(t, w, http.StatusOK)
	level := decodeBody[play.LevelResult](t, w)
	if len(level.Applied) != 1 || level.Applied[0] != "dev-1" || len(level.Failures) != 0 {
		t.Errorf("level = %+v", level)
	}

	w = env.do(t, http.MethodPut, "/api/v1/session/level", operator, map[string]any{"family": "buwizz", "level": 9})
	wantStatus(t, w, http.StatusOK)
	if level := decodeBody[play.LevelResult](t, w); len(level.Failures) != 1 || len(level.Applied) != 0 {
		t.Errorf("out-of-range level = %+v, want one failure", level)
	}

	w = env.do(t, http.MethodDelete, "/api/v1/session", operator, nil)
	wantStatus(t, w, http.StatusOK)
	st = decodeBody[play.PlayerStatus](t, w)
	if st.Active || st.Session.State != play.StateStopped {
		t.Errorf("stopped status = %+v", st)
	}

	w = env.do(t, http.MethodDelete, "/api/v1/session", operator, nil)
	wantStatus(t, w, http.StatusConflict)
}

func TestSession_StartRejected(t *testing.T) {
	env := newTestEnv(t)
	env.importCrane(t)
	operator := env.token(t, auth.RoleOperator)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"invalid json", "{", http.StatusBadRequest},
		{"missing creation", map[string]any{}, http.StatusBadRequest},
		{"unknown creation", map[string]any{"creation_id": "cr-nope"}, http.StatusNotFound},
		{"unknown profile", map[string]any{"creation_id": "cr-crane", "profile_id": "pr-nope"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/session", operator, tt.body)
			wantStatus(t, w, tt.want)
		})
	}

	if _, ok := env.player.Current(); ok {
		t.Error("no session should have started")
	}
}

func TestSession_StartWithProfile(t *testing.T) {
	env := newTestEnv(t)
	env.registerDevice(t, "dev-1", device.FamilyBuWizz)
	env.importCrane(t)

	w := env.do(t, http.MethodPost, "/api/v1/session", env.token(t, auth.RoleOperator), map[string]any{
		"creation_id": "cr-crane",
		"profile_id":  "pr-boom",
	})
	wantStatus(t, w, http.StatusAccepted)

	sess, ok := env.player.Current()
	if !ok {
		t.Fatal("session should be running")
	}
	if got := sess.ActiveProfile().ID; got != "pr-boom" {
		t.Errorf("active profile = %s, want pr-boom", got)
	}
}

func TestSession_ControlWithoutSession(t *testing.T) {
	env := newTestEnv(t)
	operator := env.token(t, auth.RoleOperator)

	w := env.do(t, http.MethodPut, "/api/v1/session/profile", operator, map[string]any{"profile_id": "pr-drive"})
	wantStatus(t, w, http.StatusConflict)

	w = env.do(t, http.MethodPut, "/api/v1/session/profile", operator, map[string]any{})
	wantStatus(t, w, http.StatusBadRequest)

	w = env.do(t, http.MethodPut, "/api/v1/session/level", operator, map[string]any{"family": "buwizz", "level": 1})
	wantStatus(t, w, http.StatusConflict)

	w = env.do(t, http.MethodPut, "/api/v1/session/level", operator, map[string]any{"family": "lego", "level": 1})
	wantStatus(t, w, http.StatusBadRequest)

	w = env.do(t, http.MethodPost, "/api/v1/progress/prg-nope/cancel", operator, nil)
	wantStatus(t, w, http.StatusNotFound)
}

func TestSession_ViewerCannotControl(t *testing.T) {
	env := newTestEnv(t)
	viewer := env.token(t, auth.RoleViewer)

	w := env.do(t, http.MethodGet, "/api/v1/session", viewer, nil)
	wantStatus(t, w, http.StatusOK)

	for _, path := range []string{"/api/v1/session/profile", "/api/v1/session/level"} {
		w = env.do(t, http.MethodPut, path, viewer, map[string]any{})
		wantStatus(t, w, http.StatusForbidden)
	}
	w = env.do(t, http.MethodDelete, "/api/v1/session", viewer, nil)
	wantStatus(t, w, http.StatusForbidden)
}

func TestSession_ProtectsWhatItPlays(t *testing.T) {
	env := newTestEnv(t)
	env.registerDevice(t, "dev-1", device.FamilyBuWizz)
	env.registerDevice(t, "dev-2", device.FamilySBrick)
	env.importCrane(t)
	admin := env.token(t, auth.RoleAdmin)
	env.startCrane(t, admin)

	w := env.do(t, http.MethodDelete, "/api/v1/devices/dev-1", admin, nil)
	wantStatus(t, w, http.StatusConflict)

	w = env.do(t, http.MethodDelete, "/api/v1/creations/cr-crane", admin, nil)
	wantStatus(t, w, http.StatusConflict)

	w = env.do(t, http.MethodDelete, "/api/v1/devices/dev-2", admin, nil)
	wantStatus(t, w, http.StatusNoContent)

	w = env.do(t, http.MethodGet, "/api/v1/metrics", "", nil)
	wantStatus(t, w, http.StatusOK)
	if m := decodeBody[SystemMetrics](t, w); !m.Session.Active || m.Session.CreationID != "cr-crane" {
		t.Errorf("session metrics = %+v", m.Session)
	}

	w = env.do(t, http.MethodDelete, "/api/v1/session", admin, nil)
	wantStatus(t, w, http.StatusOK)

	w = env.do(t, http.MethodDelete, "/api/v1/creations/cr-crane", admin, nil)
	wantStatus(t, w, http.StatusNoContent)
}

func TestSession_AuditTrail(t *testing.T) {
	env := newTestEnv(t)
	env.registerDevice(t, "dev-1", device.FamilyBuWizz)
	env.importCrane(t)
	operator := env.token(t, auth.RoleOperator)
	env.startCrane(t, operator)

	w := env.do(t, http.MethodDelete, "/api/v1/session", operator, nil)
	wantStatus(t, w, http.StatusOK)

	w = env.do(t, http.MethodGet, "/api/v1/audit?entity_type=session", operator, nil)
	wantStatus(t, w, http.StatusOK)

	actions := map[string]bool{}
	for _, l := range decodeBody[struct {
		Logs []struct {
			Action string `json:"action"`
		} `json:"logs"`
	}](t, w).Logs {
		actions[l.Action] = true
	}
	if !actions["session.start"] || !actions["session.stop"] {
		t.Errorf("session audit actions = %v", actions)
	}
}
