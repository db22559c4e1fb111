package creation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/brickplay-core/internal/device"
)

// stubDevice is a Device with a fixed channel count.
type stubDevice struct {
	id       string
	channels int
}

func (d *stubDevice) ID() string                    { return d.id }
func (d *stubDevice) Name() string                  { return d.id }
func (d *stubDevice) Family() device.Family         { return device.FamilyBuWizz2 }
func (d *stubDevice) ChannelCount() int             { return d.channels }
func (d *stubDevice) State() device.ConnectionState { return device.Disconnected }
func (d *stubDevice) Connect(context.Context) (device.ConnectionState, error) {
	return device.Connected, nil
}
func (d *stubDevice) Disconnect(context.Context) (device.ConnectionState, error) {
	return device.Disconnected, nil
}
func (d *stubDevice) SetChannelOutput(int, float64) {}
func (d *stubDevice) SetLevel(int) error            { return nil }

// stubCatalog serves devices in insertion order.
type stubCatalog struct {
	devices []device.Device
}

func newStubCatalog(devs ...*stubDevice) *stubCatalog {
	c := &stubCatalog{}
	for _, d := range devs {
		c.devices = append(c.devices, d)
	}
	return c
}

func (c *stubCatalog) ByID(id string) (device.Device, bool) {
	for _, d := range c.devices {
		if d.ID() == id {
			return d, true
		}
	}
	return nil, false
}

func (c *stubCatalog) All() []device.Device { return c.devices }

// MockPersistence records calls and can inject failures.
type MockPersistence struct {
	mu       sync.Mutex
	upserts  []*Action
	deletes  []*Action
	eventIDs []string

	upsertErr error
	deleteErr error
}

func (m *MockPersistence) UpsertAction(_ context.Context, eventID string, a *Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if a.ID == "" {
		a.ID = GenerateID()
	}
	m.upserts = append(m.upserts, a)
	m.eventIDs = append(m.eventIDs, eventID)
	return nil
}

func (m *MockPersistence) DeleteAction(_ context.Context, a *Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deletes = append(m.deletes, a)
	return nil
}

func (m *MockPersistence) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.upserts) + len(m.deletes)
}

// recordingSurface implements Dialogs and Navigator, answering questions
// with answer and recording everything shown.
type recordingSurface struct {
	answer bool

	messages  []string
	questions []string
	progress  []string
	backs     int
}

func (s *recordingSurface) ShowMessage(_ context.Context, title, message string) error {
	s.messages = append(s.messages, title+": "+message)
	return nil
}

func (s *recordingSurface) ShowQuestion(_ context.Context, _, question string) (bool, error) {
	s.questions = append(s.questions, question)
	return s.answer, nil
}

func (s *recordingSurface) ShowProgress(ctx context.Context, message string, _ bool, run func(context.Context) error) error {
	s.progress = append(s.progress, message)
	return run(ctx)
}

func (s *recordingSurface) NavigateBack(context.Context) error {
	s.backs++
	return nil
}

func newTestBinder(devs ...*stubDevice) (*Binder, *MockPersistence, *recordingSurface) {
	persist := &MockPersistence{}
	surface := &recordingSurface{}
	b := NewBinder(persist, newStubCatalog(devs...), nil, surface, surface)
	return b, persist, surface
}

func testEvent() *Event {
	return &Event{ID: "ev-1", Type: EventAxis, Code: "X"}
}

// ─── BindAction ────────────────────────────────────────────────────────────

func TestBinder_BindAction_NoDevice(t *testing.T) {
	b, persist, surface := newTestBinder(&stubDevice{id: "bw-1", channels: 4})

	in := DefaultActionInput("")
	a, err := b.BindAction(context.Background(), testEvent(), in)
	if !errors.Is(err, ErrNoDeviceSelected) {
		t.Fatalf("BindAction() error = %v, want ErrNoDeviceSelected", err)
	}
	if a != nil {
		t.Errorf("BindAction() action = %+v, want nil", a)
	}
	if len(surface.messages) != 1 || surface.messages[0] != MsgWarningTitle+": "+MsgSelectDevice {
		t.Errorf("messages = %v, want exactly one select-device warning", surface.messages)
	}
	if persist.calls() != 0 {
		t.Errorf("persistence calls = %d, want 0", persist.calls())
	}
	if len(surface.progress) != 0 {
		t.Errorf("progress = %v, want none", surface.progress)
	}
	if surface.backs != 1 {
		t.Errorf("NavigateBack calls = %d, want 1", surface.backs)
	}
}

func TestBinder_BindAction_Saves(t *testing.T) {
	b, persist, surface := newTestBinder(&stubDevice{id: "bw-1", channels: 4})

	in := DefaultActionInput("bw-1")
	in.Channel = 2
	in.DeadZonePercent = 10
	a, err := b.BindAction(context.Background(), testEvent(), in)
	if err != nil {
		t.Fatalf("BindAction() error = %v", err)
	}
	if a.ID == "" {
		t.Error("saved action has no ID")
	}
	if a.Channel != 2 || a.DeadZonePercent != 10 {
		t.Errorf("saved action = %+v, want channel 2 dead zone 10", a)
	}
	if len(persist.upserts) != 1 || persist.eventIDs[0] != "ev-1" {
		t.Errorf("upserts = %d for events %v, want 1 for ev-1", len(persist.upserts), persist.eventIDs)
	}
	if len(surface.progress) != 1 || surface.progress[0] != MsgSavingProgress {
		t.Errorf("progress = %v, want [%s]", surface.progress, MsgSavingProgress)
	}
	if surface.backs != 1 {
		t.Errorf("NavigateBack calls = %d, want 1", surface.backs)
	}
}

func TestBinder_BindAction_ReconcilesChannel(t *testing.T) {
	b, _, _ := newTestBinder(&stubDevice{id: "pu-1", channels: 2})

	in := DefaultActionInput("pu-1")
	in.Channel = 3
	a, err := b.BindAction(context.Background(), testEvent(), in)
	if err != nil {
		t.Fatalf("BindAction() error = %v", err)
	}
	if a.Channel != 0 {
		t.Errorf("Channel = %d, want 0 after reconcile", a.Channel)
	}
}

func TestBinder_BindAction_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		event   *Event
		modify  func(in *ActionInput)
		wantErr error
	}{
		{"nil event", nil, nil, ErrEventRequired},
		{"unknown device", testEvent(), func(in *ActionInput) { in.DeviceID = "ghost" }, ErrUnknownDevice},
		{"bad percent", testEvent(), func(in *ActionInput) { in.MaxOutputPercent = 150 }, ErrInvalidPercent},
		{"bad servo angle", testEvent(), func(in *ActionInput) { in.MaxServoAngle = 0 }, ErrInvalidServoAngle},
		{"unknown curve", testEvent(), func(in *ActionInput) { in.AxisCharacteristic = "spline" }, ErrUnknownCurve},
		{"unknown output kind", testEvent(), func(in *ActionInput) { in.OutputKind = "led" }, ErrUnknownOutputKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, persist, surface := newTestBinder(&stubDevice{id: "bw-1", channels: 4})
			in := DefaultActionInput("bw-1")
			if tt.modify != nil {
				tt.modify(&in)
			}
			_, err := b.BindAction(context.Background(), tt.event, in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("BindAction() error = %v, want %v", err, tt.wantErr)
			}
			if persist.calls() != 0 {
				t.Errorf("persistence calls = %d, want 0", persist.calls())
			}
			if surface.backs != 0 {
				t.Errorf("NavigateBack calls = %d, want 0", surface.backs)
			}
		})
	}
}

func TestBinder_BindAction_PersistenceFailure(t *testing.T) {
	b, persist, surface := newTestBinder(&stubDevice{id: "bw-1", channels: 4})
	dbErr := errors.New("disk full")
	persist.upsertErr = dbErr

	a, err := b.BindAction(context.Background(), testEvent(), DefaultActionInput("bw-1"))
	if !errors.Is(err, dbErr) {
		t.Fatalf("BindAction() error = %v, want wrapped disk full", err)
	}
	if a != nil {
		t.Error("BindAction() returned an action that was not committed")
	}
	if surface.backs != 0 {
		t.Errorf("NavigateBack calls = %d, want 0 after failed save", surface.backs)
	}
}

// ─── DeleteAction ──────────────────────────────────────────────────────────

func TestBinder_DeleteAction_Nil(t *testing.T) {
	b, persist, surface := newTestBinder()

	deleted, err := b.DeleteAction(context.Background(), nil)
	if err != nil || deleted {
		t.Fatalf("DeleteAction(nil) = (%v, %v), want (false, nil)", deleted, err)
	}
	if len(surface.questions) != 0 || persist.calls() != 0 {
		t.Error("DeleteAction(nil) interacted with the user or persistence")
	}
}

func TestBinder_DeleteAction_Declined(t *testing.T) {
	b, persist, surface := newTestBinder()
	surface.answer = false

	deleted, err := b.DeleteAction(context.Background(), motorAction())
	if err != nil || deleted {
		t.Fatalf("DeleteAction() = (%v, %v), want (false, nil)", deleted, err)
	}
	if len(surface.questions) != 1 || surface.questions[0] != MsgConfirmDelete {
		t.Errorf("questions = %v, want [%s]", surface.questions, MsgConfirmDelete)
	}
	if persist.calls() != 0 {
		t.Errorf("persistence calls = %d, want 0", persist.calls())
	}
	if surface.backs != 0 {
		t.Errorf("NavigateBack calls = %d, want 0", surface.backs)
	}
}

func TestBinder_DeleteAction_Confirmed(t *testing.T) {
	b, persist, surface := newTestBinder()
	surface.answer = true

	deleted, err := b.DeleteAction(context.Background(), motorAction())
	if err != nil || !deleted {
		t.Fatalf("DeleteAction() = (%v, %v), want (true, nil)", deleted, err)
	}
	if len(persist.deletes) != 1 || persist.deletes[0].ID != "act-1" {
		t.Errorf("deletes = %v, want [act-1]", persist.deletes)
	}
	if len(surface.progress) != 1 || surface.progress[0] != MsgDeletingProgress {
		t.Errorf("progress = %v, want [%s]", surface.progress, MsgDeletingProgress)
	}
	if surface.backs != 1 {
		t.Errorf("NavigateBack calls = %d, want 1", surface.backs)
	}
}

func TestBinder_DeleteAction_PersistenceFailure(t *testing.T) {
	b, persist, surface := newTestBinder()
	surface.answer = true
	persist.deleteErr = ErrActionNotFound

	deleted, err := b.DeleteAction(context.Background(), motorAction())
	if !errors.Is(err, ErrActionNotFound) || deleted {
		t.Fatalf("DeleteAction() = (%v, %v), want (false, ErrActionNotFound)", deleted, err)
	}
	if surface.backs != 0 {
		t.Errorf("NavigateBack calls = %d, want 0", surface.backs)
	}
}
