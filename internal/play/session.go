package play

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/brickplay-core/internal/creation"
	"github.com/nerrad567/brickplay-core/internal/device"
)

// Progress texts shown while a session connects and tears down.
const (
	MsgConnecting    = "Connecting..."
	MsgDisconnecting = "Disconnecting..."
)

// Surface is the part of the user interaction surface a session uses.
// ShowProgress presents message while run executes and returns run's
// error; when cancellable, a user cancel cancels the context passed to run.
type Surface interface {
	ShowProgress(ctx context.Context, message string, cancellable bool, run func(ctx context.Context) error) error
	NavigateBack(ctx context.Context) error
}

// InputSource delivers raw controller events. The handler may be called
// from any goroutine until unsubscribe returns.
type InputSource interface {
	Subscribe(handler func(InputEvent)) (unsubscribe func() error, err error)
}

// SessionState is the lifecycle state of a session.
type SessionState string

const (
	StateIdle       SessionState = "idle"
	StateConnecting SessionState = "connecting"
	StatePlaying    SessionState = "playing"
	StateStopping   SessionState = "stopping"
	StateStopped    SessionState = "stopped"
	StateFailed     SessionState = "failed"
)

const defaultInputQueueSize = 64

// SessionConfig assembles a session.
type SessionConfig struct {
	ID        string
	Creation  *creation.Creation
	Devices   DeviceLookup
	Transform *creation.Transform
	Input     InputSource
	Surface   Surface

	Orchestrator OrchestratorOptions

	// InputQueueSize is the number of events buffered ahead of dispatch.
	// Events arriving while it is full are dropped.
	InputQueueSize int

	Logger    Logger
	Metrics   *Metrics
	Telemetry Telemetry
	Hub       EventHub
}

// Session plays one creation: it connects the creation's devices as a
// unit, routes controller input to them while running, and disconnects
// them when it ends. A session runs once.
type Session struct {
	id       string
	creation *creation.Creation
	devices  []device.Device

	selector *Selector
	router   *Router
	levels   *LevelBroadcaster
	orch     *Orchestrator

	input     InputSource
	surface   Surface
	queueSize int

	logger    Logger
	metrics   *Metrics
	telemetry Telemetry
	hub       EventHub

	mu        sync.RWMutex
	state     SessionState
	result    *Result
	startedAt time.Time
	dropped   int
}

// NewSession creates a session over a private copy of cfg.Creation. The
// device set is collected once, here.
func NewSession(cfg SessionConfig) (*Session, error) {
	snapshot := cfg.Creation.DeepCopy()
	selector, err := NewSelector(snapshot)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:        cfg.ID,
		creation:  snapshot,
		devices:   CollectDevices(snapshot, cfg.Devices),
		selector:  selector,
		input:     cfg.Input,
		surface:   cfg.Surface,
		queueSize: cfg.InputQueueSize,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		telemetry: cfg.Telemetry,
		hub:       cfg.Hub,
		state:     StateIdle,
	}
	if s.id == "" {
		s.id = creation.GenerateID()
	}
	if s.queueSize <= 0 {
		s.queueSize = defaultInputQueueSize
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	if s.telemetry == nil {
		s.telemetry = noopTelemetry{}
	}
	transform := cfg.Transform
	if transform == nil {
		transform = creation.NewTransform(nil, nil)
	}

	opts := RouterOptions{SessionID: s.id, Logger: s.logger, Metrics: s.metrics, Telemetry: s.telemetry}
	s.router = NewRouter(transform, cfg.Devices, selector, opts)
	s.levels = NewLevelBroadcaster(s.devices, opts)

	orchOpts := cfg.Orchestrator
	orchOpts.Logger = s.logger
	orchOpts.Metrics = s.metrics
	orchOpts.OnConnect = func(dev device.Device, connected bool, elapsed time.Duration) {
		s.telemetry.WriteConnectResult(s.id, dev.ID(), string(dev.Family()), connected, elapsed)
	}
	s.orch = NewOrchestrator(orchOpts)
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Creation returns the session's snapshot. Callers must not modify it.
func (s *Session) Creation() *creation.Creation { return s.creation }

// Devices returns the devices the session drives.
func (s *Session) Devices() []device.Device { return s.devices }

// SelectProfile makes a profile active for the next input event.
func (s *Session) SelectProfile(profileID string) error {
	if err := s.selector.Select(profileID); err != nil {
		return err
	}
	s.logger.Info("profile selected", "session_id", s.id, "profile_id", profileID)
	s.broadcast()
	return nil
}

// ActiveProfile returns the active profile.
func (s *Session) ActiveProfile() *creation.Profile { return s.selector.Active() }

// SetLevel broadcasts an output level to the session's devices of family.
func (s *Session) SetLevel(level int, family device.Family) LevelResult {
	return s.levels.SetLevel(level, family)
}

// Families returns the device families present in the session.
func (s *Session) Families() []device.Family { return s.levels.Families() }

// State returns the lifecycle state.
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Result returns the connect result, or nil before connecting finished.
func (s *Session) Result() *Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// Run executes the session bracket and blocks until ctx ends.
//
// Devices are connected under a cancellable "Connecting..." progress. If
// any device fails, or the progress is cancelled, every device is
// disconnected, navigation goes back and ErrConnectionFailed is returned.
// Otherwise input is subscribed and dispatched on the calling goroutine
// until ctx is cancelled. Whatever ends a connected session, input is
// then unsubscribed, devices are disconnected under "Disconnecting..."
// and navigation goes back.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return fmt.Errorf("%w: session %s already ran", ErrSessionActive, s.id)
	}
	s.state = StateConnecting
	s.mu.Unlock()
	s.broadcast()

	s.logger.Info("session connecting", "session_id", s.id, "creation_id", s.creation.ID, "devices", len(s.devices))
	s.telemetry.WriteSessionEvent(s.id, s.creation.ID, "connecting", len(s.devices))

	result, err := s.connect(ctx)
	if err != nil {
		s.fail(ctx)
		return err
	}
	s.setResult(result, StatePlaying)
	if s.metrics != nil {
		s.metrics.SessionsStarted.Inc()
		s.metrics.ActiveSessions.Inc()
	}
	s.telemetry.WriteSessionEvent(s.id, s.creation.ID, "started", len(s.devices))
	defer s.teardown(ctx)

	queue := make(chan InputEvent, s.queueSize)
	unsubscribe, err := s.input.Subscribe(func(ev InputEvent) {
		select {
		case queue <- ev:
		default:
			s.countDropped()
		}
	})
	if err != nil {
		return fmt.Errorf("subscribing to input: %w", err)
	}
	defer func() {
		if err := unsubscribe(); err != nil {
			s.logger.Warn("unsubscribing from input failed", "session_id", s.id, "error", err)
		}
	}()

	s.logger.Info("session playing", "session_id", s.id, "profile", s.selector.Active().Name)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-queue:
			s.router.Dispatch(ev)
		}
	}
}

// connect runs ConnectAll under the connecting progress.
func (s *Session) connect(ctx context.Context) (Result, error) {
	var (
		result Result
		ran    bool
	)
	progressErr := s.surface.ShowProgress(ctx, MsgConnecting, true, func(pctx context.Context) error {
		ran = true
		result = s.orch.ConnectAll(pctx, s.devices)
		if result.Status != StatusSuccess {
			return ErrConnectionFailed
		}
		return nil
	})

	switch {
	case !ran:
		s.setResult(Result{Status: StatusPartialFailure, Cancelled: true}, StateConnecting)
		return result, fmt.Errorf("%w: %w", ErrConnectionFailed, progressErr)
	case result.Status != StatusSuccess:
		s.setResult(result, StateConnecting)
		s.logger.Warn("session connect failed", "session_id", s.id, "failed", result.Failed, "cancelled", result.Cancelled)
		return result, fmt.Errorf("%w: %s", ErrConnectionFailed, describeFailure(result))
	}
	if progressErr != nil {
		s.logger.Warn("connecting progress reported an error", "session_id", s.id, "error", progressErr)
	}
	return result, nil
}

func describeFailure(r Result) string {
	if len(r.Failed) == 0 && r.Cancelled {
		return "cancelled"
	}
	return strings.Join(r.Failed, ", ")
}

func (s *Session) fail(ctx context.Context) {
	s.mu.Lock()
	s.state = StateFailed
	s.mu.Unlock()
	s.broadcast()

	if s.metrics != nil {
		s.metrics.SessionsFailed.Inc()
	}
	s.telemetry.WriteSessionEvent(s.id, s.creation.ID, "failed", len(s.devices))
	s.navigateBack(context.WithoutCancel(ctx))
}

// teardown disconnects every device and navigates back. It runs detached
// from ctx, which is usually already cancelled, bounded by the
// orchestrator's RollbackTimeout.
func (s *Session) teardown(ctx context.Context) {
	s.mu.Lock()
	s.state = StateStopping
	s.mu.Unlock()
	s.broadcast()

	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.orch.opts.RollbackTimeout)
	defer cancel()

	var (
		failures []DeviceFailure
		ran      bool
	)
	err := s.surface.ShowProgress(tctx, MsgDisconnecting, false, func(pctx context.Context) error {
		ran = true
		failures = s.orch.DisconnectAll(pctx, s.devices)
		return nil
	})
	if !ran {
		s.logger.Warn("disconnecting progress failed, disconnecting anyway", "session_id", s.id, "error", err)
		failures = s.orch.DisconnectAll(tctx, s.devices)
	}

	if s.metrics != nil {
		s.metrics.ActiveSessions.Dec()
	}
	s.telemetry.WriteSessionEvent(s.id, s.creation.ID, "stopped", len(s.devices))
	s.navigateBack(tctx)

	s.mu.Lock()
	s.state = StateStopped
	dropped := s.dropped
	s.mu.Unlock()
	s.broadcast()

	s.logger.Info("session stopped",
		"session_id", s.id,
		"disconnect_failures", len(failures),
		"input_dropped", dropped,
	)
}

func (s *Session) setResult(r Result, state SessionState) {
	s.mu.Lock()
	s.result = &r
	changed := s.state != state
	s.state = state
	if state == StatePlaying {
		s.startedAt = time.Now().UTC()
	}
	s.mu.Unlock()
	if changed {
		s.broadcast()
	}
}

func (s *Session) countDropped() {
	s.mu.Lock()
	s.dropped++
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.InputDropped.Inc()
	}
}

func (s *Session) navigateBack(ctx context.Context) {
	if err := s.surface.NavigateBack(ctx); err != nil {
		s.logger.Warn("navigating back failed", "session_id", s.id, "error", err)
	}
}

// DeviceStatus is a device as seen by a session.
type DeviceStatus struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Family device.Family `json:"family"`
	State  string        `json:"state"`
}

// SessionStatus is a point-in-time view of a session.
type SessionStatus struct {
	ID            string          `json:"id"`
	CreationID    string          `json:"creation_id"`
	CreationName  string          `json:"creation_name"`
	State         SessionState    `json:"state"`
	ActiveProfile string          `json:"active_profile_id"`
	Families      []device.Family `json:"families"`
	Devices       []DeviceStatus  `json:"devices"`
	Result        *Result         `json:"result,omitempty"`
	StartedAt     *time.Time      `json:"started_at,omitempty"`
	InputDropped  int             `json:"input_dropped"`
}

// Status returns a snapshot of the session.
func (s *Session) Status() SessionStatus {
	st := SessionStatus{
		ID:            s.id,
		CreationID:    s.creation.ID,
		CreationName:  s.creation.Name,
		ActiveProfile: s.selector.Active().ID,
		Families:      s.levels.Families(),
		Devices:       make([]DeviceStatus, 0, len(s.devices)),
	}
	for _, d := range s.devices {
		st.Devices = append(st.Devices, DeviceStatus{ID: d.ID(), Name: d.Name(), Family: d.Family(), State: d.State().String()})
	}

	s.mu.RLock()
	st.State = s.state
	st.Result = s.result
	st.InputDropped = s.dropped
	if !s.startedAt.IsZero() {
		t := s.startedAt
		st.StartedAt = &t
	}
	s.mu.RUnlock()
	return st
}

func (s *Session) broadcast() {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast("session.status", s.Status())
}
