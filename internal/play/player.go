package play

import (
	"context"
	"errors"
	"sync"

	"github.com/nerrad567/brickplay-core/internal/audit"
	"github.com/nerrad567/brickplay-core/internal/creation"
	"github.com/nerrad567/brickplay-core/internal/device"
)

// PlayerConfig holds what every session of a Player shares.
type PlayerConfig struct {
	Devices      DeviceLookup
	Transform    *creation.Transform
	Input        InputSource
	Surface      Surface
	Orchestrator OrchestratorOptions

	InputQueueSize int

	Logger    Logger
	Metrics   *Metrics
	Telemetry Telemetry
	Hub       EventHub
	Audit     AuditRecorder // optional
}

// Player runs at most one session at a time. A new session cannot start
// until the previous one has finished its teardown.
type Player struct {
	cfg    PlayerConfig
	logger Logger

	mu      sync.Mutex
	current *running
}

type running struct {
	session *Session
	subject string
	cancel  context.CancelFunc
	done    chan struct{}
	err     error // set before done is closed
}

func (r *running) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// NewPlayer creates a player.
func NewPlayer(cfg PlayerConfig) *Player {
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Player{cfg: cfg, logger: logger}
}

// Start begins a session for c in the background and returns it while it
// connects. subject names who started it for the audit trail; empty means
// the system did. Returns
// ErrSessionActive while another session runs or tears down.
func (p *Player) Start(c *creation.Creation, subject string) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil && !p.current.finished() {
		return nil, ErrSessionActive
	}

	session, err := NewSession(SessionConfig{
		Creation:       c,
		Devices:        p.cfg.Devices,
		Transform:      p.cfg.Transform,
		Input:          p.cfg.Input,
		Surface:        p.cfg.Surface,
		Orchestrator:   p.cfg.Orchestrator,
		InputQueueSize: p.cfg.InputQueueSize,
		Logger:         p.logger,
		Metrics:        p.cfg.Metrics,
		Telemetry:      p.cfg.Telemetry,
		Hub:            p.cfg.Hub,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &running{session: session, subject: subject, cancel: cancel, done: make(chan struct{})}
	p.current = r

	p.record("session.start", session, subject, nil)
	go p.run(ctx, r)
	return session, nil
}

func (p *Player) run(ctx context.Context, r *running) {
	defer close(r.done)
	defer r.cancel()

	err := r.session.Run(ctx)
	r.err = err

	switch {
	case errors.Is(err, ErrConnectionFailed):
		details := map[string]any{"error": err.Error()}
		if res := r.session.Result(); res != nil {
			details["failed"] = res.Failed
			details["cancelled"] = res.Cancelled
		}
		p.record("session.failed", r.session, r.subject, details)
	case err != nil:
		p.logger.Error("session ended with error", "session_id", r.session.ID(), "error", err)
		p.record("session.failed", r.session, r.subject, map[string]any{"error": err.Error()})
	default:
		p.record("session.stop", r.session, r.subject, nil)
	}
}

// Stop cancels the current session, including a connect in progress, and
// waits for its teardown or for ctx. It returns ErrNoSession when nothing
// is running.
func (p *Player) Stop(ctx context.Context) error {
	p.mu.Lock()
	r := p.current
	p.mu.Unlock()

	if r == nil || r.finished() {
		return ErrNoSession
	}
	r.cancel()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until the current session has finished and returns its
// Run error.
func (p *Player) Wait(ctx context.Context) error {
	p.mu.Lock()
	r := p.current
	p.mu.Unlock()

	if r == nil {
		return ErrNoSession
	}
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Current returns the running session.
func (p *Player) Current() (*Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil || p.current.finished() {
		return nil, false
	}
	return p.current.session, true
}

// SelectProfile changes the running session's active profile.
func (p *Player) SelectProfile(profileID string) error {
	s, ok := p.Current()
	if !ok {
		return ErrNoSession
	}
	return s.SelectProfile(profileID)
}

// SetLevel broadcasts an output level to the running session's devices
// of family.
func (p *Player) SetLevel(level int, family device.Family) (LevelResult, error) {
	s, ok := p.Current()
	if !ok {
		return LevelResult{}, ErrNoSession
	}
	return s.SetLevel(level, family), nil
}

// PlayerStatus reports the player's current or most recent session.
type PlayerStatus struct {
	Active    bool           `json:"active"`
	Session   *SessionStatus `json:"session,omitempty"`
	LastError string         `json:"last_error,omitempty"`
}

// Status returns the state of the current or most recent session.
func (p *Player) Status() PlayerStatus {
	p.mu.Lock()
	r := p.current
	p.mu.Unlock()

	if r == nil {
		return PlayerStatus{}
	}
	st := r.session.Status()
	status := PlayerStatus{Active: !r.finished(), Session: &st}
	if !status.Active && r.err != nil {
		status.LastError = r.err.Error()
	}
	return status
}

// Shutdown stops any running session, for process exit.
func (p *Player) Shutdown(ctx context.Context) error {
	if err := p.Stop(ctx); err != nil && !errors.Is(err, ErrNoSession) {
		return err
	}
	return nil
}

func (p *Player) record(action string, s *Session, subject string, details map[string]any) {
	if p.cfg.Audit == nil {
		return
	}
	if details == nil {
		details = map[string]any{}
	}
	details["creation_id"] = s.Creation().ID
	details["devices"] = len(s.Devices())

	source := audit.SourceAPI
	if subject == "" {
		source = audit.SourceSystem
	}
	entry := &audit.AuditLog{
		Action:     action,
		EntityType: "session",
		EntityID:   s.ID(),
		Subject:    subject,
		Source:     source,
		Details:    details,
	}
	if err := p.cfg.Audit.Create(context.Background(), entry); err != nil {
		p.logger.Warn("recording audit entry failed", "action", action, "error", err)
	}
}
