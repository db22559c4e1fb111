package play

import (
	"github.com/nerrad567/brickplay-core/internal/creation"
)

// InputEvent is one raw controller event.
//
// Axis values are positions in [-1, 1]. Button values are 0 when released
// and non-zero when pressed.
type InputEvent struct {
	ControllerID string             `json:"controller_id,omitempty"`
	Type         creation.EventType `json:"type"`
	Code         string             `json:"code"`
	Value        float64            `json:"value"`
}

// Key returns the routing identity of the event.
func (e InputEvent) Key() creation.EventKey {
	return creation.EventKey{Type: e.Type, Code: e.Code}
}

// Pressed reports whether a button event is a press.
func (e InputEvent) Pressed() bool {
	return e.Value != 0
}

// RouterOptions carries a Router's optional collaborators.
type RouterOptions struct {
	SessionID string
	Logger    Logger
	Metrics   *Metrics
	Telemetry Telemetry
}

// Router turns controller events into channel outputs using the active
// profile. It is not safe for concurrent use: a session dispatches from a
// single goroutine.
type Router struct {
	transform *creation.Transform
	devices   DeviceLookup
	selector  *Selector

	// Button mode memory, keyed by action id.
	buttons map[string]*creation.ButtonState

	sessionID string
	logger    Logger
	metrics   *Metrics
	telemetry Telemetry
}

// NewRouter creates a router.
func NewRouter(transform *creation.Transform, devices DeviceLookup, selector *Selector, opts RouterOptions) *Router {
	r := &Router{
		transform: transform,
		devices:   devices,
		selector:  selector,
		buttons:   make(map[string]*creation.ButtonState),
		sessionID: opts.SessionID,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		telemetry: opts.Telemetry,
	}
	if r.logger == nil {
		r.logger = noopLogger{}
	}
	if r.telemetry == nil {
		r.telemetry = noopTelemetry{}
	}
	return r
}

// Dispatch routes ev through the active profile and returns the number of
// outputs handed to devices. Events without a binding are dropped and
// counted as routing misses. An action whose device is gone, or whose
// output cannot be computed, is skipped without affecting the others.
func (r *Router) Dispatch(ev InputEvent) int {
	profile := r.selector.Active()
	event := profile.FindEvent(ev.Key())
	if event == nil {
		if r.metrics != nil {
			r.metrics.RoutingMisses.Inc()
		}
		r.logger.Debug("no binding for input", "type", ev.Type, "code", ev.Code, "profile", profile.Name)
		return 0
	}

	delivered := 0
	for i := range event.Actions {
		a := &event.Actions[i]

		dev, ok := r.devices.ByID(a.DeviceID)
		if !ok {
			r.logger.Debug("bound device missing", "action_id", a.ID, "device_id", a.DeviceID)
			continue
		}

		value, emit, err := r.output(a, ev)
		if err != nil {
			r.logger.Warn("computing output failed", "action_id", a.ID, "error", err)
			continue
		}
		if !emit {
			continue
		}

		dev.SetChannelOutput(a.Channel, value)
		delivered++
		if r.metrics != nil {
			r.metrics.Outputs.Inc()
		}
		r.telemetry.WriteChannelOutput(r.sessionID, a.DeviceID, a.Channel, value)
	}
	return delivered
}

func (r *Router) output(a *creation.Action, ev InputEvent) (float64, bool, error) {
	if ev.Type == creation.EventAxis {
		v, err := r.transform.Axis(a, ev.Value)
		return v, err == nil, err
	}

	state, ok := r.buttons[a.ID]
	if !ok {
		state = &creation.ButtonState{}
		r.buttons[a.ID] = state
	}
	return r.transform.Button(a, state, ev.Pressed())
}
