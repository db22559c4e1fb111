package creation

import "time"

// OutputKind selects how an action's value is delivered to its channel.
type OutputKind string

const (
	// OutputMotor drives a continuous speed in [-1, 1].
	OutputMotor OutputKind = "motor"
	// OutputSwitch drives a stepped output: off or full travel either way.
	OutputSwitch OutputKind = "switch"
	// OutputServo drives an angle in [0, MaxServoAngle] degrees.
	OutputServo OutputKind = "servo"
)

// AllOutputKinds returns every supported output kind.
func AllOutputKinds() []OutputKind {
	return []OutputKind{OutputMotor, OutputSwitch, OutputServo}
}

// ButtonType names a button mode registered in a ButtonModeSet.
type ButtonType string

// Built-in button modes.
const (
	ButtonNormal ButtonType = "normal"
	ButtonToggle ButtonType = "toggle"
)

// AxisCharacteristic names a response curve registered in a CurveSet.
type AxisCharacteristic string

// AxisLinear is the built-in pass-through curve. Other characteristics
// are registered from configuration.
const AxisLinear AxisCharacteristic = "linear"

// EventType distinguishes buttons from axes.
type EventType string

const (
	EventButton EventType = "button"
	EventAxis   EventType = "axis"
)

// Defaults applied to a newly created action.
const (
	DefaultMaxOutputPercent = 100
	DefaultDeadZonePercent  = 0
	DefaultMaxServoAngle    = 90
)

// Action binds one controller event to one device channel together with
// the parameters that shape its output.
type Action struct {
	ID       string `json:"id"`
	DeviceID string `json:"device_id"`
	Channel  int    `json:"channel"`

	Invert             bool               `json:"invert"`
	OutputKind         OutputKind         `json:"output_kind"`
	ButtonType         ButtonType         `json:"button_type"`
	AxisCharacteristic AxisCharacteristic `json:"axis_characteristic"`

	MaxOutputPercent int `json:"max_output_percent"` // 0-100
	DeadZonePercent  int `json:"dead_zone_percent"`  // 0-100, axes only
	MaxServoAngle    int `json:"max_servo_angle"`    // 1-180 degrees

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EventKey identifies a controller input for routing.
type EventKey struct {
	Type EventType `json:"type"`
	Code string    `json:"code"`
}

// Event is one physical button or axis with its ordered actions.
type Event struct {
	ID      string    `json:"id"`
	Type    EventType `json:"type"`
	Code    string    `json:"code"` // e.g. "ButtonA", "X", "RightTrigger"
	Actions []Action  `json:"actions"`
}

// Key returns the routing identity of the event.
func (e *Event) Key() EventKey {
	return EventKey{Type: e.Type, Code: e.Code}
}

// Profile is a named, ordered set of events. Exactly one profile of a
// creation is active while playing.
type Profile struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Events []Event `json:"events"`
}

// FindEvent returns the event bound to key, or nil.
func (p *Profile) FindEvent(key EventKey) *Event {
	for i := range p.Events {
		if p.Events[i].Key() == key {
			return &p.Events[i]
		}
	}
	return nil
}

// Creation is a saved model build: its ordered controller profiles.
type Creation struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Profiles  []Profile `json:"profiles"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FindProfile returns the profile with the given id, or nil.
func (c *Creation) FindProfile(id string) *Profile {
	for i := range c.Profiles {
		if c.Profiles[i].ID == id {
			return &c.Profiles[i]
		}
	}
	return nil
}

// DeepCopy creates a complete independent copy of the Creation.
// Play sessions work on a copy so edits never reach a running session.
func (c *Creation) DeepCopy() *Creation {
	if c == nil {
		return nil
	}
	cpy := *c
	if c.Profiles != nil {
		cpy.Profiles = make([]Profile, len(c.Profiles))
		for i := range c.Profiles {
			cpy.Profiles[i] = *c.Profiles[i].DeepCopy()
		}
	}
	return &cpy
}

// DeepCopy creates a complete independent copy of the Profile.
func (p *Profile) DeepCopy() *Profile {
	if p == nil {
		return nil
	}
	cpy := *p
	if p.Events != nil {
		cpy.Events = make([]Event, len(p.Events))
		for i := range p.Events {
			cpy.Events[i] = *p.Events[i].DeepCopy()
		}
	}
	return &cpy
}

// DeepCopy creates a complete independent copy of the Event.
func (e *Event) DeepCopy() *Event {
	if e == nil {
		return nil
	}
	cpy := *e
	if e.Actions != nil {
		cpy.Actions = make([]Action, len(e.Actions))
		copy(cpy.Actions, e.Actions)
	}
	return &cpy
}

// ActionInput carries the user-editable fields of an action.
// An empty ActionID creates a new action; otherwise that action is replaced.
type ActionInput struct {
	ActionID string `json:"action_id,omitempty"`
	DeviceID string `json:"device_id"`
	Channel  int    `json:"channel"`

	Invert             bool               `json:"invert"`
	OutputKind         OutputKind         `json:"output_kind"`
	ButtonType         ButtonType         `json:"button_type"`
	AxisCharacteristic AxisCharacteristic `json:"axis_characteristic"`

	MaxOutputPercent int `json:"max_output_percent"`
	DeadZonePercent  int `json:"dead_zone_percent"`
	MaxServoAngle    int `json:"max_servo_angle"`
}

// DefaultActionInput returns the fields of a new action bound to deviceID.
func DefaultActionInput(deviceID string) ActionInput {
	return ActionInput{
		DeviceID:           deviceID,
		Channel:            0,
		OutputKind:         OutputMotor,
		ButtonType:         ButtonNormal,
		AxisCharacteristic: AxisLinear,
		MaxOutputPercent:   DefaultMaxOutputPercent,
		DeadZonePercent:    DefaultDeadZonePercent,
		MaxServoAngle:      DefaultMaxServoAngle,
	}
}

// InputFromAction returns the editable fields of an existing action.
func InputFromAction(a *Action) ActionInput {
	return ActionInput{
		ActionID:           a.ID,
		DeviceID:           a.DeviceID,
		Channel:            a.Channel,
		Invert:             a.Invert,
		OutputKind:         a.OutputKind,
		ButtonType:         a.ButtonType,
		AxisCharacteristic: a.AxisCharacteristic,
		MaxOutputPercent:   a.MaxOutputPercent,
		DeadZonePercent:    a.DeadZonePercent,
		MaxServoAngle:      a.MaxServoAngle,
	}
}

// toAction materialises the input as an action.
func (in ActionInput) toAction() *Action {
	return &Action{
		ID:                 in.ActionID,
		DeviceID:           in.DeviceID,
		Channel:            in.Channel,
		Invert:             in.Invert,
		OutputKind:         in.OutputKind,
		ButtonType:         in.ButtonType,
		AxisCharacteristic: in.AxisCharacteristic,
		MaxOutputPercent:   in.MaxOutputPercent,
		DeadZonePercent:    in.DeadZonePercent,
		MaxServoAngle:      in.MaxServoAngle,
	}
}
