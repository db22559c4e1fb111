package creation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength      = 100
	maxCodeLength      = 64
	maxProfiles        = 32
	maxEventsPerProf   = 128
	maxActionsPerEvent = 16
	minServoAngle      = 1
	maxServoAngle      = 180
)

var validOutputKinds map[OutputKind]struct{}

func init() {
	validOutputKinds = make(map[OutputKind]struct{}, len(AllOutputKinds()))
	for _, k := range AllOutputKinds() {
		validOutputKinds[k] = struct{}{}
	}
}

// invalid wraps a specific sentinel under ErrInvalidAction.
func invalid(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", ErrInvalidAction, sentinel, fmt.Sprintf(format, args...))
}

// ValidateAction checks the device-independent fields of an action.
// Channel range against the bound device is enforced by ReconcileChannel
// and the Binder; curve and button mode names by Transform.Check.
func ValidateAction(a *Action) error {
	if a == nil {
		return ErrInvalidAction
	}
	if strings.TrimSpace(a.DeviceID) == "" {
		return ErrNoDeviceSelected
	}
	if a.Channel < 0 {
		return invalid(ErrInvalidChannel, "channel %d is negative", a.Channel)
	}
	if _, ok := validOutputKinds[a.OutputKind]; !ok {
		return invalid(ErrUnknownOutputKind, "%q", a.OutputKind)
	}
	if a.ButtonType == "" {
		return invalid(ErrUnknownButtonMode, "button_type is required")
	}
	if a.AxisCharacteristic == "" {
		return invalid(ErrUnknownCurve, "axis_characteristic is required")
	}
	if a.MaxOutputPercent < 0 || a.MaxOutputPercent > 100 {
		return invalid(ErrInvalidPercent, "max_output_percent %d must be 0-100", a.MaxOutputPercent)
	}
	if a.DeadZonePercent < 0 || a.DeadZonePercent > 100 {
		return invalid(ErrInvalidPercent, "dead_zone_percent %d must be 0-100", a.DeadZonePercent)
	}
	if a.MaxServoAngle < minServoAngle || a.MaxServoAngle > maxServoAngle {
		return invalid(ErrInvalidServoAngle, "max_servo_angle %d must be %d-%d", a.MaxServoAngle, minServoAngle, maxServoAngle)
	}
	return nil
}

// ChannelCounter is the part of a device ReconcileChannel needs.
type ChannelCounter interface {
	ChannelCount() int
}

// ReconcileChannel keeps a channel valid for a newly selected device:
// it returns 0 when current is not a channel of dev, otherwise current.
func ReconcileChannel(dev ChannelCounter, current int) int {
	if current < 0 || current >= dev.ChannelCount() {
		return 0
	}
	return current
}

// ValidateCreation checks a whole creation document. Every action is
// checked with ValidateAction and, when t is non-nil, Transform.Check.
func ValidateCreation(c *Creation, t *Transform) error {
	if c == nil {
		return ErrInvalidCreation
	}
	if err := validateName(c.Name); err != nil {
		return err
	}
	if len(c.Profiles) == 0 {
		return fmt.Errorf("%w: at least one profile is required", ErrInvalidCreation)
	}
	if len(c.Profiles) > maxProfiles {
		return fmt.Errorf("%w: exceeds maximum of %d profiles", ErrInvalidCreation, maxProfiles)
	}

	for pi := range c.Profiles {
		p := &c.Profiles[pi]
		if err := validateName(p.Name); err != nil {
			return fmt.Errorf("profile[%d]: %w", pi, err)
		}
		if len(p.Events) > maxEventsPerProf {
			return fmt.Errorf("%w: profile %q exceeds %d events", ErrInvalidCreation, p.Name, maxEventsPerProf)
		}

		seen := make(map[EventKey]struct{}, len(p.Events))
		for ei := range p.Events {
			e := &p.Events[ei]
			if err := validateEvent(e); err != nil {
				return fmt.Errorf("profile %q event[%d]: %w", p.Name, ei, err)
			}
			if _, dup := seen[e.Key()]; dup {
				return fmt.Errorf("%w: profile %q binds %s %q twice", ErrInvalidCreation, p.Name, e.Type, e.Code)
			}
			seen[e.Key()] = struct{}{}

			for ai := range e.Actions {
				a := &e.Actions[ai]
				err := ValidateAction(a)
				if err == nil && t != nil {
					err = t.Check(a)
				}
				if err != nil {
					return fmt.Errorf("profile %q %s %q action[%d]: %w", p.Name, e.Type, e.Code, ai, err)
				}
			}
		}
	}
	return nil
}

func validateEvent(e *Event) error {
	if e.Type != EventButton && e.Type != EventAxis {
		return fmt.Errorf("%w: event type %q must be button or axis", ErrInvalidCreation, e.Type)
	}
	code := strings.TrimSpace(e.Code)
	if code == "" || len(code) > maxCodeLength {
		return fmt.Errorf("%w: event code must be 1-%d characters", ErrInvalidCreation, maxCodeLength)
	}
	if len(e.Actions) > maxActionsPerEvent {
		return fmt.Errorf("%w: exceeds %d actions", ErrInvalidCreation, maxActionsPerEvent)
	}
	return nil
}

func validateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidCreation)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidCreation, maxNameLength)
	}
	return nil
}

// GenerateID creates a new UUID for a creation, profile, event or action.
func GenerateID() string {
	return uuid.New().String()
}
