package creation

import "errors"

// Domain errors for the creation package.
//
// Validation errors wrap ErrInvalidAction as well as their specific
// sentinel, so both can be checked with errors.Is:
//
//	if errors.Is(err, creation.ErrInvalidAction) {
//	    // reject the request
//	}
var (
	// ErrNoDeviceSelected is returned when an action is saved without a device.
	ErrNoDeviceSelected = errors.New("creation: no device selected")

	// ErrInvalidAction is returned when action validation fails.
	ErrInvalidAction = errors.New("creation: invalid action")

	// ErrInvalidChannel is returned when a channel is outside the device's range.
	ErrInvalidChannel = errors.New("creation: invalid channel")

	// ErrInvalidPercent is returned when a percentage is outside 0-100.
	ErrInvalidPercent = errors.New("creation: invalid percentage")

	// ErrInvalidServoAngle is returned when a servo angle is outside 1-180.
	ErrInvalidServoAngle = errors.New("creation: invalid servo angle")

	// ErrUnknownOutputKind is returned for an unsupported output kind.
	ErrUnknownOutputKind = errors.New("creation: unknown output kind")

	// ErrUnknownCurve is returned when no response curve has the given name.
	ErrUnknownCurve = errors.New("creation: unknown axis characteristic")

	// ErrUnknownButtonMode is returned when no button mode has the given name.
	ErrUnknownButtonMode = errors.New("creation: unknown button type")

	// ErrReservedName is returned when registering a curve or mode over a built-in.
	ErrReservedName = errors.New("creation: name is built in")

	// ErrUnknownDevice is returned when an action references an unregistered device.
	ErrUnknownDevice = errors.New("creation: unknown device")

	// ErrEventRequired is returned when binding an action without an event.
	ErrEventRequired = errors.New("creation: event required")

	// ErrInvalidCreation is returned when a creation document is malformed.
	ErrInvalidCreation = errors.New("creation: invalid")

	// ErrCreationNotFound is returned when a creation ID does not exist.
	ErrCreationNotFound = errors.New("creation: not found")

	// ErrCreationExists is returned when importing a creation whose ID is taken.
	ErrCreationExists = errors.New("creation: already exists")

	// ErrEventNotFound is returned when a controller event ID does not exist.
	ErrEventNotFound = errors.New("creation: event not found")

	// ErrActionNotFound is returned when a controller action ID does not exist.
	ErrActionNotFound = errors.New("creation: action not found")
)
