package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device with an ID that already exists.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidName is returned when a device name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidFamily is returned when a family value is not recognised.
	ErrInvalidFamily = errors.New("device: invalid family")

	// ErrInvalidChannelCount is returned when a channel count is out of range.
	ErrInvalidChannelCount = errors.New("device: invalid channel count")

	// ErrNotConnected is returned when a command needs a connected device.
	ErrNotConnected = errors.New("device: not connected")

	// ErrConnectTimeout is returned when no state acknowledgement arrives in time.
	ErrConnectTimeout = errors.New("device: state acknowledgement timed out")

	// ErrConnectRejected is returned when the gateway reports the connect failed.
	ErrConnectRejected = errors.New("device: connect rejected")

	// ErrLevelUnsupported is returned by SetLevel on families without level control.
	ErrLevelUnsupported = errors.New("device: output level not supported")

	// ErrInvalidLevel is returned when a level is outside the family's range.
	ErrInvalidLevel = errors.New("device: invalid output level")
)
