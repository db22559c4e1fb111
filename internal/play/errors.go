package play

import "errors"

// Domain errors for the play package.
var (
	// ErrConnectionFailed is returned when not every device of a session connected.
	ErrConnectionFailed = errors.New("play: connection failed")

	// ErrSessionActive is returned when starting a session while another runs or tears down.
	ErrSessionActive = errors.New("play: session already active")

	// ErrNoSession is returned when an operation needs a running session.
	ErrNoSession = errors.New("play: no active session")

	// ErrProfileNotFound is returned when selecting a profile the creation does not have.
	ErrProfileNotFound = errors.New("play: profile not found")

	// ErrNoProfiles is returned when starting a session for a creation without profiles.
	ErrNoProfiles = errors.New("play: creation has no profiles")

	// ErrInvalidInput is returned when a raw controller event cannot be decoded.
	ErrInvalidInput = errors.New("play: invalid input event")
)
