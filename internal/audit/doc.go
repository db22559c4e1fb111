// Package audit records who changed what on the station: bindings saved
// and deleted, creations imported, devices registered, and sessions
// started, failed and stopped. Entries live in the audit_logs table.
package audit

import "errors"

// Sources an entry can come from.
const (
	SourceAPI    = "api"
	SourceSystem = "system"
)

// Page size bounds for List.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// ErrInvalidEntry is returned when an entry lacks its action or entity type.
var ErrInvalidEntry = errors.New("audit: invalid entry")
