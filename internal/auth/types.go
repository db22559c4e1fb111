package auth

import (
	"errors"
	"regexp"
)

// subjectPattern defines the valid format for token subjects:
// alphanumeric, dots, hyphens, underscores, 1-64 characters.
var subjectPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// IsValidSubject checks if a token subject meets format requirements.
func IsValidSubject(subject string) bool {
	return subjectPattern.MatchString(subject)
}

// Role represents an authorisation tier for API tokens.
type Role string

const (
	// RoleViewer can read devices, creations, session status and the
	// audit trail. Intended for dashboards.
	RoleViewer Role = "viewer"

	// RoleOperator can additionally play: start and stop sessions,
	// switch profiles, set levels and answer prompts.
	RoleOperator Role = "operator"

	// RoleAdmin can additionally edit the catalogue and creations:
	// register devices, import creations and bind actions.
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of roles a token may carry.
var ValidRoles = []Role{RoleViewer, RoleOperator, RoleAdmin}

// IsValidRole returns true if r is one of ValidRoles.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Sentinel errors for auth operations.
var (
	ErrTokenInvalid   = errors.New("invalid token")
	ErrInvalidRole    = errors.New("invalid role")
	ErrInvalidSubject = errors.New("invalid subject")
	ErrForbidden      = errors.New("insufficient permissions")
)
