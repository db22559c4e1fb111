package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/brickplay-core/internal/auth"
	"github.com/nerrad567/brickplay-core/internal/creation"
	"github.com/nerrad567/brickplay-core/internal/device"
	"github.com/nerrad567/brickplay-core/internal/play"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeUnauthorized   = "unauthorised"
	ErrCodeForbidden      = "forbidden"
	ErrCodeConflict       = "conflict"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeMethodNotAllow = "method_not_allowed"
	ErrCodeUnavailable    = "service_unavailable"
	ErrCodeTimeout        = "timeout"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeValidation writes a 400 error response for a rejected value.
func writeValidation(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeValidation, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// writeConflict writes a 409 error response.
func writeConflict(w http.ResponseWriter, message string) {
	writeError(w, http.StatusConflict, ErrCodeConflict, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps a domain error onto its HTTP status. Errors no
// package claims are logged and reported as 500 without their detail.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound),
		errors.Is(err, creation.ErrCreationNotFound),
		errors.Is(err, creation.ErrEventNotFound),
		errors.Is(err, creation.ErrActionNotFound),
		errors.Is(err, play.ErrProfileNotFound),
		errors.Is(err, ErrPromptNotFound),
		errors.Is(err, ErrProgressNotFound):
		writeNotFound(w, err.Error())

	case errors.Is(err, device.ErrDeviceExists),
		errors.Is(err, creation.ErrCreationExists),
		errors.Is(err, play.ErrSessionActive),
		errors.Is(err, play.ErrNoSession),
		errors.Is(err, ErrProgressNotCancellable),
		errors.Is(err, errInUse):
		writeConflict(w, err.Error())

	case errors.Is(err, device.ErrInvalidDevice),
		errors.Is(err, device.ErrInvalidName),
		errors.Is(err, device.ErrInvalidFamily),
		errors.Is(err, device.ErrInvalidChannelCount),
		errors.Is(err, device.ErrInvalidLevel),
		errors.Is(err, creation.ErrNoDeviceSelected),
		errors.Is(err, creation.ErrInvalidAction),
		errors.Is(err, creation.ErrInvalidChannel),
		errors.Is(err, creation.ErrInvalidPercent),
		errors.Is(err, creation.ErrInvalidServoAngle),
		errors.Is(err, creation.ErrUnknownOutputKind),
		errors.Is(err, creation.ErrUnknownCurve),
		errors.Is(err, creation.ErrUnknownButtonMode),
		errors.Is(err, creation.ErrReservedName),
		errors.Is(err, creation.ErrUnknownDevice),
		errors.Is(err, creation.ErrInvalidCreation),
		errors.Is(err, play.ErrNoProfiles),
		errors.Is(err, auth.ErrInvalidRole),
		errors.Is(err, auth.ErrInvalidSubject):
		writeValidation(w, err.Error())

	case errors.Is(err, ErrPromptExpired):
		writeError(w, http.StatusRequestTimeout, ErrCodeTimeout, err.Error())

	default:
		s.logger.Error("request failed", "error", err)
		writeInternalError(w, "internal server error")
	}
}
