package play

import (
	"context"
	"time"

	"github.com/nerrad567/brickplay-core/internal/audit"
)

// Telemetry receives session time series. *influxdb.Client satisfies it.
// Writes are fire-and-forget.
type Telemetry interface {
	WriteChannelOutput(sessionID, deviceID string, channel int, value float64)
	WriteConnectResult(sessionID, deviceID, family string, connected bool, elapsed time.Duration)
	WriteLevelChange(sessionID, family string, level, failures int)
	WriteSessionEvent(sessionID, creationID, event string, devices int)
}

type noopTelemetry struct{}

func (noopTelemetry) WriteChannelOutput(string, string, int, float64)                {}
func (noopTelemetry) WriteConnectResult(string, string, string, bool, time.Duration) {}
func (noopTelemetry) WriteLevelChange(string, string, int, int)                      {}
func (noopTelemetry) WriteSessionEvent(string, string, string, int)                  {}

// AuditRecorder persists session lifecycle entries. audit.Repository
// satisfies it.
type AuditRecorder interface {
	Create(ctx context.Context, log *audit.AuditLog) error
}

// EventHub pushes session events to connected UIs.
type EventHub interface {
	Broadcast(channel string, payload any)
}

// Logger defines the logging interface used by the play package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
