package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the play session.
const (
	MeasurementChannelOutput = "channel_output"
	MeasurementConnect       = "device_connect"
	MeasurementLevel         = "output_level"
	MeasurementSession       = "session"
)

// WriteChannelOutput records one value sent to a device channel, e.g.
// WriteChannelOutput("sess-1a2b", "bw-01", 2, -0.75).
func (c *Client) WriteChannelOutput(sessionID, deviceID string, channel int, value float64) {
	c.write(channelOutputPoint(sessionID, deviceID, channel, value, time.Now()))
}

// WriteConnectResult records the outcome of one device connect attempt.
func (c *Client) WriteConnectResult(sessionID, deviceID, family string, connected bool, elapsed time.Duration) {
	c.write(connectPoint(sessionID, deviceID, family, connected, elapsed, time.Now()))
}

// WriteLevelChange records an output level applied to a device family.
func (c *Client) WriteLevelChange(sessionID, family string, level, failures int) {
	c.write(levelPoint(sessionID, family, level, failures, time.Now()))
}

// WriteSessionEvent records a session lifecycle transition
// (started, connect_failed, stopped).
func (c *Client) WriteSessionEvent(sessionID, creationID, event string, devices int) {
	c.write(sessionPoint(sessionID, creationID, event, devices, time.Now()))
}

// WritePoint writes an arbitrary measurement.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.write(write.NewPoint(measurement, tags, fields, time.Now()))
}

func channelOutputPoint(sessionID, deviceID string, channel int, value float64, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementChannelOutput,
		map[string]string{
			"session_id": sessionID,
			"device_id":  deviceID,
			"channel":    strconv.Itoa(channel),
		},
		map[string]any{
			"value": value,
		},
		ts,
	)
}

func connectPoint(sessionID, deviceID, family string, connected bool, elapsed time.Duration, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementConnect,
		map[string]string{
			"session_id": sessionID,
			"device_id":  deviceID,
			"family":     family,
		},
		map[string]any{
			"connected":  connected,
			"elapsed_ms": elapsed.Milliseconds(),
		},
		ts,
	)
}

func levelPoint(sessionID, family string, level, failures int, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementLevel,
		map[string]string{
			"session_id": sessionID,
			"family":     family,
		},
		map[string]any{
			"level":    level,
			"failures": failures,
		},
		ts,
	)
}

func sessionPoint(sessionID, creationID, event string, devices int, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementSession,
		map[string]string{
			"session_id":  sessionID,
			"creation_id": creationID,
			"event":       event,
		},
		map[string]any{
			"devices": devices,
		},
		ts,
	)
}
