package api

import (
	"database/sql"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SystemMetrics is the /metrics snapshot. Sections for optional
// dependencies are omitted when the server runs without them.
type SystemMetrics struct {
	Timestamp     string `json:"timestamp"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	Runtime  RuntimeMetrics `json:"runtime"`
	Devices  DeviceCounts   `json:"devices"`
	Session  SessionMetrics `json:"session"`
	UI       UIMetrics      `json:"ui"`
	Links    LinkMetrics    `json:"links"`
	Database *sql.DBStats   `json:"database,omitempty"`
}

type RuntimeMetrics struct {
	Goroutines int     `json:"goroutines"`
	HeapMB     float64 `json:"heap_mb"`
	NumGC      uint32  `json:"num_gc"`
}

// DeviceCounts is shared with /devices/stats.
type DeviceCounts struct {
	Total    int            `json:"total"`
	ByFamily map[string]int `json:"by_family"`
	ByState  map[string]int `json:"by_state"`
}

// SessionMetrics reports the current or most recent play session.
type SessionMetrics struct {
	Active     bool   `json:"active"`
	ID         string `json:"id,omitempty"`
	State      string `json:"state,omitempty"`
	CreationID string `json:"creation_id,omitempty"`
	Dropped    int    `json:"input_dropped"`
}

// UIMetrics counts what is waiting on the user.
type UIMetrics struct {
	PendingPrompts int `json:"pending_prompts"`
	ActiveProgress int `json:"active_progress"`
}

// LinkMetrics covers the station's outward connections.
type LinkMetrics struct {
	WSClients         int   `json:"ws_clients"`
	MQTTConnected     bool  `json:"mqtt_connected"`
	MQTTSubscriptions int   `json:"mqtt_subscriptions"`
	InfluxConnected   *bool `json:"influx_connected,omitempty"`
}

func (s *Server) deviceCounts() DeviceCounts {
	stats := s.registry.GetStats()
	c := DeviceCounts{
		Total:    stats.TotalDevices,
		ByFamily: make(map[string]int, len(stats.ByFamily)),
		ByState:  stats.ByState,
	}
	for f, n := range stats.ByFamily {
		c.ByFamily[string(f)] = n
	}
	return c
}

func (s *Server) sessionMetrics() SessionMetrics {
	if s.player == nil {
		return SessionMetrics{}
	}
	st := s.player.Status()
	m := SessionMetrics{Active: st.Active}
	if sess := st.Session; sess != nil {
		m.ID, m.State, m.CreationID = sess.ID, string(sess.State), sess.CreationID
		m.Dropped = sess.InputDropped
	}
	return m
}

func (s *Server) linkMetrics() LinkMetrics {
	var m LinkMetrics
	if s.hub != nil {
		m.WSClients = s.hub.ClientCount()
	}
	if s.mqtt != nil {
		m.MQTTConnected = s.mqtt.IsConnected()
		m.MQTTSubscriptions = s.mqtt.SubscriptionCount()
	}
	if s.influx != nil {
		up := s.influx.IsConnected()
		m.InfluxConnected = &up
	}
	return m
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	snap := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime) / time.Second),
		Runtime: RuntimeMetrics{
			Goroutines: runtime.NumGoroutine(),
			HeapMB:     float64(mem.HeapAlloc) / (1 << 20),
			NumGC:      mem.NumGC,
		},
		Devices: s.deviceCounts(),
		Session: s.sessionMetrics(),
		UI: UIMetrics{
			PendingPrompts: len(s.ui.Prompts()),
			ActiveProgress: len(s.ui.ActiveProgress()),
		},
		Links: s.linkMetrics(),
	}
	if s.db != nil {
		st := s.db.Stats()
		snap.Database = &st
	}
	writeJSON(w, http.StatusOK, snap)
}

// httpMetrics are the Prometheus collectors for the HTTP layer.
type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// newHTTPMetrics creates the HTTP collectors and registers them with reg
// when it is non-nil.
func newHTTPMetrics(reg prometheus.Registerer) *httpMetrics {
	m := &httpMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brickplay",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "brickplay",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration)
	}
	return m
}
