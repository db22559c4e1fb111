package play

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the play core's Prometheus collectors.
type Metrics struct {
	SessionsStarted  prometheus.Counter
	SessionsFailed   prometheus.Counter
	ActiveSessions   prometheus.Gauge
	ConnectDuration  prometheus.Histogram
	DeviceConnects   *prometheus.CounterVec // result=connected|failed
	DeviceDisconnect *prometheus.CounterVec // result=ok|failed|skipped
	Outputs          prometheus.Counter
	RoutingMisses    prometheus.Counter
	InputDropped     prometheus.Counter
	LevelChanges     *prometheus.CounterVec // family
}

// NewMetrics creates the collectors and registers them with reg. A nil
// reg leaves them unregistered, which tests use.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brickplay",
			Name:      "sessions_started_total",
			Help:      "Play sessions whose devices all connected.",
		}),
		SessionsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brickplay",
			Name:      "sessions_failed_total",
			Help:      "Play sessions abandoned because a device did not connect.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "brickplay",
			Name:      "sessions_active",
			Help:      "Play sessions currently dispatching input.",
		}),
		ConnectDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "brickplay",
			Name:      "connect_all_duration_seconds",
			Help:      "Time to connect every device of a session.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		DeviceConnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brickplay",
			Name:      "device_connects_total",
			Help:      "Device connect attempts by result.",
		}, []string{"result"}),
		DeviceDisconnect: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brickplay",
			Name:      "device_disconnects_total",
			Help:      "Device disconnect attempts by result.",
		}, []string{"result"}),
		Outputs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brickplay",
			Name:      "channel_outputs_total",
			Help:      "Channel outputs handed to devices.",
		}),
		RoutingMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brickplay",
			Name:      "routing_misses_total",
			Help:      "Controller events with no binding in the active profile.",
		}),
		InputDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brickplay",
			Name:      "input_dropped_total",
			Help:      "Controller events dropped because the dispatch queue was full.",
		}),
		LevelChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brickplay",
			Name:      "level_changes_total",
			Help:      "Output level broadcasts by device family.",
		}, []string{"family"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.SessionsStarted, m.SessionsFailed, m.ActiveSessions, m.ConnectDuration,
			m.DeviceConnects, m.DeviceDisconnect, m.Outputs, m.RoutingMisses,
			m.InputDropped, m.LevelChanges,
		)
	}
	return m
}
