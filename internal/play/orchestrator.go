package play

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/brickplay-core/internal/device"
)

// Status is the outcome of connecting a session's devices.
type Status string

const (
	// StatusSuccess means every device reported Connected.
	StatusSuccess Status = "success"
	// StatusPartialFailure means at least one device failed or the attempt
	// was cancelled. Every device has been asked to disconnect.
	StatusPartialFailure Status = "partial_failure"
)

// DeviceFailure records a device that did not reach the requested state.
type DeviceFailure struct {
	DeviceID string `json:"device_id"`
	State    string `json:"state"`
	Error    string `json:"error,omitempty"`
}

// Result is the outcome of ConnectAll.
type Result struct {
	Status Status `json:"status"`

	// Failed holds the ids of devices that did not connect, sorted.
	Failed []string `json:"failed,omitempty"`

	// Cancelled is set when the context ended before every device connected.
	Cancelled bool `json:"cancelled,omitempty"`

	// DisconnectFailures lists devices the rollback could not disconnect.
	DisconnectFailures []DeviceFailure `json:"disconnect_failures,omitempty"`

	Elapsed time.Duration `json:"elapsed"`
}

// defaultRollbackTimeout bounds the rollback and teardown disconnects,
// which run detached from the caller's (possibly cancelled) context.
const defaultRollbackTimeout = 30 * time.Second

// OrchestratorOptions tunes an Orchestrator.
type OrchestratorOptions struct {
	// Concurrency bounds simultaneous connects or disconnects. 0 is unbounded.
	Concurrency int

	// ConnectTimeout bounds each device's connect. 0 leaves it to the transport.
	ConnectTimeout time.Duration

	// RollbackTimeout bounds the disconnects issued after a failed connect
	// and when a session is torn down.
	RollbackTimeout time.Duration

	// OnConnect, when set, is called once per device after its connect
	// attempt, from the connecting goroutine.
	OnConnect func(dev device.Device, connected bool, elapsed time.Duration)

	Logger  Logger
	Metrics *Metrics
}

// Orchestrator connects and disconnects a set of devices as one unit.
// Devices are handled concurrently with no ordering between them.
type Orchestrator struct {
	opts   OrchestratorOptions
	logger Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	if opts.RollbackTimeout <= 0 {
		opts.RollbackTimeout = defaultRollbackTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Orchestrator{opts: opts, logger: logger}
}

// ConnectAll connects every device and waits for all of them. When any
// device fails, or ctx ends first, every device (including those that
// never connected) is sent one disconnect before returning and the
// result is StatusPartialFailure. Per-device errors are
// reported in the result and never returned.
func (o *Orchestrator) ConnectAll(ctx context.Context, devices []device.Device) Result {
	start := time.Now()

	var (
		mu     sync.Mutex
		failed []string
	)
	g := o.group()
	for _, dev := range devices {
		g.Go(func() error {
			if !o.connectOne(ctx, dev) {
				mu.Lock()
				failed = append(failed, dev.ID())
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait() // workers report through failed

	result := Result{Elapsed: time.Since(start)}
	if o.opts.Metrics != nil {
		o.opts.Metrics.ConnectDuration.Observe(result.Elapsed.Seconds())
	}

	result.Cancelled = ctx.Err() != nil
	if len(failed) == 0 && !result.Cancelled {
		result.Status = StatusSuccess
		o.logger.Info("all devices connected", "devices", len(devices), "elapsed", result.Elapsed)
		return result
	}

	sort.Strings(failed)
	result.Status = StatusPartialFailure
	result.Failed = failed

	o.logger.Warn("connect failed, rolling back",
		"failed", failed,
		"cancelled", result.Cancelled,
		"devices", len(devices),
	)

	rollbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.RollbackTimeout)
	defer cancel()
	result.DisconnectFailures = o.disconnectAll(rollbackCtx, devices, true)
	return result
}

// DisconnectAll asks every device that is not already Disconnected to
// disconnect and waits for all of them. It never panics; devices that
// fail are returned sorted by id.
func (o *Orchestrator) DisconnectAll(ctx context.Context, devices []device.Device) []DeviceFailure {
	return o.disconnectAll(ctx, devices, false)
}

// disconnectAll disconnects devices concurrently. Rollback passes force
// so that every device, whatever state it reports, is told exactly once.
func (o *Orchestrator) disconnectAll(ctx context.Context, devices []device.Device, force bool) []DeviceFailure {
	var (
		mu       sync.Mutex
		failures []DeviceFailure
	)
	g := o.group()
	for _, dev := range devices {
		g.Go(func() error {
			if f := o.disconnectOne(ctx, dev, force); f != nil {
				mu.Lock()
				failures = append(failures, *f)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(failures, func(i, j int) bool { return failures[i].DeviceID < failures[j].DeviceID })
	for _, f := range failures {
		o.logger.Warn("device disconnect failed", "device_id", f.DeviceID, "state", f.State, "error", f.Error)
	}
	return failures
}

func (o *Orchestrator) group() *errgroup.Group {
	g := new(errgroup.Group)
	if o.opts.Concurrency > 0 {
		g.SetLimit(o.opts.Concurrency)
	}
	return g
}

// connectOne reports whether dev ended up Connected.
func (o *Orchestrator) connectOne(ctx context.Context, dev device.Device) (connected bool) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("device connect panicked", "device_id", dev.ID(), "panic", r)
			connected = false
		}
		o.recordConnect(dev, connected, time.Since(start))
	}()

	if ctx.Err() != nil {
		return false
	}
	if o.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.ConnectTimeout)
		defer cancel()
	}

	state, err := dev.Connect(ctx)
	if err != nil {
		o.logger.Warn("device connect failed", "device_id", dev.ID(), "family", dev.Family(), "error", err)
		return false
	}
	if state != device.Connected {
		o.logger.Warn("device not connected", "device_id", dev.ID(), "state", state.String())
		return false
	}
	o.logger.Debug("device connected", "device_id", dev.ID(), "elapsed", time.Since(start))
	return true
}

func (o *Orchestrator) recordConnect(dev device.Device, connected bool, elapsed time.Duration) {
	if m := o.opts.Metrics; m != nil {
		result := "failed"
		if connected {
			result = "connected"
		}
		m.DeviceConnects.WithLabelValues(result).Inc()
	}
	if o.opts.OnConnect != nil {
		o.opts.OnConnect(dev, connected, elapsed)
	}
}

// disconnectOne returns nil when dev is Disconnected afterwards.
func (o *Orchestrator) disconnectOne(ctx context.Context, dev device.Device, force bool) (failure *DeviceFailure) {
	defer func() {
		if r := recover(); r != nil {
			failure = &DeviceFailure{DeviceID: dev.ID(), State: "unknown", Error: fmt.Sprintf("panic: %v", r)}
		}
		if failure != nil {
			o.countDisconnect("failed")
		}
	}()

	if !force && dev.State() == device.Disconnected {
		o.countDisconnect("skipped")
		return nil
	}

	state, err := dev.Disconnect(ctx)
	switch {
	case err != nil:
		return &DeviceFailure{DeviceID: dev.ID(), State: state.String(), Error: err.Error()}
	case state != device.Disconnected:
		return &DeviceFailure{DeviceID: dev.ID(), State: state.String(), Error: "device did not report disconnected"}
	}
	o.countDisconnect("ok")
	return nil
}

func (o *Orchestrator) countDisconnect(result string) {
	if o.opts.Metrics != nil {
		o.opts.Metrics.DeviceDisconnect.WithLabelValues(result).Inc()
	}
}
