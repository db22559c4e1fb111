package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/brickplay-core/internal/infrastructure/mqtt"
)

// Transport is the message bus a RemoteDevice talks to its gateway over.
// *mqtt.Client satisfies it.
type Transport interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// RemoteOptions tunes RemoteDevice behaviour.
type RemoteOptions struct {
	// QoS for connect, disconnect and level commands. Channel outputs
	// always go at QoS 0.
	QoS byte

	// StateTimeout bounds the wait for a state acknowledgement when the
	// caller's context has no deadline. Zero waits for the context only.
	StateTimeout time.Duration

	// OutboxSize is the number of pending channel outputs buffered per
	// device. When full the oldest pending output is dropped.
	OutboxSize int

	Logger Logger
}

const defaultOutboxSize = 16

// Wire payloads exchanged with device gateways.
type command struct {
	Op      string   `json:"op"`
	Channel *int     `json:"channel,omitempty"`
	Value   *float64 `json:"value,omitempty"`
	Level   *int     `json:"level,omitempty"`
}

type stateReport struct {
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

type output struct {
	channel int
	value   float64
}

// RemoteDevice drives an actuator through a gateway on the message bus.
//
// Commands are published on brickplay/command/{family}/{id}; the gateway
// acknowledges connection changes on brickplay/state/{family}/{id} with
// {"state":"connected"} or {"state":"disconnected","error":"..."}.
type RemoteDevice struct {
	info      Info
	transport Transport
	opts      RemoteOptions
	logger    Logger

	cmdTopic   string
	stateTopic string

	// mu guards state, name and the outbox lifecycle.
	mu     sync.RWMutex
	state  ConnectionState
	name   string
	outbox chan output
	stop   chan struct{}
	done   chan struct{}

	// acks carries state reports to a waiting Connect or Disconnect.
	acks chan stateReport

	// unacked is set when a connect command went out but its
	// acknowledgement never arrived. The gateway may still complete it,
	// so Disconnect must not treat the device as released. Guarded by mu.
	unacked bool

	dropped atomic.Uint64
}

// NewRemoteDevice creates a disconnected handle for info.
func NewRemoteDevice(info Info, transport Transport, opts RemoteOptions) *RemoteDevice {
	if opts.OutboxSize <= 0 {
		opts.OutboxSize = defaultOutboxSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	topics := mqtt.Topics{}
	return &RemoteDevice{
		info:       info,
		transport:  transport,
		opts:       opts,
		logger:     logger,
		cmdTopic:   topics.DeviceCommand(string(info.Family), info.ID),
		stateTopic: topics.DeviceState(string(info.Family), info.ID),
		name:       info.Name,
		acks:       make(chan stateReport, 1),
	}
}

// RemoteFactory returns a Factory building RemoteDevices on transport.
func RemoteFactory(transport Transport, opts RemoteOptions) Factory {
	return func(info Info) Device {
		return NewRemoteDevice(info, transport, opts)
	}
}

// ID returns the device identifier.
func (d *RemoteDevice) ID() string { return d.info.ID }

// Family returns the device family.
func (d *RemoteDevice) Family() Family { return d.info.Family }

// ChannelCount returns the number of output channels.
func (d *RemoteDevice) ChannelCount() int { return d.info.ChannelCount }

// Name returns the display name.
func (d *RemoteDevice) Name() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.name
}

func (d *RemoteDevice) setName(name string) {
	d.mu.Lock()
	d.name = name
	d.mu.Unlock()
}

// State returns the current connection state.
func (d *RemoteDevice) State() ConnectionState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Dropped returns how many channel outputs were discarded because the
// outbox was full or the device was not connected.
func (d *RemoteDevice) Dropped() uint64 {
	return d.dropped.Load()
}

// Connect asks the gateway to connect the device and waits for the
// acknowledgement, ctx or the state timeout.
func (d *RemoteDevice) Connect(ctx context.Context) (ConnectionState, error) {
	d.mu.Lock()
	switch d.state {
	case Connected:
		d.mu.Unlock()
		return Connected, nil
	case Connecting, Disconnecting:
		state := d.state
		d.mu.Unlock()
		return state, fmt.Errorf("device %s: %s in progress", d.info.ID, state)
	}
	d.state = Connecting
	d.drainAcks()
	d.mu.Unlock()

	if err := d.transport.Subscribe(d.stateTopic, d.opts.QoS, d.handleState); err != nil {
		d.setState(Disconnected)
		return Disconnected, fmt.Errorf("subscribing to %s: %w", d.stateTopic, err)
	}

	if err := d.send(command{Op: "connect"}); err != nil {
		d.unsubscribe()
		d.setState(Disconnected)
		return Disconnected, err
	}
	report, err := d.await(ctx, "connect")
	if err == nil && report.State != "connected" {
		err = fmt.Errorf("%w: %s", ErrConnectRejected, report.Error)
	}
	if err != nil {
		d.unsubscribe()
		d.mu.Lock()
		d.state = Disconnected
		d.unacked = !errors.Is(err, ErrConnectRejected)
		d.mu.Unlock()
		return Disconnected, err
	}

	d.mu.Lock()
	d.state = Connected
	d.unacked = false
	d.outbox = make(chan output, d.opts.OutboxSize)
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go d.drainOutbox(d.outbox, d.stop, d.done)
	d.mu.Unlock()

	d.logger.Info("device connected", "id", d.info.ID, "family", d.info.Family)
	return Connected, nil
}

// Disconnect asks the gateway to release the device. A device that is
// disconnected is left alone unless its last connect went unacknowledged.
// The local state always ends Disconnected; a missing acknowledgement is
// reported as an error.
func (d *RemoteDevice) Disconnect(ctx context.Context) (ConnectionState, error) {
	d.mu.Lock()
	if d.state == Disconnected && !d.unacked {
		d.mu.Unlock()
		return Disconnected, nil
	}
	resubscribe := d.state == Disconnected
	d.state = Disconnecting
	d.unacked = false
	stop, done := d.stop, d.done
	d.stop, d.done, d.outbox = nil, nil, nil
	d.drainAcks()
	d.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	if resubscribe {
		if err := d.transport.Subscribe(d.stateTopic, d.opts.QoS, d.handleState); err != nil {
			d.logger.Debug("subscribing state topic", "id", d.info.ID, "error", err)
		}
	}

	err := d.send(command{Op: "disconnect"})
	if err == nil {
		_, err = d.await(ctx, "disconnect")
	}
	d.unsubscribe()
	d.setState(Disconnected)

	if err != nil {
		return Disconnected, err
	}
	d.logger.Info("device disconnected", "id", d.info.ID)
	return Disconnected, nil
}

// SetChannelOutput queues an output value. It never blocks: outputs for
// a device that is not connected or for an unknown channel are dropped,
// and a full outbox drops its oldest entry.
func (d *RemoteDevice) SetChannelOutput(channel int, value float64) {
	if channel < 0 || channel >= d.info.ChannelCount {
		d.dropped.Add(1)
		d.logger.Debug("output for unknown channel dropped", "id", d.info.ID, "channel", channel)
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.state != Connected || d.outbox == nil {
		d.dropped.Add(1)
		return
	}

	out := output{channel: channel, value: value}
	for {
		select {
		case d.outbox <- out:
			return
		default:
		}
		select {
		case <-d.outbox:
			d.dropped.Add(1)
		default:
		}
	}
}

// SetLevel publishes a family-wide output level to the device.
func (d *RemoteDevice) SetLevel(level int) error {
	if err := ValidateLevel(d.info.Family, level); err != nil {
		return err
	}
	if d.State() != Connected {
		return ErrNotConnected
	}
	payload, err := json.Marshal(command{Op: "level", Level: &level})
	if err != nil {
		return fmt.Errorf("marshalling level command: %w", err)
	}
	if err := d.transport.Publish(d.cmdTopic, payload, d.opts.QoS, false); err != nil {
		return fmt.Errorf("publishing level: %w", err)
	}
	return nil
}

// send publishes a connect or disconnect command.
func (d *RemoteDevice) send(cmd command) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshalling %s command: %w", cmd.Op, err)
	}
	if err := d.transport.Publish(d.cmdTopic, payload, d.opts.QoS, false); err != nil {
		return fmt.Errorf("publishing %s: %w", cmd.Op, err)
	}
	return nil
}

// await waits for the next state report. Without a ctx deadline the wait
// is bounded by StateTimeout.
func (d *RemoteDevice) await(ctx context.Context, op string) (stateReport, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && d.opts.StateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.StateTimeout)
		defer cancel()
	}

	select {
	case report := <-d.acks:
		return report, nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return stateReport{}, fmt.Errorf("%w: %s %s", ErrConnectTimeout, op, d.info.ID)
		}
		return stateReport{}, ctx.Err()
	}
}

// handleState receives state reports from the gateway.
func (d *RemoteDevice) handleState(_ string, payload []byte) error {
	var report stateReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return fmt.Errorf("decoding state report for %s: %w", d.info.ID, err)
	}

	d.mu.Lock()
	waiting := d.state == Connecting || d.state == Disconnecting
	lost := d.state == Connected && report.State == "disconnected"
	d.mu.Unlock()

	switch {
	case waiting:
		select {
		case d.acks <- report:
		default:
		}
	case lost:
		d.logger.Warn("device lost connection", "id", d.info.ID, "error", report.Error)
		// Runs on the bus callback: stop the writer without waiting on it.
		d.mu.Lock()
		if d.stop != nil {
			close(d.stop)
		}
		d.stop, d.done, d.outbox = nil, nil, nil
		d.state = Disconnected
		d.mu.Unlock()
	}
	return nil
}

// drainOutbox publishes queued outputs until stop is closed.
func (d *RemoteDevice) drainOutbox(outbox <-chan output, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case out := <-outbox:
			ch, v := out.channel, out.value
			payload, err := json.Marshal(command{Op: "output", Channel: &ch, Value: &v})
			if err != nil {
				d.logger.Error("marshalling output", "id", d.info.ID, "error", err)
				continue
			}
			if err := d.transport.Publish(d.cmdTopic, payload, 0, false); err != nil {
				d.dropped.Add(1)
				d.logger.Debug("output publish failed", "id", d.info.ID, "error", err)
			}
		}
	}
}

func (d *RemoteDevice) setState(s ConnectionState) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// drainAcks discards a stale report. Callers hold mu.
func (d *RemoteDevice) drainAcks() {
	select {
	case <-d.acks:
	default:
	}
}

func (d *RemoteDevice) unsubscribe() {
	if err := d.transport.Unsubscribe(d.stateTopic); err != nil {
		d.logger.Debug("unsubscribing state topic", "id", d.info.ID, "error", err)
	}
}
