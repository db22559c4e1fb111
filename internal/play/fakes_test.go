package play

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/brickplay-core/internal/creation"
	"github.com/nerrad567/brickplay-core/internal/device"
)

// fakeDevice records lifecycle calls and outputs.
type fakeDevice struct {
	id       string
	family   device.Family
	channels int

	connectErr     error
	connectState   device.ConnectionState // state reported by a nil-error connect
	connectDelay   time.Duration
	connectPanic   bool
	disconnectErr  error
	disconnectHang bool // Disconnect waits for ctx
	levelErr       error

	mu          sync.Mutex
	state       device.ConnectionState
	connects    int
	disconnects int
	levels      []int
	outputs     []output
}

type output struct {
	channel int
	value   float64
}

func newFakeDevice(id string, family device.Family) *fakeDevice {
	return &fakeDevice{id: id, family: family, channels: 4, connectState: device.Connected}
}

func (d *fakeDevice) ID() string            { return d.id }
func (d *fakeDevice) Name() string          { return "dev " + d.id }
func (d *fakeDevice) Family() device.Family { return d.family }
func (d *fakeDevice) ChannelCount() int     { return d.channels }

func (d *fakeDevice) State() device.ConnectionState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *fakeDevice) Connect(ctx context.Context) (device.ConnectionState, error) {
	d.mu.Lock()
	d.connects++
	d.mu.Unlock()

	if d.connectPanic {
		panic("radio on fire")
	}
	if d.connectDelay > 0 {
		select {
		case <-time.After(d.connectDelay):
		case <-ctx.Done():
			return device.Disconnected, ctx.Err()
		}
	}
	if d.connectErr != nil {
		return device.Disconnected, d.connectErr
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = d.connectState
	return d.state, nil
}

func (d *fakeDevice) Disconnect(ctx context.Context) (device.ConnectionState, error) {
	if d.disconnectHang {
		d.mu.Lock()
		d.disconnects++
		d.mu.Unlock()
		<-ctx.Done()
		return device.Disconnecting, ctx.Err()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.disconnects++
	if d.disconnectErr != nil {
		return d.state, d.disconnectErr
	}
	d.state = device.Disconnected
	return d.state, nil
}

func (d *fakeDevice) SetChannelOutput(channel int, value float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outputs = append(d.outputs, output{channel, value})
}

func (d *fakeDevice) SetLevel(level int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.levels = append(d.levels, level)
	return d.levelErr
}

func (d *fakeDevice) counts() (connects, disconnects int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connects, d.disconnects
}

func (d *fakeDevice) recorded() []output {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]output(nil), d.outputs...)
}

// fakeRegistry resolves fake devices by id.
type fakeRegistry map[string]device.Device

func newFakeRegistry(devs ...*fakeDevice) fakeRegistry {
	r := make(fakeRegistry, len(devs))
	for _, d := range devs {
		r[d.id] = d
	}
	return r
}

func (r fakeRegistry) ByID(id string) (device.Device, bool) {
	d, ok := r[id]
	return d, ok
}

func asDevices(devs ...*fakeDevice) []device.Device {
	out := make([]device.Device, len(devs))
	for i, d := range devs {
		out[i] = d
	}
	return out
}

// fakeSurface runs progress work inline and records what was shown.
type fakeSurface struct {
	mu       sync.Mutex
	progress []string
	backs    int

	// cancelConnect cancels the connecting progress as soon as it starts.
	cancelConnect bool
	failProgress  error
}

func (s *fakeSurface) ShowProgress(ctx context.Context, message string, cancellable bool, run func(context.Context) error) error {
	s.mu.Lock()
	s.progress = append(s.progress, message)
	fail := s.failProgress
	s.mu.Unlock()

	if fail != nil {
		return fail
	}
	if cancellable && s.cancelConnect {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		return run(cctx)
	}
	return run(ctx)
}

func (s *fakeSurface) NavigateBack(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backs++
	return nil
}

func (s *fakeSurface) snapshot() ([]string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.progress...), s.backs
}

// fakeInput lets tests inject events into the subscribed handler.
type fakeInput struct {
	mu           sync.Mutex
	handler      func(InputEvent)
	subscribed   chan struct{}
	subscribes   int
	unsubscribes int
	subscribeErr error
}

func newFakeInput() *fakeInput {
	return &fakeInput{subscribed: make(chan struct{}, 1)}
}

func (f *fakeInput) Subscribe(handler func(InputEvent)) (func() error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.handler = handler
	f.subscribes++
	select {
	case f.subscribed <- struct{}{}:
	default:
	}
	return func() error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.handler = nil
		f.unsubscribes++
		return nil
	}, nil
}

func (f *fakeInput) send(ev InputEvent) bool {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h == nil {
		return false
	}
	h(ev)
	return true
}

func (f *fakeInput) counts() (subscribes, unsubscribes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribes, f.unsubscribes
}

// fakeHub counts broadcasts.
type fakeHub struct{ n atomic.Int64 }

func (h *fakeHub) Broadcast(string, any) { h.n.Add(1) }

var errRadio = errors.New("radio timeout")

// testCreation binds two profiles over the given devices. Profile "drive"
// maps axis Y to devs[0] channel 0 and button A to devs[1] channel 1;
// profile "crane" maps axis Y to devs[2] channel 2 inverted.
func testCreation(devs ...*fakeDevice) *creation.Creation {
	act := func(id, dev string, ch int) creation.Action {
		a := creation.Action{
			ID:                 id,
			DeviceID:           dev,
			Channel:            ch,
			OutputKind:         creation.OutputMotor,
			ButtonType:         creation.ButtonNormal,
			AxisCharacteristic: creation.AxisLinear,
			MaxOutputPercent:   100,
			MaxServoAngle:      90,
		}
		return a
	}
	inverted := act("a-crane", devs[2].id, 2)
	inverted.Invert = true

	return &creation.Creation{
		ID:   "cr-1",
		Name: "Crawler",
		Profiles: []creation.Profile{
			{ID: "drive", Name: "Drive", Events: []creation.Event{
				{ID: "e-y", Type: creation.EventAxis, Code: "Y", Actions: []creation.Action{act("a-y", devs[0].id, 0)}},
				{ID: "e-a", Type: creation.EventButton, Code: "A", Actions: []creation.Action{act("a-a", devs[1].id, 1)}},
			}},
			{ID: "crane", Name: "Crane", Events: []creation.Event{
				{ID: "e-y2", Type: creation.EventAxis, Code: "Y", Actions: []creation.Action{inverted}},
			}},
		},
	}
}
