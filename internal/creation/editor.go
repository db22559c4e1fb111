package creation

import (
	"fmt"
	"sync"

	"github.com/nerrad567/brickplay-core/internal/device"
)

// Field names an editable action field in a Change.
type Field string

// Editable fields.
const (
	FieldDevice             Field = "device_id"
	FieldChannel            Field = "channel"
	FieldInvert             Field = "invert"
	FieldOutputKind         Field = "output_kind"
	FieldButtonType         Field = "button_type"
	FieldAxisCharacteristic Field = "axis_characteristic"
	FieldMaxOutputPercent   Field = "max_output_percent"
	FieldDeadZonePercent    Field = "dead_zone_percent"
	FieldMaxServoAngle      Field = "max_servo_angle"
)

// Change records one field mutation of an ActionEditor.
type Change struct {
	Field Field `json:"field"`
	Old   any   `json:"old"`
	New   any   `json:"new"`
}

// DeviceCatalog lists the devices an action can be bound to.
type DeviceCatalog interface {
	ByID(id string) (device.Device, bool)
	All() []device.Device
}

// ActionEditor holds an action being edited. Every mutator returns the
// value now held and publishes a Change to subscribers when the value
// differs. Nothing is published outside mutator calls.
//
// Subscribers run synchronously on the mutating goroutine, after the
// editor's lock is released.
type ActionEditor struct {
	devices DeviceCatalog

	mu     sync.Mutex
	input  ActionInput
	subs   []subscriber
	nextID int
}

type subscriber struct {
	id int
	fn func(Change)
}

// NewActionEditor starts editing existing, or a new action when existing
// is nil. A new action is bound to the first catalogued device (if any),
// channel 0, motor output, normal buttons, linear axis, full output, no
// dead zone and a 90 degree servo range.
func NewActionEditor(devices DeviceCatalog, existing *Action) *ActionEditor {
	e := &ActionEditor{devices: devices}
	if existing != nil {
		e.input = InputFromAction(existing)
		return e
	}

	deviceID := ""
	if all := devices.All(); len(all) > 0 {
		deviceID = all[0].ID()
	}
	e.input = DefaultActionInput(deviceID)
	return e
}

// Subscribe registers fn for change records and returns a function that
// removes it.
func (e *ActionEditor) Subscribe(fn func(Change)) (unsubscribe func()) {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.subs = append(e.subs, subscriber{id: id, fn: fn})
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, s := range e.subs {
			if s.id == id {
				e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
				return
			}
		}
	}
}

// Input returns a snapshot of the edited fields.
func (e *ActionEditor) Input() ActionInput {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.input
}

// SelectDevice binds the action to deviceID. When the current channel is
// not a channel of the new device it resets to 0, publishing a channel
// change after the device change.
func (e *ActionEditor) SelectDevice(deviceID string) (string, error) {
	dev, ok := e.devices.ByID(deviceID)
	if !ok {
		return e.Input().DeviceID, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}

	e.mu.Lock()
	var changes []Change
	if old := e.input.DeviceID; old != deviceID {
		e.input.DeviceID = deviceID
		changes = append(changes, Change{Field: FieldDevice, Old: old, New: deviceID})
	}
	if old := e.input.Channel; ReconcileChannel(dev, old) != old {
		e.input.Channel = 0
		changes = append(changes, Change{Field: FieldChannel, Old: old, New: 0})
	}
	e.mu.Unlock()

	e.publish(changes...)
	return deviceID, nil
}

// SetChannel selects a channel of the bound device.
func (e *ActionEditor) SetChannel(channel int) (int, error) {
	current := e.Input()
	if current.DeviceID == "" {
		return current.Channel, ErrNoDeviceSelected
	}
	dev, ok := e.devices.ByID(current.DeviceID)
	if !ok {
		return current.Channel, fmt.Errorf("%w: %s", ErrUnknownDevice, current.DeviceID)
	}
	if channel < 0 || channel >= dev.ChannelCount() {
		return current.Channel, invalid(ErrInvalidChannel, "channel %d of %d", channel, dev.ChannelCount())
	}
	setField(e, FieldChannel, &e.input.Channel, channel)
	return channel, nil
}

// SetInvert sets the invert flag.
func (e *ActionEditor) SetInvert(invert bool) bool {
	setField(e, FieldInvert, &e.input.Invert, invert)
	return invert
}

// SetOutputKind sets the output kind.
func (e *ActionEditor) SetOutputKind(kind OutputKind) (OutputKind, error) {
	if _, ok := validOutputKinds[kind]; !ok {
		return e.Input().OutputKind, invalid(ErrUnknownOutputKind, "%q", kind)
	}
	setField(e, FieldOutputKind, &e.input.OutputKind, kind)
	return kind, nil
}

// SetButtonType sets the button mode name.
func (e *ActionEditor) SetButtonType(t ButtonType) ButtonType {
	setField(e, FieldButtonType, &e.input.ButtonType, t)
	return t
}

// SetAxisCharacteristic sets the response curve name.
func (e *ActionEditor) SetAxisCharacteristic(c AxisCharacteristic) AxisCharacteristic {
	setField(e, FieldAxisCharacteristic, &e.input.AxisCharacteristic, c)
	return c
}

// SetMaxOutputPercent sets the output scale, 0-100.
func (e *ActionEditor) SetMaxOutputPercent(p int) (int, error) {
	if p < 0 || p > 100 {
		return e.Input().MaxOutputPercent, invalid(ErrInvalidPercent, "max_output_percent %d", p)
	}
	setField(e, FieldMaxOutputPercent, &e.input.MaxOutputPercent, p)
	return p, nil
}

// SetDeadZonePercent sets the axis dead zone, 0-100.
func (e *ActionEditor) SetDeadZonePercent(p int) (int, error) {
	if p < 0 || p > 100 {
		return e.Input().DeadZonePercent, invalid(ErrInvalidPercent, "dead_zone_percent %d", p)
	}
	setField(e, FieldDeadZonePercent, &e.input.DeadZonePercent, p)
	return p, nil
}

// SetMaxServoAngle sets the servo range in degrees, 1-180.
func (e *ActionEditor) SetMaxServoAngle(deg int) (int, error) {
	if deg < minServoAngle || deg > maxServoAngle {
		return e.Input().MaxServoAngle, invalid(ErrInvalidServoAngle, "max_servo_angle %d", deg)
	}
	setField(e, FieldMaxServoAngle, &e.input.MaxServoAngle, deg)
	return deg, nil
}

// setField assigns v to *dst under the editor lock and publishes the
// change if the value differs.
func setField[T comparable](e *ActionEditor, field Field, dst *T, v T) {
	e.mu.Lock()
	old := *dst
	*dst = v
	e.mu.Unlock()

	if old != v {
		e.publish(Change{Field: field, Old: old, New: v})
	}
}

func (e *ActionEditor) publish(changes ...Change) {
	if len(changes) == 0 {
		return
	}
	e.mu.Lock()
	subs := make([]subscriber, len(e.subs))
	copy(subs, e.subs)
	e.mu.Unlock()

	for _, c := range changes {
		for _, s := range subs {
			s.fn(c)
		}
	}
}
