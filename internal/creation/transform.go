package creation

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/nerrad567/brickplay-core/internal/infrastructure/config"
)

// Curve maps an axis magnitude in [0, 1] onto [0, 1]. The sign of the
// input is restored by the caller.
type Curve func(magnitude float64) float64

// Linear passes the magnitude through unchanged.
func Linear(m float64) float64 { return m }

// PowerCurve returns m^exponent. Exponents above 1 soften the centre of
// the stick; exponents below 1 sharpen it.
func PowerCurve(exponent float64) Curve {
	return func(m float64) float64 {
		return math.Pow(m, exponent)
	}
}

// CurveSet is the registry of axis response curves, keyed by
// AxisCharacteristic. Linear is always present.
type CurveSet struct {
	mu     sync.RWMutex
	curves map[AxisCharacteristic]Curve
}

// NewCurveSet returns a set holding only the linear curve.
func NewCurveSet() *CurveSet {
	return &CurveSet{curves: map[AxisCharacteristic]Curve{AxisLinear: Linear}}
}

// CurveSetFromConfig builds a set with a power curve per configured entry.
func CurveSetFromConfig(cfgs []config.CurveConfig) (*CurveSet, error) {
	set := NewCurveSet()
	for _, c := range cfgs {
		if c.Exponent <= 0 || math.IsNaN(c.Exponent) || math.IsInf(c.Exponent, 0) {
			return nil, fmt.Errorf("curve %q: exponent must be a positive number", c.Name)
		}
		if err := set.Register(AxisCharacteristic(c.Name), PowerCurve(c.Exponent)); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// Register adds or replaces a curve. The linear curve cannot be replaced.
func (s *CurveSet) Register(name AxisCharacteristic, curve Curve) error {
	if name == "" || curve == nil {
		return fmt.Errorf("%w: curve needs a name and a function", ErrUnknownCurve)
	}
	if name == AxisLinear {
		return fmt.Errorf("%w: %q", ErrReservedName, name)
	}
	s.mu.Lock()
	s.curves[name] = curve
	s.mu.Unlock()
	return nil
}

// Get returns the curve registered under name.
func (s *CurveSet) Get(name AxisCharacteristic) (Curve, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.curves[name]
	return c, ok
}

// Names returns the registered curve names, sorted.
func (s *CurveSet) Names() []AxisCharacteristic {
	s.mu.RLock()
	names := make([]AxisCharacteristic, 0, len(s.curves))
	for n := range s.curves {
		names = append(names, n)
	}
	s.mu.RUnlock()
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// ButtonState is the per-action memory a button mode works with.
type ButtonState struct {
	Pressed bool // last observed physical state
	Latched bool // output held on by a toggle
}

// ButtonMode turns a physical button state into an output level in [0, 1].
// emit is false when the press or release should not change the output.
type ButtonMode func(state *ButtonState, pressed bool) (level float64, emit bool)

// Momentary outputs full level while the button is held.
func Momentary(state *ButtonState, pressed bool) (float64, bool) {
	state.Pressed = pressed
	if pressed {
		return 1, true
	}
	return 0, true
}

// Latching flips the output on each press and ignores releases.
func Latching(state *ButtonState, pressed bool) (float64, bool) {
	edge := pressed && !state.Pressed
	state.Pressed = pressed
	if !edge {
		return 0, false
	}
	state.Latched = !state.Latched
	if state.Latched {
		return 1, true
	}
	return 0, true
}

// ButtonModeSet is the registry of button modes, keyed by ButtonType.
// Normal and toggle are always present.
type ButtonModeSet struct {
	mu    sync.RWMutex
	modes map[ButtonType]ButtonMode
}

// NewButtonModeSet returns a set holding the built-in modes.
func NewButtonModeSet() *ButtonModeSet {
	return &ButtonModeSet{modes: map[ButtonType]ButtonMode{
		ButtonNormal: Momentary,
		ButtonToggle: Latching,
	}}
}

// Register adds a mode. Built-in modes cannot be replaced.
func (s *ButtonModeSet) Register(name ButtonType, mode ButtonMode) error {
	if name == "" || mode == nil {
		return fmt.Errorf("%w: mode needs a name and a function", ErrUnknownButtonMode)
	}
	if name == ButtonNormal || name == ButtonToggle {
		return fmt.Errorf("%w: %q", ErrReservedName, name)
	}
	s.mu.Lock()
	s.modes[name] = mode
	s.mu.Unlock()
	return nil
}

// Get returns the mode registered under name.
func (s *ButtonModeSet) Get(name ButtonType) (ButtonMode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.modes[name]
	return m, ok
}

// Names returns the registered mode names, sorted.
func (s *ButtonModeSet) Names() []ButtonType {
	s.mu.RLock()
	names := make([]ButtonType, 0, len(s.modes))
	for n := range s.modes {
		names = append(names, n)
	}
	s.mu.RUnlock()
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// switchThreshold is the travel at which a switch output engages.
const switchThreshold = 0.5

// Transform computes channel outputs from raw input for an action.
//
// Axis pipeline: dead zone, response curve, invert, then the output
// stage. Button pipeline: button mode, invert, then the output stage.
// The output stage scales by MaxOutputPercent and clamps to [-1, 1] for
// motors, quantises to {-s, 0, +s} for switches, and maps [-1, 1] onto
// [0, MaxServoAngle] for servos.
type Transform struct {
	curves  *CurveSet
	buttons *ButtonModeSet
}

// NewTransform creates a transform over the given sets. Nil sets are
// replaced by the built-in ones.
func NewTransform(curves *CurveSet, buttons *ButtonModeSet) *Transform {
	if curves == nil {
		curves = NewCurveSet()
	}
	if buttons == nil {
		buttons = NewButtonModeSet()
	}
	return &Transform{curves: curves, buttons: buttons}
}

// Curves returns the curve set.
func (t *Transform) Curves() *CurveSet { return t.curves }

// Buttons returns the button mode set.
func (t *Transform) Buttons() *ButtonModeSet { return t.buttons }

// Check verifies that the action's curve and button mode are registered.
func (t *Transform) Check(a *Action) error {
	if _, ok := t.curves.Get(a.AxisCharacteristic); !ok {
		return invalid(ErrUnknownCurve, "%q", a.AxisCharacteristic)
	}
	if _, ok := t.buttons.Get(a.ButtonType); !ok {
		return invalid(ErrUnknownButtonMode, "%q", a.ButtonType)
	}
	return nil
}

// Axis computes the output for an axis magnitude m in [-1, 1].
func (t *Transform) Axis(a *Action, m float64) (float64, error) {
	curve, ok := t.curves.Get(a.AxisCharacteristic)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCurve, a.AxisCharacteristic)
	}

	if math.IsNaN(m) {
		m = 0
	}
	m = clamp(m)

	v := 0.0
	if mag := math.Abs(m); mag >= float64(a.DeadZonePercent)/100 {
		v = math.Copysign(clamp01(curve(mag)), m)
	}
	if a.Invert {
		v = -v
	}
	return outputStage(a, v), nil
}

// Button computes the output for a button press or release. emit is false
// when the button mode leaves the output unchanged.
func (t *Transform) Button(a *Action, state *ButtonState, pressed bool) (value float64, emit bool, err error) {
	mode, ok := t.buttons.Get(a.ButtonType)
	if !ok {
		return 0, false, fmt.Errorf("%w: %q", ErrUnknownButtonMode, a.ButtonType)
	}

	level, emit := mode(state, pressed)
	if !emit {
		return 0, false, nil
	}
	v := clamp01(level)
	if a.Invert {
		v = -v
	}
	return outputStage(a, v), true, nil
}

// outputStage maps a shaped value in [-1, 1] onto the channel's range.
func outputStage(a *Action, v float64) float64 {
	scale := float64(a.MaxOutputPercent) / 100

	switch a.OutputKind {
	case OutputSwitch:
		if math.Abs(v) < switchThreshold {
			return 0
		}
		return math.Copysign(scale, v)
	case OutputServo:
		return (clamp(v*scale) + 1) / 2 * float64(a.MaxServoAngle)
	default:
		return clamp(v * scale)
	}
}

func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
