package device

import (
	"context"
	"time"
)

// Family identifies a device family. Families share a command vocabulary
// and, for some, a global output level control.
type Family string

// Supported device families.
const (
	FamilyBuWizz    Family = "buwizz"
	FamilyBuWizz2   Family = "buwizz2"
	FamilySBrick    Family = "sbrick"
	FamilyPoweredUp Family = "poweredup"
	FamilyInfrared  Family = "infrared"
)

// AllFamilies returns every supported family in display order.
func AllFamilies() []Family {
	return []Family{
		FamilyBuWizz,
		FamilyBuWizz2,
		FamilySBrick,
		FamilyPoweredUp,
		FamilyInfrared,
	}
}

// familySpec describes the fixed hardware traits of a family.
type familySpec struct {
	channels int
	minLevel int
	maxLevel int // 0 when the family has no output level control
}

var familySpecs = map[Family]familySpec{
	FamilyBuWizz:    {channels: 4, minLevel: 1, maxLevel: 4},
	FamilyBuWizz2:   {channels: 4, minLevel: 1, maxLevel: 4},
	FamilySBrick:    {channels: 4},
	FamilyPoweredUp: {channels: 2},
	FamilyInfrared:  {channels: 2},
}

// Valid reports whether f is a supported family.
func (f Family) Valid() bool {
	_, ok := familySpecs[f]
	return ok
}

// DefaultChannelCount returns the number of output channels a device of
// this family normally exposes, or 0 for an unknown family.
func (f Family) DefaultChannelCount() int {
	return familySpecs[f].channels
}

// LevelRange returns the inclusive range of output levels the family
// accepts. ok is false when the family has no level control.
func (f Family) LevelRange() (lo, hi int, ok bool) {
	spec, found := familySpecs[f]
	if !found || spec.maxLevel == 0 {
		return 0, 0, false
	}
	return spec.minLevel, spec.maxLevel, true
}

// ConnectionState is the connection lifecycle state of a device.
type ConnectionState int

// Connection states.
const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Disconnecting
)

// String returns the lower-case name of the state.
func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// Device is the capability the play core drives.
//
// Connect and Disconnect block until the device settles or ctx is done and
// report the resulting state. SetChannelOutput never blocks the caller.
// Implementations must be safe for concurrent use.
type Device interface {
	ID() string
	Name() string
	Family() Family
	ChannelCount() int
	State() ConnectionState

	Connect(ctx context.Context) (ConnectionState, error)
	Disconnect(ctx context.Context) (ConnectionState, error)
	SetChannelOutput(channel int, value float64)
	SetLevel(level int) error
}

// Info is the catalogue record for a registered device.
type Info struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Family       Family    `json:"family"`
	ChannelCount int       `json:"channel_count"`
	Address      string    `json:"address,omitempty"` // gateway-specific, e.g. a BLE MAC
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DeepCopy returns an independent copy of the record.
func (i *Info) DeepCopy() *Info {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}
