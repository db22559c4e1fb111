package device

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength    = 100
	maxAddressLength = 256
	maxChannelCount  = 16
)

// ValidateInfo checks a catalogue record before it is persisted.
func ValidateInfo(info *Info) error {
	if info == nil {
		return fmt.Errorf("%w: nil device", ErrInvalidDevice)
	}
	if strings.TrimSpace(info.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidDevice)
	}
	if err := ValidateName(info.Name); err != nil {
		return err
	}
	if !info.Family.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFamily, info.Family)
	}
	if info.ChannelCount < 1 || info.ChannelCount > maxChannelCount {
		return fmt.Errorf("%w: %d (must be 1-%d)", ErrInvalidChannelCount, info.ChannelCount, maxChannelCount)
	}
	if len(info.Address) > maxAddressLength {
		return fmt.Errorf("%w: address exceeds %d characters", ErrInvalidDevice, maxAddressLength)
	}
	return nil
}

// ValidateName checks a device display name.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(trimmed) > maxNameLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateLevel checks an output level against the family's range.
func ValidateLevel(f Family, level int) error {
	lo, hi, ok := f.LevelRange()
	if !ok {
		return fmt.Errorf("%w: family %q", ErrLevelUnsupported, f)
	}
	if level < lo || level > hi {
		return fmt.Errorf("%w: %d (must be %d-%d)", ErrInvalidLevel, level, lo, hi)
	}
	return nil
}

// GenerateID creates a new unique device identifier.
func GenerateID() string {
	return uuid.New().String()
}
