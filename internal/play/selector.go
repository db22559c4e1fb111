package play

import (
	"fmt"
	"sync/atomic"

	"github.com/nerrad567/brickplay-core/internal/creation"
)

// Selector holds the active profile of a session. Select has no device
// side effects; the router reads the active profile once per event, so a
// change applies from the next event on.
type Selector struct {
	creation *creation.Creation
	active   atomic.Pointer[creation.Profile]
}

// NewSelector starts with the first profile of c active. c must not be
// modified afterwards.
func NewSelector(c *creation.Creation) (*Selector, error) {
	if c == nil || len(c.Profiles) == 0 {
		return nil, ErrNoProfiles
	}
	s := &Selector{creation: c}
	s.active.Store(&c.Profiles[0])
	return s, nil
}

// Select makes the profile with the given id active.
func (s *Selector) Select(profileID string) error {
	p := s.creation.FindProfile(profileID)
	if p == nil {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, profileID)
	}
	s.active.Store(p)
	return nil
}

// Active returns the active profile. Callers must not modify it.
func (s *Selector) Active() *creation.Profile {
	return s.active.Load()
}
