package device

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
)

// Logger is satisfied by *logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Factory builds the live handle for a catalogue record.
type Factory func(info Info) Device

// Registry is the in-memory view of the device catalogue. For each
// catalogued device it holds the stored record and the live handle the
// play core drives. Reads never touch the database; writes go through to
// the Repository first and update the cache only on success.
type Registry struct {
	repo    Repository
	factory Factory
	cache   map[string]*entry
	cacheMu sync.RWMutex
	logger  Logger
}

type entry struct {
	info   *Info
	handle Device
}

// NewRegistry returns an empty registry. Call RefreshCache to load it.
func NewRegistry(repo Repository, factory Factory) *Registry {
	return &Registry{
		repo:    repo,
		factory: factory,
		cache:   make(map[string]*entry),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository into the cache.
// Handles for devices that are still catalogued are kept so that an
// active session is not orphaned.
func (r *Registry) RefreshCache(ctx context.Context) error {
	infos, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	next := make(map[string]*entry, len(infos))
	for i := range infos {
		info := infos[i].DeepCopy()
		e := &entry{info: info}
		if old, ok := r.cache[info.ID]; ok && sameHardware(old.info, info) {
			e.handle = old.handle
		} else {
			e.handle = r.factory(*info)
		}
		next[info.ID] = e
	}
	r.cache = next

	r.logger.Info("device cache refreshed", "count", len(infos))
	return nil
}

// sameHardware reports whether two records describe the same physical target.
func sameHardware(a, b *Info) bool {
	return a.Family == b.Family && a.ChannelCount == b.ChannelCount && a.Address == b.Address
}

// ByID returns the live handle for a device.
func (r *Registry) ByID(id string) (Device, bool) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	e, ok := r.cache[id]
	if !ok {
		return nil, false
	}
	return e.handle, true
}

// All returns every live handle ordered by name, then id.
func (r *Registry) All() []Device {
	r.cacheMu.RLock()
	devices := make([]Device, 0, len(r.cache))
	for _, e := range r.cache {
		devices = append(devices, e.handle)
	}
	r.cacheMu.RUnlock()

	slices.SortFunc(devices, func(a, b Device) int {
		return cmp.Or(cmp.Compare(a.Name(), b.Name()), cmp.Compare(a.ID(), b.ID()))
	})
	return devices
}

// GetInfo returns a copy of the record for id, falling back to the
// repository for devices not yet cached.
func (r *Registry) GetInfo(ctx context.Context, id string) (*Info, error) {
	r.cacheMu.RLock()
	e, ok := r.cache[id]
	r.cacheMu.RUnlock()
	if ok {
		return e.info.DeepCopy(), nil
	}
	return r.repo.GetByID(ctx, id)
}

// ListInfo returns every catalogue record ordered by name, then id.
func (r *Registry) ListInfo() []Info {
	r.cacheMu.RLock()
	infos := make([]Info, 0, len(r.cache))
	for _, e := range r.cache {
		infos = append(infos, *e.info.DeepCopy())
	}
	r.cacheMu.RUnlock()

	slices.SortFunc(infos, func(a, b Info) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return infos
}

// Register adds a device to the catalogue.
// It generates an ID and fills the family's default channel count when
// they are not provided, validates, and persists the record.
func (r *Registry) Register(ctx context.Context, info *Info) error {
	if info.ID == "" {
		info.ID = GenerateID()
	}
	if info.ChannelCount == 0 {
		info.ChannelCount = info.Family.DefaultChannelCount()
	}

	if err := ValidateInfo(info); err != nil {
		return err
	}
	if err := r.repo.Create(ctx, info); err != nil {
		return err
	}

	stored := info.DeepCopy()
	r.cacheMu.Lock()
	r.cache[info.ID] = &entry{info: stored, handle: r.factory(*stored)}
	r.cacheMu.Unlock()

	r.logger.Info("device registered", "id", info.ID, "name", info.Name, "family", info.Family)
	return nil
}

// Rename changes a device's display name. The live handle is rebuilt so
// that Name() reflects the change; its connection is not touched.
func (r *Registry) Rename(ctx context.Context, id, name string) (*Info, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	info, err := r.GetInfo(ctx, id)
	if err != nil {
		return nil, err
	}
	info.Name = name
	if err := r.repo.Update(ctx, info); err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	if e, ok := r.cache[id]; ok {
		e.info = info.DeepCopy()
		if n, ok := e.handle.(interface{ setName(string) }); ok {
			n.setName(name)
		}
	}
	r.cacheMu.Unlock()

	r.logger.Info("device renamed", "id", id, "name", name)
	return info, nil
}

// Delete removes a device from the catalogue.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("device deleted", "id", id)
	return nil
}

// Count returns the number of cached devices.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// Stats counts catalogued devices for /devices/stats and /metrics.
type Stats struct {
	TotalDevices int
	ByFamily     map[Family]int
	ByState      map[string]int
}

func (r *Registry) GetStats() Stats {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	stats := Stats{
		TotalDevices: len(r.cache),
		ByFamily:     make(map[Family]int),
		ByState:      make(map[string]int),
	}
	for _, e := range r.cache {
		stats.ByFamily[e.info.Family]++
		stats.ByState[e.handle.State().String()]++
	}
	return stats
}
