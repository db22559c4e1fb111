package play

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nerrad567/brickplay-core/internal/device"
)

// LevelResult reports a level broadcast.
type LevelResult struct {
	Family   device.Family   `json:"family"`
	Level    int             `json:"level"`
	Applied  []string        `json:"applied"`
	Failures []DeviceFailure `json:"failures,omitempty"`
}

// LevelBroadcaster applies output levels to every session device of a
// family, independent of any channel binding.
type LevelBroadcaster struct {
	devices   []device.Device
	sessionID string
	logger    Logger
	metrics   *Metrics
	telemetry Telemetry
}

// NewLevelBroadcaster creates a broadcaster over devices.
func NewLevelBroadcaster(devices []device.Device, opts RouterOptions) *LevelBroadcaster {
	b := &LevelBroadcaster{
		devices:   devices,
		sessionID: opts.SessionID,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		telemetry: opts.Telemetry,
	}
	if b.logger == nil {
		b.logger = noopLogger{}
	}
	if b.telemetry == nil {
		b.telemetry = noopTelemetry{}
	}
	return b
}

// SetLevel calls SetLevel on each device of family concurrently and waits
// for them. Devices of other families are untouched. A failing device is
// logged and reported without affecting the others.
func (b *LevelBroadcaster) SetLevel(level int, family device.Family) LevelResult {
	result := LevelResult{Family: family, Level: level, Applied: []string{}}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, dev := range b.devices {
		if dev.Family() != family {
			continue
		}
		wg.Add(1)
		go func(d device.Device) {
			defer wg.Done()
			err := setLevel(d, level)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failures = append(result.Failures, DeviceFailure{
					DeviceID: d.ID(),
					State:    d.State().String(),
					Error:    err.Error(),
				})
				return
			}
			result.Applied = append(result.Applied, d.ID())
		}(dev)
	}
	wg.Wait()

	sort.Strings(result.Applied)
	sort.Slice(result.Failures, func(i, j int) bool { return result.Failures[i].DeviceID < result.Failures[j].DeviceID })
	for _, f := range result.Failures {
		b.logger.Warn("setting level failed", "device_id", f.DeviceID, "family", family, "level", level, "error", f.Error)
	}

	if b.metrics != nil {
		b.metrics.LevelChanges.WithLabelValues(string(family)).Inc()
	}
	b.telemetry.WriteLevelChange(b.sessionID, string(family), level, len(result.Failures))
	return result
}

// Families returns the distinct families among the devices, sorted.
func (b *LevelBroadcaster) Families() []device.Family {
	seen := make(map[device.Family]struct{})
	var families []device.Family
	for _, dev := range b.devices {
		if _, ok := seen[dev.Family()]; ok {
			continue
		}
		seen[dev.Family()] = struct{}{}
		families = append(families, dev.Family())
	}
	sort.Slice(families, func(i, j int) bool { return families[i] < families[j] })
	return families
}

func setLevel(d device.Device, level int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return d.SetLevel(level)
}
