package play

import (
	"github.com/nerrad567/brickplay-core/internal/creation"
	"github.com/nerrad567/brickplay-core/internal/device"
)

// DeviceLookup resolves device ids to live devices. *device.Registry
// satisfies it.
type DeviceLookup interface {
	ByID(id string) (device.Device, bool)
}

// CollectDevices returns every device referenced by any action of any
// profile of c, each once, in first-seen order. Ids unknown to lookup are
// skipped.
func CollectDevices(c *creation.Creation, lookup DeviceLookup) []device.Device {
	if c == nil {
		return nil
	}

	seen := make(map[string]struct{})
	var devices []device.Device
	for pi := range c.Profiles {
		for ei := range c.Profiles[pi].Events {
			for _, a := range c.Profiles[pi].Events[ei].Actions {
				if _, ok := seen[a.DeviceID]; ok {
					continue
				}
				seen[a.DeviceID] = struct{}{}
				if dev, ok := lookup.ByID(a.DeviceID); ok {
					devices = append(devices, dev)
				}
			}
		}
	}
	return devices
}
