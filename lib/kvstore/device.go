package kvstore

import (
	"strings"

	"github.com/ValentinKolb/tKV/lib/store"
	"github.com/ValentinKolb/tKV/lib/tensor"
)

// DeviceSet is the fixed set of local devices taking part in the store
type DeviceSet struct {
	contexts []tensor.Context
	members  map[tensor.Context]struct{}
}

// NewDeviceSet creates a device set, duplicate contexts are ignored.
// Fails with RetCInvalidDevice if no context is given or a device type is unknown.
func NewDeviceSet(contexts []tensor.Context) (DeviceSet, error) {
	if len(contexts) == 0 {
		return DeviceSet{}, store.NewError(store.RetCInvalidDevice, "at least one device is required")
	}

	set := DeviceSet{members: make(map[tensor.Context]struct{}, len(contexts))}
	for _, ctx := range contexts {
		switch ctx.DeviceType {
		case tensor.DeviceCPU, tensor.DeviceGPU, tensor.DeviceCPUPinned:
		default:
			return DeviceSet{}, store.Errorf(store.RetCInvalidDevice, "unknown device type %d", ctx.DeviceType)
		}
		if ctx.DeviceID < 0 {
			return DeviceSet{}, store.Errorf(store.RetCInvalidDevice, "invalid device id %d", ctx.DeviceID)
		}
		if _, ok := set.members[ctx]; ok {
			continue
		}
		set.members[ctx] = struct{}{}
		set.contexts = append(set.contexts, ctx)
	}
	return set, nil
}

// Contains reports whether ctx is part of the set
func (d DeviceSet) Contains(ctx tensor.Context) bool {
	_, ok := d.members[ctx]
	return ok
}

// Contexts returns the registered devices in registration order
func (d DeviceSet) Contexts() []tensor.Context {
	out := make([]tensor.Context, len(d.contexts))
	copy(out, d.contexts)
	return out
}

// Len returns the number of devices
func (d DeviceSet) Len() int {
	return len(d.contexts)
}

func (d DeviceSet) String() string {
	parts := make([]string, len(d.contexts))
	for i, ctx := range d.contexts {
		parts[i] = ctx.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// checkDevices verifies that every value of pairs lives on a registered device
func (d DeviceSet) checkDevices(pairs []Pair) error {
	for _, p := range pairs {
		if !d.Contains(p.Value.Context()) {
			return store.Errorf(store.RetCInvalidDevice, "value for key %d is on %s, registered devices are %s", p.Key, p.Value.Context(), d)
		}
	}
	return nil
}
