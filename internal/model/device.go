package model

// DeviceID is the server-assigned identifier for a device, allocated
// monotonically and never reused within a single server process
// lifetime.
type DeviceID uint64

// Autorepeat carries the optional EVIOCGREP delay/period pair so a
// remote writer's kernel drives autorepeat itself instead of the
// events being replayed over the wire.
type Autorepeat struct {
	Delay  uint32
	Period uint32
}

// DeviceInfo is the immutable capability descriptor broadcast in a
// CreateDevice update. A client's virtual writer must enable exactly
// the axes and keys listed here — synthesizing anything outside this
// set is a protocol error because the kernel silently drops
// unconfigured event codes.
type DeviceInfo struct {
	ID      DeviceID
	Name    string
	Vendor  uint16
	Product uint16
	Version uint16

	Rel []RelAxis
	Abs map[AbsAxis]AbsInfo
	Key []Key

	Repeat *Autorepeat
}

// HasRel reports whether axis is in the device's relative axis set.
func (d DeviceInfo) HasRel(axis RelAxis) bool {
	for _, a := range d.Rel {
		if a == axis {
			return true
		}
	}
	return false
}

// HasKey reports whether key is in the device's key set.
func (d DeviceInfo) HasKey(key Key) bool {
	for _, k := range d.Key {
		if k == key {
			return true
		}
	}
	return false
}
