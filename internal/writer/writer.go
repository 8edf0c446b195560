// Package writer turns a device's declared capability set into a
// kernel-visible virtual input device and translates portable
// model.Event values back into the raw (type, code, value) triples the
// kernel expects.
package writer

import (
	"github.com/rkvm-go/rkvm/internal/model"
	"github.com/rkvm-go/rkvm/internal/rkvmio"
)

// Writer injects model.Event values into a single virtual input device.
type Writer struct {
	vdev *rkvmio.VirtualDevice
}

// Builder accumulates a device's capability set before Build commits
// the kernel object, mirroring rkvmio.UinputBuilder one level up so
// callers work in terms of model types instead of raw uinput bit
// numbers.
type Builder struct {
	name    string
	vendor  uint16
	product uint16
	version uint16
	rel     []model.RelAxis
	abs     map[model.AbsAxis]model.AbsInfo
	key     []model.Key
	repeat  *model.Autorepeat
}

// NewBuilder starts a builder for a device named name.
func NewBuilder(name string, vendor, product, version uint16) *Builder {
	return &Builder{name: name, vendor: vendor, product: product, version: version}
}

func (b *Builder) WithRel(axes []model.RelAxis) *Builder {
	b.rel = axes
	return b
}

func (b *Builder) WithAbs(abs map[model.AbsAxis]model.AbsInfo) *Builder {
	b.abs = abs
	return b
}

func (b *Builder) WithKey(keys []model.Key) *Builder {
	b.key = keys
	return b
}

func (b *Builder) WithRepeat(r *model.Autorepeat) *Builder {
	b.repeat = r
	return b
}

// FromDeviceInfo seeds a Builder from a device's broadcast capability
// descriptor, the path every client-side writer takes on CreateDevice.
func FromDeviceInfo(info model.DeviceInfo) *Builder {
	b := NewBuilder(info.Name, info.Vendor, info.Product, info.Version).
		WithRel(info.Rel).
		WithAbs(info.Abs).
		WithKey(info.Key)
	if info.Repeat != nil {
		b.WithRepeat(info.Repeat)
	}
	return b
}

// Build commits the kernel object; the backing device is visible in
// the OS input subsystem before Build returns.
func (b *Builder) Build() (*Writer, error) {
	uib := rkvmio.NewUinputBuilder(b.name, b.vendor, b.product, b.version).
		WithRel(b.rel).
		WithAbs(b.abs).
		WithKey(b.key)
	if b.repeat != nil {
		uib = uib.WithRepeat(b.repeat)
	}
	vdev, err := uib.Build()
	if err != nil {
		return nil, err
	}
	return &Writer{vdev: vdev}, nil
}

// Write translates ev to the native (type, code, value) triple and
// submits it. A terminating Sync{All} is never generated here; callers
// append it themselves once a full report has been written.
func (w *Writer) Write(ev model.Event) error {
	raw, ok := toRaw(ev)
	if !ok {
		return nil
	}
	return w.vdev.WriteRaw(raw)
}

func toRaw(ev model.Event) (model.RawEvent, bool) {
	switch ev.Kind {
	case model.EventRel:
		return model.RawEvent{Type: model.EvRel, Code: uint16(ev.RelAxis), Value: ev.Value}, true
	case model.EventAbs:
		return model.RawEvent{Type: model.EvAbs, Code: uint16(ev.AbsAxis), Value: ev.Value}, true
	case model.EventAbsMtToolType:
		return model.RawEvent{Type: model.EvAbs, Code: uint16(model.AbsMtToolTypeAxis), Value: ev.Value}, true
	case model.EventKey:
		value := int32(0)
		if ev.Down {
			value = 1
		}
		return model.RawEvent{Type: model.EvKey, Code: uint16(ev.Key), Value: value}, true
	case model.EventSync:
		code := model.SynReport
		if ev.Sync == model.SyncMt {
			code = model.SynMtReport
		}
		return model.RawEvent{Type: model.EvSyn, Code: code, Value: 0}, true
	default:
		return model.RawEvent{}, false
	}
}

// WriteRaw injects a raw (type, code, value) triple directly, used by
// the interceptor to forward write-back events it could not map to the
// portable model.
func (w *Writer) WriteRaw(raw model.RawEvent) error {
	return w.vdev.WriteRaw(raw)
}

// Close destroys the virtual device.
func (w *Writer) Close() error {
	return w.vdev.Close()
}

// EventNodePath resolves the /dev/input/eventN node backing this
// writer, so the interceptor can register it against the opened
// device's own node.
func (w *Writer) EventNodePath() (string, error) {
	return w.vdev.EventNodePath()
}
