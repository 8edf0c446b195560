package wire

import "github.com/rkvm-go/rkvm/internal/model"

// updateTag is the Update union's discriminant byte.
type updateTag uint8

const (
	tagCreateDevice updateTag = iota
	tagDestroyDevice
	tagEvent
	tagPing
	tagPong
)

// Update is the top-level message exchanged once a session is
// authenticated. Exactly one of the concrete types below implements
// it.
type Update interface {
	isUpdate()
}

// CreateDevice announces a newly discovered local device and its full
// capability set.
type CreateDevice struct {
	Info model.DeviceInfo
}

// DestroyDevice announces a device has gone away.
type DestroyDevice struct {
	ID model.DeviceID
}

// EventUpdate carries a single translated input event for device ID.
type EventUpdate struct {
	ID    model.DeviceID
	Event model.Event
}

// Ping is sent by the server on PING_INTERVAL to assert liveness.
type Ping struct{}

// Pong answers a Ping. Its encoding is a single discriminant byte, so
// it is always non-empty, as required by the wire codec's testable
// property.
type Pong struct{}

func (CreateDevice) isUpdate()  {}
func (DestroyDevice) isUpdate() {}
func (EventUpdate) isUpdate()   {}
func (Ping) isUpdate()          {}
func (Pong) isUpdate()          {}

// EncodeUpdate serializes u to its wire payload (without the frame
// length prefix — pair with WriteFrame/ReadFrame for that).
func EncodeUpdate(u Update) ([]byte, error) {
	e := &encoder{}
	switch v := u.(type) {
	case CreateDevice:
		e.u8(uint8(tagCreateDevice))
		encodeDeviceInfo(e, v.Info)
	case DestroyDevice:
		e.u8(uint8(tagDestroyDevice))
		e.u64(uint64(v.ID))
	case EventUpdate:
		e.u8(uint8(tagEvent))
		e.u64(uint64(v.ID))
		encodeEvent(e, v.Event)
	case Ping:
		e.u8(uint8(tagPing))
	case Pong:
		e.u8(uint8(tagPong))
	default:
		return nil, model.Wrapf(model.KindProtocol, "unknown update type %T", u)
	}
	return e.bytesOut(), nil
}

// DecodeUpdate deserializes payload (as produced by ReadFrame) into an
// Update. A malformed or truncated payload yields a Protocol error.
func DecodeUpdate(payload []byte) (Update, error) {
	d := newDecoder(payload)
	tag := updateTag(d.u8())
	var u Update
	switch tag {
	case tagCreateDevice:
		u = CreateDevice{Info: decodeDeviceInfo(d)}
	case tagDestroyDevice:
		u = DestroyDevice{ID: model.DeviceID(d.u64())}
	case tagEvent:
		id := model.DeviceID(d.u64())
		u = EventUpdate{ID: id, Event: decodeEvent(d)}
	case tagPing:
		u = Ping{}
	case tagPong:
		u = Pong{}
	default:
		return nil, model.Wrapf(model.KindProtocol, "unknown update discriminant %d", tag)
	}
	if d.err != nil {
		return nil, d.err
	}
	return u, nil
}

func encodeDeviceInfo(e *encoder, info model.DeviceInfo) {
	e.u64(uint64(info.ID))
	e.str(info.Name)
	e.u16(info.Vendor)
	e.u16(info.Product)
	e.u16(info.Version)

	e.u16(uint16(len(info.Rel)))
	for _, axis := range info.Rel {
		e.u16(uint16(axis))
	}

	e.u16(uint16(len(info.Abs)))
	for axis, ai := range info.Abs {
		e.u16(uint16(axis))
		e.i32(ai.Min)
		e.i32(ai.Max)
		e.i32(ai.Fuzz)
		e.i32(ai.Flat)
		e.i32(ai.Resolution)
	}

	e.u16(uint16(len(info.Key)))
	for _, key := range info.Key {
		e.u16(uint16(key))
	}

	if info.Repeat != nil {
		e.bool(true)
		e.u32(info.Repeat.Delay)
		e.u32(info.Repeat.Period)
	} else {
		e.bool(false)
	}
}

func decodeDeviceInfo(d *decoder) model.DeviceInfo {
	info := model.DeviceInfo{}
	info.ID = model.DeviceID(d.u64())
	info.Name = d.str()
	info.Vendor = d.u16()
	info.Product = d.u16()
	info.Version = d.u16()

	relCount := d.u16()
	if relCount > 0 {
		info.Rel = make([]model.RelAxis, relCount)
		for i := range info.Rel {
			info.Rel[i] = model.RelAxis(d.u16())
		}
	}

	absCount := d.u16()
	if absCount > 0 {
		info.Abs = make(map[model.AbsAxis]model.AbsInfo, absCount)
		for i := uint16(0); i < absCount; i++ {
			axis := model.AbsAxis(d.u16())
			info.Abs[axis] = model.AbsInfo{
				Min:        d.i32(),
				Max:        d.i32(),
				Fuzz:       d.i32(),
				Flat:       d.i32(),
				Resolution: d.i32(),
			}
		}
	}

	keyCount := d.u16()
	if keyCount > 0 {
		info.Key = make([]model.Key, keyCount)
		for i := range info.Key {
			info.Key[i] = model.Key(d.u16())
		}
	}

	if d.boolean() {
		info.Repeat = &model.Autorepeat{Delay: d.u32(), Period: d.u32()}
	}

	return info
}

func encodeEvent(e *encoder, ev model.Event) {
	e.u8(uint8(ev.Kind))
	switch ev.Kind {
	case model.EventRel:
		e.u16(uint16(ev.RelAxis))
		e.i32(ev.Value)
	case model.EventAbs:
		e.u16(uint16(ev.AbsAxis))
		e.i32(ev.Value)
	case model.EventAbsMtToolType:
		e.i32(ev.Value)
	case model.EventKey:
		e.u16(uint16(ev.Key))
		e.bool(ev.Down)
	case model.EventSync:
		e.u8(uint8(ev.Sync))
	}
}

func decodeEvent(d *decoder) model.Event {
	kind := model.EventKind(d.u8())
	switch kind {
	case model.EventRel:
		axis := model.RelAxis(d.u16())
		return model.Rel(axis, d.i32())
	case model.EventAbs:
		axis := model.AbsAxis(d.u16())
		return model.Abs(axis, d.i32())
	case model.EventAbsMtToolType:
		return model.AbsMtToolType(d.i32())
	case model.EventKey:
		key := model.Key(d.u16())
		return model.KeyEvent(key, d.boolean())
	case model.EventSync:
		return model.SyncEvent(model.SyncKind(d.u8()))
	default:
		d.fail("unknown event kind")
		return model.Event{}
	}
}
