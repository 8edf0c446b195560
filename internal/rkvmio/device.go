//go:build linux

package rkvmio

import (
	"encoding/binary"
	"errors"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/rkvm-go/rkvm/internal/model"
)

// inputEventSize is sizeof(struct input_event) on a 64-bit kernel: two
// timeval longs (16 bytes) + type + code + value.
const inputEventSize = 24

// Device is an open, exclusively-grabbed evdev input node. It is
// deliberately thin: report assembly and the dropped-flag state machine
// belong to internal/interceptor, which is the cancel-safety boundary
// spec'd for read().
type Device struct {
	file *os.File
	fd   int
	path string
}

// DeviceNode identifies the filesystem node backing a Device, used by
// internal/registry to prevent a process from grabbing its own writer
// output.
type DeviceNode struct {
	Dev   uint64
	Inode uint64
}

// OpenDevice opens path non-blocking and returns a Device. It does not
// grab the device; call Grab separately so the caller can consult the
// registry first.
func OpenDevice(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, model.Wrapf(model.KindInput, "open %s: %w", path, err)
	}
	return &Device{file: os.NewFile(uintptr(fd), path), fd: fd, path: path}, nil
}

// Stat returns the (device-number, inode) pair identifying this node in
// the registry.
func (d *Device) Stat() (DeviceNode, error) {
	var st unix.Stat_t
	if err := unix.Fstat(d.fd, &st); err != nil {
		return DeviceNode{}, model.Wrapf(model.KindInput, "stat %s: %w", d.path, err)
	}
	return DeviceNode{Dev: uint64(st.Dev), Inode: st.Ino}, nil
}

// HasSwitchEvents reports whether the device advertises EV_SW, marking
// it a switch-bearing device that Interceptor.Open must refuse.
func (d *Device) HasSwitchEvents() (bool, error) {
	return d.hasEvType(uint(model.EvSw))
}

func (d *Device) hasEvType(ev uint) (bool, error) {
	const evBits = 0x20 // EV_MAX fits in 0x20 bytes (kernel codespace)
	buf := make([]byte, evBits)
	req := evbitReq(0, len(buf))
	if err := ioctlBytes(d.fd, req, buf); err != nil {
		return false, model.Wrapf(model.KindInput, "EVIOCGBIT(0): %w", err)
	}
	byteIdx, bitIdx := ev/8, ev%8
	if int(byteIdx) >= len(buf) {
		return false, nil
	}
	return buf[byteIdx]&(1<<bitIdx) != 0, nil
}

// Bits returns the bitmap the kernel reports for EVIOCGBIT(ev, ...),
// used by the caller to enumerate a device's rel/abs/key capabilities.
func (d *Device) Bits(ev uint, maxCode int) ([]byte, error) {
	length := (maxCode + 7) / 8
	buf := make([]byte, length)
	req := evbitReq(ev, length)
	if err := ioctlBytes(d.fd, req, buf); err != nil {
		return nil, model.Wrapf(model.KindInput, "EVIOCGBIT(%d): %w", ev, err)
	}
	return buf, nil
}

// HasBit reports whether bit `code` is set in a bitmap returned by Bits.
func HasBit(bitmap []byte, code int) bool {
	idx, bit := code/8, code%8
	if idx >= len(bitmap) {
		return false
	}
	return bitmap[idx]&(1<<uint(bit)) != 0
}

// AbsInfo reads the kernel's calibration for a single absolute axis via
// EVIOCGABS.
func (d *Device) AbsInfo(axis model.AbsAxis) (model.AbsInfo, error) {
	req := ior(typeE, 0x40+uint(axis), sizeofAbsInfo)
	buf := make([]byte, sizeofAbsInfo)
	if err := ioctlBytes(d.fd, req, buf); err != nil {
		return model.AbsInfo{}, model.Wrapf(model.KindInput, "EVIOCGABS(%d): %w", axis, err)
	}
	return model.AbsInfo{
		Min:        int32(binary.LittleEndian.Uint32(buf[4:8])),
		Max:        int32(binary.LittleEndian.Uint32(buf[8:12])),
		Fuzz:       int32(binary.LittleEndian.Uint32(buf[12:16])),
		Flat:       int32(binary.LittleEndian.Uint32(buf[16:20])),
		Resolution: int32(binary.LittleEndian.Uint32(buf[20:24])),
	}, nil
}

// Repeat reads the device's EVIOCGREP autorepeat delay/period, if any.
func (d *Device) Repeat() (model.Autorepeat, error) {
	buf := make([]byte, 2*sizeofInt)
	if err := ioctlBytes(d.fd, eviocgrep, buf); err != nil {
		return model.Autorepeat{}, model.Wrapf(model.KindInput, "EVIOCGREP: %w", err)
	}
	return model.Autorepeat{
		Delay:  binary.LittleEndian.Uint32(buf[0:4]),
		Period: binary.LittleEndian.Uint32(buf[4:8]),
	}, nil
}

// Kernel codespace maxima (linux/input-event-codes.h REL_MAX/ABS_MAX/KEY_MAX),
// used to size the EVIOCGBIT bitmaps read by RelAxes/AbsAxes/Keys.
const (
	RelMax = 0x0f
	AbsMax = 0x3f
	KeyMax = 0x2ff
)

// RelAxes enumerates the device's declared relative axes, restricted to
// the axes rkvm forwards (see model.IsRelAxis).
func (d *Device) RelAxes() ([]model.RelAxis, error) {
	bits, err := d.Bits(uint(model.EvRel), RelMax)
	if err != nil {
		return nil, err
	}
	var axes []model.RelAxis
	for code := 0; code <= RelMax; code++ {
		if HasBit(bits, code) {
			if axis, ok := model.IsRelAxis(uint16(code)); ok {
				axes = append(axes, axis)
			}
		}
	}
	return axes, nil
}

// AbsAxes enumerates the device's declared absolute axes together with
// their calibration, skipping any axis whose bounds are nonsensical
// (model.AbsInfo.Sane reports false) per the interceptor's
// before-first-read disabling rule.
func (d *Device) AbsAxes() (map[model.AbsAxis]model.AbsInfo, error) {
	bits, err := d.Bits(uint(model.EvAbs), AbsMax)
	if err != nil {
		return nil, err
	}
	abs := make(map[model.AbsAxis]model.AbsInfo)
	for code := 0; code <= AbsMax; code++ {
		if !HasBit(bits, code) {
			continue
		}
		info, err := d.AbsInfo(model.AbsAxis(code))
		if err != nil {
			return nil, err
		}
		if !info.Sane() {
			continue
		}
		abs[model.AbsAxis(code)] = info
	}
	return abs, nil
}

// Keys enumerates the device's declared keys/buttons, restricted to the
// kernel's key codespace (model.IsKey).
func (d *Device) Keys() ([]model.Key, error) {
	bits, err := d.Bits(uint(model.EvKey), KeyMax)
	if err != nil {
		return nil, err
	}
	var keys []model.Key
	for code := 0; code <= KeyMax; code++ {
		if HasBit(bits, code) && model.IsKey(uint16(code)) {
			keys = append(keys, model.Key(code))
		}
	}
	return keys, nil
}

// Identity reads vendor/product/version via EVIOCGID.
func (d *Device) Identity() (vendor, product, version uint16, err error) {
	buf := make([]byte, sizeofInputID)
	if ioErr := ioctlBytes(d.fd, eviocgid, buf); ioErr != nil {
		return 0, 0, 0, model.Wrapf(model.KindInput, "EVIOCGID: %w", ioErr)
	}
	vendor = binary.LittleEndian.Uint16(buf[2:4])
	product = binary.LittleEndian.Uint16(buf[4:6])
	version = binary.LittleEndian.Uint16(buf[6:8])
	return vendor, product, version, nil
}

// Grab takes an exclusive EVIOCGRAB of the device so the desktop no
// longer sees its events. EBUSY means another process already holds the
// grab; the caller should treat that as model.ErrNotApplicable, not a
// fatal error.
func (d *Device) Grab() error {
	if err := ioctlInt(d.fd, eviocgrab, 1); err != nil {
		if err == unix.EBUSY {
			return model.ErrNotApplicable
		}
		return model.Wrapf(model.KindInput, "EVIOCGRAB: %w", err)
	}
	return nil
}

// Release drops the exclusive grab.
func (d *Device) Release() error {
	return ioctlInt(d.fd, eviocgrab, 0)
}

// SetReadDeadline arranges for a pending or future Read to fail with
// os.ErrDeadlineExceeded once the deadline passes, without closing the
// device — the same pattern tty_unix.go uses to make a blocking read
// loop cancellable by a context without sacrificing exclusivity of the
// fd. The zero Time clears any deadline.
func (d *Device) SetReadDeadline(t time.Time) error {
	return d.file.SetReadDeadline(t)
}

// ReadRaw reads exactly one input_event off the device. The kernel
// delivers struct input_event records atomically on evdev character
// devices, so a single Read call either returns a whole 24-byte record
// or an error — never a partial one. It is safe to call repeatedly
// across deadline expirations: a timed-out call can simply be retried.
func (d *Device) ReadRaw() (model.RawEvent, error) {
	var buf [inputEventSize]byte
	n, err := d.file.Read(buf[:])
	if err != nil {
		if os.IsTimeout(err) {
			return model.RawEvent{}, err
		}
		if isDisconnect(err) {
			return model.RawEvent{}, model.Wrap(model.KindInput, model.ErrBrokenPipe)
		}
		return model.RawEvent{}, model.Wrapf(model.KindInput, "read %s: %w", d.path, err)
	}
	if n != inputEventSize {
		return model.RawEvent{}, model.Wrapf(model.KindInput, "short read (%d bytes) from %s", n, d.path)
	}
	return model.RawEvent{
		Type:  binary.LittleEndian.Uint16(buf[16:18]),
		Code:  binary.LittleEndian.Uint16(buf[18:20]),
		Value: int32(binary.LittleEndian.Uint32(buf[20:24])),
	}, nil
}

func isDisconnect(err error) bool {
	return os.IsNotExist(err) || errors.Is(err, unix.ENODEV)
}

// Close releases the device's file descriptor.
func (d *Device) Close() error {
	return d.file.Close()
}

// Path returns the filesystem path this Device was opened from.
func (d *Device) Path() string { return d.path }
