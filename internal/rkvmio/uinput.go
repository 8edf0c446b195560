//go:build linux

package rkvmio

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/rkvm-go/rkvm/internal/model"
)

const uinputPath = "/dev/uinput"

const repDelay, repPeriod uint16 = 0, 1

// VirtualDevice is a kernel-visible synthetic input device created
// through /dev/uinput, mirroring a captured device's capability set so
// a remote peer's events can be reinjected.
type VirtualDevice struct {
	file *os.File
	fd   int
}

// UinputBuilder accumulates the capability bits for a virtual device
// before committing it with Build, mirroring the evdev/libevdev_uinput
// builder contract: Build is the only operation that makes the device
// appear in the kernel's input subsystem.
type UinputBuilder struct {
	name    string
	vendor  uint16
	product uint16
	version uint16
	rel     []model.RelAxis
	abs     map[model.AbsAxis]model.AbsInfo
	key     []model.Key
	repeat  *model.Autorepeat
}

// NewUinputBuilder starts a builder for a device named name.
func NewUinputBuilder(name string, vendor, product, version uint16) *UinputBuilder {
	return &UinputBuilder{name: name, vendor: vendor, product: product, version: version}
}

func (b *UinputBuilder) WithRel(axes []model.RelAxis) *UinputBuilder {
	b.rel = axes
	return b
}

func (b *UinputBuilder) WithAbs(abs map[model.AbsAxis]model.AbsInfo) *UinputBuilder {
	b.abs = abs
	return b
}

func (b *UinputBuilder) WithKey(keys []model.Key) *UinputBuilder {
	b.key = keys
	return b
}

func (b *UinputBuilder) WithRepeat(r *model.Autorepeat) *UinputBuilder {
	b.repeat = r
	return b
}

// Build commits the kernel object. The backing device is visible in
// the OS input subsystem (i.e. /dev/input/eventN exists and is
// readable) before Build returns.
func (b *UinputBuilder) Build() (*VirtualDevice, error) {
	fd, err := unix.Open(uinputPath, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, model.Wrapf(model.KindInput, "open %s: %w", uinputPath, err)
	}
	v := &VirtualDevice{file: os.NewFile(uintptr(fd), uinputPath), fd: fd}

	if setErr := v.setupBits(b); setErr != nil {
		v.Close()
		return nil, setErr
	}

	if devErr := v.setupDevice(b); devErr != nil {
		v.Close()
		return nil, devErr
	}

	if createErr := ioctlInt(v.fd, uiDevCreate, 0); createErr != nil {
		v.Close()
		return nil, model.Wrapf(model.KindInput, "UI_DEV_CREATE: %w", createErr)
	}

	if b.repeat != nil {
		if repErr := v.setRepeat(*b.repeat); repErr != nil {
			v.Close()
			return nil, repErr
		}
	}

	return v, nil
}

func (v *VirtualDevice) setupBits(b *UinputBuilder) error {
	if setErr := ioctlInt(v.fd, uiSetEvBit, int(model.EvSyn)); setErr != nil {
		return model.Wrapf(model.KindInput, "UI_SET_EVBIT(EV_SYN): %w", setErr)
	}

	if len(b.rel) > 0 {
		if err := ioctlInt(v.fd, uiSetEvBit, int(model.EvRel)); err != nil {
			return model.Wrapf(model.KindInput, "UI_SET_EVBIT(EV_REL): %w", err)
		}
		for _, axis := range b.rel {
			if err := ioctlInt(v.fd, uiSetRelBit, int(axis)); err != nil {
				return model.Wrapf(model.KindInput, "UI_SET_RELBIT(%d): %w", axis, err)
			}
		}
	}

	if len(b.abs) > 0 {
		if err := ioctlInt(v.fd, uiSetEvBit, int(model.EvAbs)); err != nil {
			return model.Wrapf(model.KindInput, "UI_SET_EVBIT(EV_ABS): %w", err)
		}
		for axis := range b.abs {
			if err := ioctlInt(v.fd, uiSetAbsBit, int(axis)); err != nil {
				return model.Wrapf(model.KindInput, "UI_SET_ABSBIT(%d): %w", axis, err)
			}
		}
	}

	if len(b.key) > 0 {
		if err := ioctlInt(v.fd, uiSetEvBit, int(model.EvKey)); err != nil {
			return model.Wrapf(model.KindInput, "UI_SET_EVBIT(EV_KEY): %w", err)
		}
		for _, key := range b.key {
			if err := ioctlInt(v.fd, uiSetKeyBit, int(key)); err != nil {
				return model.Wrapf(model.KindInput, "UI_SET_KEYBIT(%d): %w", key, err)
			}
		}
	}

	if b.repeat != nil {
		if err := ioctlInt(v.fd, uiSetEvBit, int(model.EvRep)); err != nil {
			return model.Wrapf(model.KindInput, "UI_SET_EVBIT(EV_REP): %w", err)
		}
	}

	for axis, info := range b.abs {
		if err := v.absSetup(axis, info); err != nil {
			return err
		}
	}

	return nil
}

func (v *VirtualDevice) absSetup(axis model.AbsAxis, info model.AbsInfo) error {
	buf := make([]byte, sizeofAbsSetup)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(axis))
	// buf[2:4] is compiler padding between code and the aligned struct.
	binary.LittleEndian.PutUint32(buf[4:8], 0) // absinfo.value
	binary.LittleEndian.PutUint32(buf[8:12], uint32(info.Min))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(info.Max))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(info.Fuzz))
	binary.LittleEndian.PutUint32(buf[20:24], uint32(info.Flat))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(info.Resolution))
	if err := ioctlPtr(v.fd, uiAbsSetup, unsafe.Pointer(&buf[0])); err != nil {
		return model.Wrapf(model.KindInput, "UI_ABS_SETUP(%d): %w", axis, err)
	}
	return nil
}

func (v *VirtualDevice) setupDevice(b *UinputBuilder) error {
	if len(b.name) >= 80 {
		return model.Wrapf(model.KindInput, "device name %q exceeds UINPUT_MAX_NAME_SIZE", b.name)
	}
	buf := make([]byte, sizeofUinputSetup)
	binary.LittleEndian.PutUint16(buf[0:2], unix.BUS_VIRTUAL)
	binary.LittleEndian.PutUint16(buf[2:4], b.vendor)
	binary.LittleEndian.PutUint16(buf[4:6], b.product)
	binary.LittleEndian.PutUint16(buf[6:8], b.version)
	copy(buf[8:8+len(b.name)], b.name)
	if err := ioctlPtr(v.fd, uiDevSetup, unsafe.Pointer(&buf[0])); err != nil {
		return model.Wrapf(model.KindInput, "UI_DEV_SETUP: %w", err)
	}
	return nil
}

func (v *VirtualDevice) setRepeat(r model.Autorepeat) error {
	if err := v.writeRaw(model.RawEvent{Type: model.EvRep, Code: repDelay, Value: int32(r.Delay)}); err != nil {
		return fmt.Errorf("setting repeat delay: %w", err)
	}
	if err := v.writeRaw(model.RawEvent{Type: model.EvRep, Code: repPeriod, Value: int32(r.Period)}); err != nil {
		return fmt.Errorf("setting repeat period: %w", err)
	}
	return nil
}

// WriteRaw injects a single (type, code, value) triple, zero-filling
// the kernel timestamp fields since rkvm never forwards timestamps.
func (v *VirtualDevice) WriteRaw(ev model.RawEvent) error {
	return v.writeRaw(ev)
}

func (v *VirtualDevice) writeRaw(ev model.RawEvent) error {
	var buf [inputEventSize]byte
	binary.LittleEndian.PutUint16(buf[16:18], ev.Type)
	binary.LittleEndian.PutUint16(buf[18:20], ev.Code)
	binary.LittleEndian.PutUint32(buf[20:24], uint32(ev.Value))
	if _, err := v.file.Write(buf[:]); err != nil {
		return model.Wrapf(model.KindInput, "uinput write: %w", err)
	}
	return nil
}

// EventNodePath resolves the /dev/input/eventN node the kernel created
// for this virtual device, by reading its sysfs name via UI_GET_SYSNAME
// and then locating the single "eventN" child under its sysfs
// directory. The registry needs this path to guard against the monitor
// later discovering and re-grabbing our own writer output.
func (v *VirtualDevice) EventNodePath() (string, error) {
	buf := make([]byte, 64)
	req := uiGetSysname(len(buf))
	if err := ioctlBytes(v.fd, req, buf); err != nil {
		return "", model.Wrapf(model.KindInput, "UI_GET_SYSNAME: %w", err)
	}
	sysName := string(buf[:strings.IndexByte(buf[:], 0)])
	sysDir := filepath.Join("/sys/devices/virtual/input", sysName)
	entries, err := os.ReadDir(sysDir)
	if err != nil {
		return "", model.Wrapf(model.KindInput, "reading %s: %w", sysDir, err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "event") {
			return filepath.Join("/dev/input", entry.Name()), nil
		}
	}
	return "", model.Wrapf(model.KindInput, "no event node under %s", sysDir)
}

// Close destroys the virtual device and releases the uinput fd.
func (v *VirtualDevice) Close() error {
	_ = ioctlInt(v.fd, uiDevDestroy, 0)
	return v.file.Close()
}
