//go:build linux

package rkvmio

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl direction bits, matching linux/ioctl.h's _IOC macro.
const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2

	iocNrBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNrShift   = 0
	iocTypeShift = iocNrShift + iocNrBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits
)

// ioc reproduces the kernel's _IOC(dir, type, nr, size) macro so the
// request codes below are computed the same way the C uinput/input
// headers define them, instead of being copied as opaque magic
// numbers.
func ioc(dir, typ, nr, size uint) uint {
	return (dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNrShift) | (size << iocSizeShift)
}

func iow(typ, nr, size uint) uint { return ioc(iocWrite, typ, nr, size) }
func ior(typ, nr, size uint) uint { return ioc(iocRead, typ, nr, size) }
func io(typ, nr uint) uint        { return ioc(iocNone, typ, nr, 0) }

const (
	sizeofInt       = 4
	sizeofInputID   = 8  // bustype, vendor, product, version: 4×uint16
	sizeofAbsInfo   = 24 // 6×int32 (value, min, max, fuzz, flat, resolution)
	sizeofUinputSetup = sizeofInputID + 80 + 4
	sizeofAbsSetup    = 2 + 2 + sizeofAbsInfo // padding + code + struct input_absinfo
)

const typeE = 'E' // evdev ioctl type
const typeU = 'U' // uinput ioctl type

var (
	eviocgrab   = iow(typeE, 0x90, sizeofInt)
	eviocgid    = ior(typeE, 0x02, sizeofInputID)
	eviocgrep   = ior(typeE, 0x03, 2*sizeofInt)
	eviocsrep   = iow(typeE, 0x03, 2*sizeofInt)

	uiDevCreate  = io(typeU, 1)
	uiDevDestroy = io(typeU, 2)
	uiDevSetup   = iow(typeU, 3, sizeofUinputSetup)
	uiAbsSetup   = iow(typeU, 4, sizeofAbsSetup)
	uiSetEvBit   = iow(typeU, 100, sizeofInt)
	uiSetKeyBit  = iow(typeU, 101, sizeofInt)
	uiSetRelBit  = iow(typeU, 102, sizeofInt)
	uiSetAbsBit  = iow(typeU, 103, sizeofInt)
)

// uiGetSysname builds UI_GET_SYSNAME(len): _IOC(READ, 'U', 44, len). The
// kernel writes back the created device's sysfs name (e.g. "input23"),
// letting the caller locate the matching /dev/input/eventN node.
func uiGetSysname(length int) uint {
	return ior(typeU, 44, uint(length))
}

// evbitReq builds the EVIOCGBIT(ev, len) request: _IOC(READ, 'E', 0x20+ev, len).
func evbitReq(ev uint, length int) uint {
	return ioc(iocRead, typeE, 0x20+ev, uint(length))
}

func ioctlInt(fd int, req uint, arg int) error {
	return unix.IoctlSetInt(fd, req, arg)
}

// ioctlBytes issues an ioctl whose argument is a pointer to buf, for
// the fixed-size kernel structs (input_id, input_absinfo, bitmaps) that
// golang.org/x/sys/unix has no typed helper for.
func ioctlBytes(fd int, req uint, buf []byte) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return errno
	}
	return nil
}

// ioctlPtr issues an ioctl whose argument is an arbitrary pointer, used
// for UI_DEV_SETUP/UI_ABS_SETUP's struct arguments.
func ioctlPtr(fd int, req uint, ptr unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(ptr))
	if errno != 0 {
		return errno
	}
	return nil
}
