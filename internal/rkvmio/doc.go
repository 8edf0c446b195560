// Package rkvmio provides pure-Go, no-cgo access to the Linux evdev and
// uinput kernel interfaces: opening and grabbing a raw input device,
// reading its input_event stream, and building a virtual uinput device
// that mirrors a captured device's capability set.
//
// Every ioctl is issued through golang.org/x/sys/unix rather than the
// bare syscall package, the same way this codebase's device scanning
// issues raw syscalls without cgo.
package rkvmio
