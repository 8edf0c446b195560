// Package interceptor owns a single grabbed evdev input node end to
// end: translating its raw event stream to the portable model, writing
// back anything it cannot translate to the node's own paired virtual
// device, and exposing a cancel-safe Read that survives repeated
// context cancellation without losing buffered state.
package interceptor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rkvm-go/rkvm/internal/model"
	"github.com/rkvm-go/rkvm/internal/registry"
	"github.com/rkvm-go/rkvm/internal/rkvmio"
	"github.com/rkvm-go/rkvm/internal/writer"
)

// writeback is the pending (unmapped) event awaiting forwarding to the
// paired writer, preserved across Read cancellations.
type writeback struct {
	pending bool
	raw     model.RawEvent
}

// Interceptor reads one grabbed evdev node, translates its events, and
// forwards anything unmapped to its own paired virtual device.
type Interceptor struct {
	dev    *rkvmio.Device
	writer *writer.Writer
	handle *registry.Handle
	wHandle *registry.Handle

	info model.DeviceInfo

	asm assembler
}

// Open grabs path exclusively and builds its paired writer. It returns
// model.ErrNotApplicable (never a hard error) when path is not an event
// node, advertises EV_SW, is already one of our own writer outputs, or
// is already grabbed by another process.
func Open(path string, reg *registry.Registry) (*Interceptor, error) {
	if !strings.HasPrefix(filepath.Base(path), "event") {
		return nil, model.ErrNotApplicable
	}

	dev, err := rkvmio.OpenDevice(path)
	if err != nil {
		return nil, err
	}

	hasSwitch, err := dev.HasSwitchEvents()
	if err != nil {
		dev.Close()
		return nil, err
	}
	if hasSwitch {
		dev.Close()
		return nil, model.ErrNotApplicable
	}

	node, err := dev.Stat()
	if err != nil {
		dev.Close()
		return nil, err
	}
	handle, err := reg.Register(node)
	if err != nil {
		dev.Close()
		return nil, err
	}

	if err := dev.Grab(); err != nil {
		handle.Close()
		dev.Close()
		return nil, err
	}

	info, err := describe(dev)
	if err != nil {
		handle.Close()
		dev.Close()
		return nil, err
	}

	w, err := writer.FromDeviceInfo(info).Build()
	if err != nil {
		handle.Close()
		dev.Close()
		return nil, err
	}

	var wHandle *registry.Handle
	if eventPath, err := w.EventNodePath(); err == nil {
		if wNode, statErr := stat(eventPath); statErr == nil {
			if h, regErr := reg.Register(wNode); regErr == nil {
				wHandle = h
			}
		}
	}

	return &Interceptor{
		dev:     dev,
		writer:  w,
		handle:  handle,
		wHandle: wHandle,
		info:    info,
	}, nil
}

func stat(path string) (rkvmio.DeviceNode, error) {
	d, err := rkvmio.OpenDevice(path)
	if err != nil {
		return rkvmio.DeviceNode{}, err
	}
	defer d.Close()
	return d.Stat()
}

func describe(dev *rkvmio.Device) (model.DeviceInfo, error) {
	vendor, product, version, err := dev.Identity()
	if err != nil {
		return model.DeviceInfo{}, err
	}
	rel, err := dev.RelAxes()
	if err != nil {
		return model.DeviceInfo{}, err
	}
	abs, err := dev.AbsAxes()
	if err != nil {
		return model.DeviceInfo{}, err
	}
	key, err := dev.Keys()
	if err != nil {
		return model.DeviceInfo{}, err
	}

	var repeat *model.Autorepeat
	if r, err := dev.Repeat(); err == nil {
		repeat = &r
	}

	return model.DeviceInfo{
		Name:    dev.Path(),
		Vendor:  vendor,
		Product: product,
		Version: version,
		Rel:     rel,
		Abs:     abs,
		Key:     key,
		Repeat:  repeat,
	}, nil
}

// Info returns the device's capability descriptor, as captured at
// Open time (name, vendor, product, version, and the rel/abs/key
// capability sets).
func (i *Interceptor) Info() model.DeviceInfo { return i.info }

// WriteEvent delegates to the paired virtual writer, used by the
// router's loopback path (current == 0) to replay events from this
// device back to itself.
func (i *Interceptor) WriteEvent(ev model.Event) error {
	return i.writer.Write(ev)
}

// Read returns exactly one logical event, buffering the in-progress
// report internally. It is cancel-safe: ctx cancellation during the
// blocking device read leaves events, writing, and dropped exactly as
// they were, so a retried call resumes where the previous one left
// off.
func (i *Interceptor) Read(ctx context.Context) (model.Event, error) {
	if err := i.asm.resumeWriteback(i.writer.WriteRaw); err != nil {
		return model.Event{}, err
	}

	for {
		ready, err := i.pumpOnce(ctx)
		if err != nil {
			return model.Event{}, err
		}
		if ready {
			return i.asm.pop(), nil
		}
	}
}

func (i *Interceptor) pumpOnce(ctx context.Context) (bool, error) {
	raw, err := i.readRaw(ctx)
	if err != nil {
		return false, err
	}
	return i.asm.feed(raw, i.writer.WriteRaw)
}

// readRaw blocks until a raw event is available or ctx is done,
// without losing the event on cancellation: SetReadDeadline only ever
// races against the clock, never discards a byte already read off the
// wire, and a context cancellation simply returns before any read has
// started or after a clean timeout.
func (i *Interceptor) readRaw(ctx context.Context) (model.RawEvent, error) {
	for {
		deadline := time.Now().Add(50 * time.Millisecond)
		if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
			deadline = dl
		}
		if err := i.dev.SetReadDeadline(deadline); err != nil {
			return model.RawEvent{}, err
		}

		raw, err := i.dev.ReadRaw()
		if err == nil {
			return raw, nil
		}
		if !os.IsTimeout(err) {
			return model.RawEvent{}, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.RawEvent{}, ctxErr
		}
	}
}

// Name reports the device's path, which serves as its display name;
// the kernel-reported device name is not read.
func (i *Interceptor) Name() string { return i.dev.Path() }

// Close releases the grab, destroys the paired writer, and removes
// both registry entries.
func (i *Interceptor) Close() error {
	if i.wHandle != nil {
		i.wHandle.Close()
	}
	i.handle.Close()
	werr := i.writer.Close()
	_ = i.dev.Release()
	derr := i.dev.Close()
	return errors.Join(werr, derr)
}
