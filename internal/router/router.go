// Package router implements the server's dispatcher: it owns the
// switch-combo state machine and the current/previous/changed routing
// state, multiplexing three event sources (new connections, new local
// devices, and events from those devices) through a single goroutine
// so that state never needs a lock.
package router

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/rkvm-go/rkvm/internal/eventbus"
	"github.com/rkvm-go/rkvm/internal/metrics"
	"github.com/rkvm-go/rkvm/internal/model"
	"github.com/rkvm-go/rkvm/internal/wire"
)

// DeviceSource is the minimal surface the router needs from an opened
// device. *interceptor.Interceptor satisfies it directly; tests supply
// a fake.
type DeviceSource interface {
	Read(ctx context.Context) (model.Event, error)
	WriteEvent(ev model.Event) error
	Info() model.DeviceInfo
}

// Router is the server's single-threaded dispatcher. All of the fields
// below current are touched only from the Run goroutine.
type Router struct {
	cfg    Config
	logger *slog.Logger
	bus    *eventbus.Bus

	newClients chan Transport
	newDevices chan DeviceSource
	events     chan deviceEvent
	closed     chan clientClosed
	statusReq  chan chan Snapshot

	ctx context.Context

	nextDeviceID model.DeviceID
	devices      map[model.DeviceID]*localDevice
	slots        map[int]*clientSlot
	slotDone     map[int]chan struct{}
	nextSlot     int

	current  int
	previous int
	changed  bool
	pressed  map[model.Key]struct{}
	combo    map[model.Key]struct{}
}

// New builds a Router. bus may be nil (lifecycle events are then not
// published).
func New(cfg Config, bus *eventbus.Bus, logger *slog.Logger) *Router {
	combo := make(map[model.Key]struct{}, len(cfg.Combo))
	for _, k := range cfg.Combo {
		combo[k] = struct{}{}
	}
	return &Router{
		cfg:        cfg,
		logger:     logger,
		bus:        bus,
		newClients: make(chan Transport),
		newDevices: make(chan DeviceSource),
		events:     make(chan deviceEvent, 64),
		closed:     make(chan clientClosed, 8),
		statusReq:  make(chan chan Snapshot),
		devices:    make(map[model.DeviceID]*localDevice),
		slots:      make(map[int]*clientSlot),
		slotDone:   make(map[int]chan struct{}),
		pressed:    make(map[model.Key]struct{}),
		combo:      combo,
	}
}

// AddClient enqueues a freshly authenticated connection; it blocks
// until Run's loop accepts it or ctx is done.
func (r *Router) AddClient(ctx context.Context, t Transport) error {
	select {
	case r.newClients <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AddDevice enqueues a newly opened device.
func (r *Router) AddDevice(ctx context.Context, d DeviceSource) error {
	select {
	case r.newDevices <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the router until ctx is cancelled or a fatal error
// occurs. A loopback overflow and any non-disconnect device error are
// fatal, per the error propagation rules.
func (r *Router) Run(ctx context.Context) error {
	r.ctx = ctx
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case t := <-r.newClients:
			r.acceptClient(t)

		case d := <-r.newDevices:
			r.addDevice(d)

		case de := <-r.events:
			if de.err != nil {
				if err := r.handleDeviceError(de); err != nil {
					return err
				}
				continue
			}
			if err := r.route(de); err != nil {
				return err
			}

		case cc := <-r.closed:
			r.removeSlot(cc.slot)

		case req := <-r.statusReq:
			req <- r.snapshot()
		}
	}
}

// Snapshot is a read-only, point-in-time view of the router's state,
// used by internal/statusapi to serve /status and /devices without
// exposing the router's internals to a second goroutine.
type Snapshot struct {
	Devices []model.DeviceInfo
	Clients []ClientInfo
	Current int
}

// ClientInfo describes one live client slot.
type ClientInfo struct {
	Slot    int
	Remote  string
	Session uuid.UUID
}

// Status queries the router's current state. It blocks until Run's
// loop answers or ctx is done.
func (r *Router) Status(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	select {
	case r.statusReq <- reply:
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (r *Router) snapshot() Snapshot {
	devices := make([]model.DeviceInfo, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, d.info)
	}
	clients := make([]ClientInfo, 0, len(r.slots))
	for slotID, slot := range r.slots {
		clients = append(clients, ClientInfo{Slot: slotID, Remote: slot.remote, Session: slot.session})
	}
	return Snapshot{Devices: devices, Clients: clients, Current: r.current}
}

// acceptClient pushes a new client slot, snapshots every live device
// as an init_updates queue, and spawns the per-client sender task.
func (r *Router) acceptClient(t Transport) {
	if r.current != 0 {
		if _, ok := r.slots[r.current-1]; !ok {
			r.current = 0
		}
	}

	slotID := r.nextSlot
	r.nextSlot++
	outbound := make(chan wire.Update, 1)
	done := make(chan struct{})
	session := uuid.New()
	r.slots[slotID] = &clientSlot{outbound: outbound, remote: t.Remote(), session: session}
	r.slotDone[slotID] = done

	init := make([]wire.Update, 0, len(r.devices))
	for _, d := range r.devices {
		init = append(init, wire.CreateDevice{Info: d.info})
	}

	go r.runClientSender(slotID, t, outbound, done, init)

	metrics.ClientsConnected.Set(float64(len(r.slots)))
	r.logger.Info("client connected", "slot", slotID, "remote", t.Remote(), "session", session)
	if r.bus != nil {
		r.bus.Publish(eventbus.ClientConnectedEvent{
			ClientID:  session.String(),
			Remote:    t.Remote(),
			Timestamp: nowRFC3339(),
		})
	}
}

// addDevice allocates an id, broadcasts CreateDevice, and spawns the
// device's reader and writer-feeding tasks.
func (r *Router) addDevice(d DeviceSource) {
	id := r.nextDeviceID
	r.nextDeviceID++

	info := d.Info()
	info.ID = id
	ld := &localDevice{
		id:      id,
		info:    info,
		inbound: make(chan model.Event, deviceInboundCapacity),
		source:  d,
	}
	r.devices[id] = ld

	r.broadcast(wire.CreateDevice{Info: info})

	go r.runDeviceReader(id, d)
	go r.runDeviceWriter(ld)

	metrics.DevicesConnected.Set(float64(len(r.devices)))
	r.logger.Info("device added", "id", id, "name", info.Name)
	if r.bus != nil {
		r.bus.Publish(eventbus.DeviceAddedEvent{DevicePath: info.Name, Name: info.Name, Timestamp: nowRFC3339()})
	}
}

// runDeviceReader forwards every event (or terminal error) from a
// device's interceptor to the shared events channel.
func (r *Router) runDeviceReader(id model.DeviceID, d DeviceSource) {
	for {
		ev, err := d.Read(r.ctx)
		select {
		case r.events <- deviceEvent{id: id, ev: ev, err: err}:
		case <-r.ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

// runDeviceWriter drains a device's inbound channel and writes to its
// own paired virtual writer, decoupling the router loop from blocking
// writer I/O.
func (r *Router) runDeviceWriter(d *localDevice) {
	for {
		select {
		case ev, ok := <-d.inbound:
			if !ok {
				return
			}
			if err := d.source.WriteEvent(ev); err != nil {
				r.logger.Warn("loopback write failed", "device", d.id, "error", err)
			}
		case <-r.ctx.Done():
			return
		}
	}
}

// handleDeviceError applies the disconnect-vs-fatal split: a broken
// pipe broadcasts DestroyDevice and continues; anything else is fatal.
func (r *Router) handleDeviceError(de deviceEvent) error {
	if !errors.Is(de.err, model.ErrBrokenPipe) {
		return de.err
	}
	d, ok := r.devices[de.id]
	if !ok {
		return nil
	}
	delete(r.devices, de.id)
	close(d.inbound)
	r.broadcast(wire.DestroyDevice{ID: de.id})
	metrics.DevicesConnected.Set(float64(len(r.devices)))
	r.logger.Info("device disconnected", "id", de.id)
	if r.bus != nil {
		r.bus.Publish(eventbus.DeviceRemovedEvent{DevicePath: d.info.Name, Timestamp: nowRFC3339()})
	}
	return nil
}

// route implements the switch-combo state machine and delivers ev to
// its target.
func (r *Router) route(de deviceEvent) error {
	d, ok := r.devices[de.id]
	if !ok {
		return nil
	}
	ev := de.ev

	isCombo := false
	if ev.Kind == model.EventKey {
		if _, member := r.combo[ev.Key]; member {
			isCombo = true
			if ev.Down {
				r.pressed[ev.Key] = struct{}{}
			} else {
				delete(r.pressed, ev.Key)
			}
		}
	}

	idx := r.current
	if isCombo {
		if len(r.combo) > 0 && len(r.pressed) == len(r.combo) {
			idx = r.current
			r.previous = r.current
			r.current = r.nextTarget(r.current)
			r.changed = true
			metrics.SwitchRotations.Inc()
			r.publishSwitchRotated()
		} else if r.changed {
			idx = r.previous
			if len(r.pressed) == 0 {
				r.changed = false
			}
		}
	}

	if !(isCombo && !r.cfg.PropagateSwitchKeys) {
		if err := r.emit(idx, d, ev); err != nil {
			return err
		}
	}
	if isCombo {
		if err := r.emit(idx, d, model.SyncEvent(model.SyncAll)); err != nil {
			return err
		}
	}
	return nil
}

// nextTarget rotates idx forward through the live client slots,
// skipping the server (0) on wraparound.
func (r *Router) nextTarget(idx int) int {
	if len(r.slots) == 0 {
		return 0
	}
	ids := make([]int, 0, len(r.slots))
	for id := range r.slots {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	if idx == 0 {
		return ids[0] + 1
	}
	cur := idx - 1
	for i, id := range ids {
		if id == cur {
			if i == len(ids)-1 {
				return ids[0] + 1
			}
			return ids[i+1] + 1
		}
	}
	return ids[0] + 1
}

// emit delivers ev (originating from device d) to target idx: a
// non-blocking send to the originating device's own writer when idx is
// the server loopback (0), fatal overflow if that channel is
// saturated; otherwise a blocking send to the client's outbound
// channel, which yields to the slot's closure instead of stalling
// forever on a dead connection.
func (r *Router) emit(idx int, d *localDevice, ev model.Event) error {
	if idx == 0 {
		select {
		case d.inbound <- ev:
			metrics.EventsRouted.WithLabelValues("loopback").Inc()
			return nil
		default:
			metrics.DeviceOverflows.Inc()
			return model.Wrapf(model.KindOverflow, "loopback channel for device %d saturated", d.id)
		}
	}

	slotID := idx - 1
	slot, ok := r.slots[slotID]
	if !ok {
		return nil
	}
	done := r.slotDone[slotID]
	select {
	case slot.outbound <- wire.EventUpdate{ID: d.id, Event: ev}:
		metrics.EventsRouted.WithLabelValues(strconv.Itoa(slotID)).Inc()
		return nil
	case <-done:
		r.removeSlot(slotID)
		return nil
	case <-r.ctx.Done():
		return r.ctx.Err()
	}
}

// broadcast sends u to every live client slot, best-effort: a slot
// that cannot accept it within its own closure is dropped the same way
// emit drops a dead client, rather than stalling every other slot.
func (r *Router) broadcast(u wire.Update) {
	for slotID, slot := range r.slots {
		done := r.slotDone[slotID]
		select {
		case slot.outbound <- u:
		case <-done:
			r.removeSlot(slotID)
		case <-r.ctx.Done():
			return
		}
	}
}

// removeSlot drops a client slot; if it was the current routing
// target, the server regains input.
func (r *Router) removeSlot(slotID int) {
	slot, ok := r.slots[slotID]
	if !ok {
		return
	}
	delete(r.slots, slotID)
	delete(r.slotDone, slotID)
	if r.current == slotID+1 {
		r.current = 0
	}
	metrics.ClientsConnected.Set(float64(len(r.slots)))
	metrics.ClientDisconnects.WithLabelValues("connection closed").Inc()
	r.logger.Info("client disconnected", "slot", slotID, "remote", slot.remote, "session", slot.session)
	if r.bus != nil {
		r.bus.Publish(eventbus.ClientDisconnectedEvent{
			ClientID:  slot.session.String(),
			Reason:    "connection closed",
			Timestamp: nowRFC3339(),
		})
	}
}

func (r *Router) publishSwitchRotated() {
	r.logger.Info("switch rotated", "previous", r.previous, "current", r.current)
	if r.bus != nil {
		r.bus.Publish(eventbus.SwitchRotatedEvent{
			PreviousClientID: strconv.Itoa(r.previous),
			CurrentClientID:  strconv.Itoa(r.current),
			Timestamp:        nowRFC3339(),
		})
	}
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
