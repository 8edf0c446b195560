// Package eventbus provides in-process publish/subscribe for the lifecycle
// events raised by the router and by rkvm-server's connection handler:
// client connections, device hotplug, switch rotations, and
// authentication failures. Subscribers are used by internal/statusapi to
// drive its live SSE feed.
package eventbus

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher for typed event broadcasting.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(ClientConnectedEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case ClientConnectedEvent:
		event.Publish(b.dispatcher, e)
	case ClientDisconnectedEvent:
		event.Publish(b.dispatcher, e)
	case DeviceAddedEvent:
		event.Publish(b.dispatcher, e)
	case DeviceRemovedEvent:
		event.Publish(b.dispatcher, e)
	case SwitchRotatedEvent:
		event.Publish(b.dispatcher, e)
	case AuthFailedEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a typed handler function. The
// handler's parameter type determines which events it receives.
// Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e ClientConnectedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(ClientConnectedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ClientDisconnectedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DeviceAddedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DeviceRemovedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SwitchRotatedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(AuthFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
