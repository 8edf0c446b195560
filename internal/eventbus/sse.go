package eventbus

import "github.com/kelindar/event"

// SubscribeToChannel bridges a kelindar/event callback subscription to a
// channel, used by internal/statusapi's SSE handlers which run a
// select-based write loop rather than a callback.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
			// drop event if the subscriber's channel is full
		}
	})
}
