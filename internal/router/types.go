package router

import (
	"time"

	"github.com/google/uuid"

	"github.com/rkvm-go/rkvm/internal/model"
	"github.com/rkvm-go/rkvm/internal/wire"
)

// Config bundles the router's switch-combo policy and timing budget.
type Config struct {
	Combo               []model.Key
	PropagateSwitchKeys bool
	PingInterval        time.Duration
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
}

// deviceInboundCapacity is the router→writer channel's bounded
// capacity: filling it indicates pathological loopback-writer latency
// and triggers the overflow policy.
const deviceInboundCapacity = 32

// localDevice tracks one currently-live local input device.
type localDevice struct {
	id      model.DeviceID
	info    model.DeviceInfo
	inbound chan model.Event
	source  DeviceSource
}

// clientSlot tracks one currently-live client connection. session is a
// correlation id minted once per connection, independent of the slot
// number a rotation or reconnect may later reassign, so logs/status/SSE
// consumers can follow one client across a slot churn.
type clientSlot struct {
	outbound chan wire.Update
	remote   string
	session  uuid.UUID
}

// deviceEvent is what a device's I/O task forwards to the router's
// shared events channel: either a translated event, or a terminal
// error (broken pipe or otherwise).
type deviceEvent struct {
	id  model.DeviceID
	ev  model.Event
	err error
}

// clientClosed notifies the router loop that a client's sender task
// has exited.
type clientClosed struct {
	slot int
	err  error
}
