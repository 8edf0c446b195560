package eventbus

// Event type constants for kelindar/event.
const (
	TypeClientConnected uint32 = iota + 1
	TypeClientDisconnected
	TypeDeviceAdded
	TypeDeviceRemoved
	TypeSwitchRotated
	TypeAuthFailed
	TypeLogEntry
)

// Event is the interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// ClientConnectedEvent is published once a client has completed the
// version exchange and HMAC handshake and is ready to receive updates.
type ClientConnectedEvent struct {
	ClientID  string `json:"client_id" doc:"Correlation id assigned to the client's connection"`
	Remote    string `json:"remote" example:"203.0.113.4:51022" doc:"Remote address the client connected from"`
	Timestamp string `json:"timestamp" example:"2026-07-30T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ClientConnectedEvent.
func (e ClientConnectedEvent) Type() uint32 { return TypeClientConnected }

// ClientDisconnectedEvent is published when a client's connection ends,
// whether by clean close, read/write error, or router eviction.
type ClientDisconnectedEvent struct {
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason" example:"connection reset by peer"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for ClientDisconnectedEvent.
func (e ClientDisconnectedEvent) Type() uint32 { return TypeClientDisconnected }

// DeviceAddedEvent is published when the monitor discovers a new
// grabbable input device.
type DeviceAddedEvent struct {
	DevicePath string `json:"device_path" example:"/dev/input/event3"`
	Name       string `json:"name" example:"Logitech USB Keyboard"`
	Timestamp  string `json:"timestamp"`
}

// Type returns the event type identifier for DeviceAddedEvent.
func (e DeviceAddedEvent) Type() uint32 { return TypeDeviceAdded }

// DeviceRemovedEvent is published when a previously discovered device
// disappears from the device directory or its handle closes unexpectedly.
type DeviceRemovedEvent struct {
	DevicePath string `json:"device_path"`
	Timestamp  string `json:"timestamp"`
}

// Type returns the event type identifier for DeviceRemovedEvent.
func (e DeviceRemovedEvent) Type() uint32 { return TypeDeviceRemoved }

// SwitchRotatedEvent is published each time the router's switch-combo
// state machine rotates the active routing target.
type SwitchRotatedEvent struct {
	PreviousClientID string `json:"previous_client_id"`
	CurrentClientID  string `json:"current_client_id"`
	Timestamp        string `json:"timestamp"`
}

// Type returns the event type identifier for SwitchRotatedEvent.
func (e SwitchRotatedEvent) Type() uint32 { return TypeSwitchRotated }

// AuthFailedEvent is published when a client fails the version exchange
// or HMAC challenge-response handshake.
type AuthFailedEvent struct {
	Remote    string `json:"remote"`
	Reason    string `json:"reason" example:"hmac mismatch"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for AuthFailedEvent.
func (e AuthFailedEvent) Type() uint32 { return TypeAuthFailed }

// LogEntryEvent mirrors a structured log line for SSE tailing by
// internal/statusapi.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2026-07-30T10:30:00.123Z"`
	Level      string         `json:"level" example:"info"`
	Module     string         `json:"module" example:"router"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
