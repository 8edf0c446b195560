package router

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkvm-go/rkvm/internal/model"
	"github.com/rkvm-go/rkvm/internal/wire"
)

type fakeTransport struct {
	mu     sync.Mutex
	sent   []wire.Update
	remote string
}

func newFakeTransport(remote string) *fakeTransport {
	return &fakeTransport{remote: remote}
}

func (f *fakeTransport) Send(u wire.Update, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, u)
	return nil
}

func (f *fakeTransport) ReadPong(_ time.Duration) error { return nil }
func (f *fakeTransport) Close() error                   { return nil }
func (f *fakeTransport) Remote() string                 { return f.remote }

func (f *fakeTransport) snapshot() []wire.Update {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]wire.Update, len(f.sent))
	copy(out, f.sent)
	return out
}

type fakeDevice struct {
	info model.DeviceInfo
	in   chan model.Event

	mu     sync.Mutex
	writes []model.Event
}

func newFakeDevice(info model.DeviceInfo) *fakeDevice {
	return &fakeDevice{info: info, in: make(chan model.Event, 32)}
}

func (f *fakeDevice) Read(ctx context.Context) (model.Event, error) {
	select {
	case ev, ok := <-f.in:
		if !ok {
			return model.Event{}, model.Wrap(model.KindInput, model.ErrBrokenPipe)
		}
		return ev, nil
	case <-ctx.Done():
		return model.Event{}, ctx.Err()
	}
}

func (f *fakeDevice) WriteEvent(ev model.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, ev)
	return nil
}

func (f *fakeDevice) Info() model.DeviceInfo { return f.info }

func (f *fakeDevice) writeLog() []model.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Event, len(f.writes))
	copy(out, f.writes)
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, nil))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func comboConfig(propagate bool) Config {
	return Config{
		Combo:               []model.Key{model.KeyLeftCtrl, model.KeyRightCtrl},
		PropagateSwitchKeys: propagate,
		PingInterval:        time.Hour,
		ReadTimeout:         time.Second,
		WriteTimeout:        time.Second,
	}
}

func startRouter(t *testing.T, cfg Config) (*Router, context.CancelFunc) {
	t.Helper()
	r := New(cfg, nil, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	t.Cleanup(cancel)
	return r, cancel
}

func TestRouter_LoopbackWhenCurrentIsZero(t *testing.T) {
	r, _ := startRouter(t, comboConfig(true))
	ctx := context.Background()

	mouse := newFakeDevice(model.DeviceInfo{Name: "mouse"})
	require.NoError(t, r.AddDevice(ctx, mouse))

	mouse.in <- model.Rel(model.RelX, 5)

	require.Eventually(t, func() bool {
		return len(mouse.writeLog()) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, model.Rel(model.RelX, 5), mouse.writeLog()[0])
}

// Holding the full combo reassigns the routing target; because the
// rotation happens as the combo completes, the combo's own press/release
// still reaches the previously active target (here, the server
// loopback) so the release isn't stranded on the new target. A
// following, unrelated key is what proves the switch actually happened.
func TestRouter_SwitchOnFullComboRotatesToClient(t *testing.T) {
	r, _ := startRouter(t, comboConfig(true))
	ctx := context.Background()

	kb := newFakeDevice(model.DeviceInfo{Name: "keyboard"})
	require.NoError(t, r.AddDevice(ctx, kb))

	client := newFakeTransport("client-1")
	require.NoError(t, r.AddClient(ctx, client))

	require.Eventually(t, func() bool {
		return len(client.snapshot()) == 1 // the CreateDevice init update
	}, time.Second, 5*time.Millisecond)

	kb.in <- model.KeyEvent(model.KeyLeftCtrl, true)
	kb.in <- model.KeyEvent(model.KeyRightCtrl, true)
	kb.in <- model.KeyEvent(model.KeyLeftCtrl, false)
	kb.in <- model.KeyEvent(model.KeyRightCtrl, false)

	require.Eventually(t, func() bool {
		return len(kb.writeLog()) == 4+4 // the 4 combo key events plus their sync boundaries, looped back
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, client.snapshot(), 1, "the combo's own press/release stays with the previously active target")

	kb.in <- model.KeyEvent(model.KeyA, true)
	kb.in <- model.KeyEvent(model.KeyA, false)

	require.Eventually(t, func() bool {
		return len(client.snapshot()) >= 3 // init + 2 key events (no synthetic sync for non-combo keys)
	}, time.Second, 5*time.Millisecond)

	var keyEvents int
	for _, u := range client.snapshot()[1:] {
		eu, ok := u.(wire.EventUpdate)
		require.True(t, ok)
		if eu.Event.Kind == model.EventKey {
			keyEvents++
			assert.Equal(t, model.KeyA, eu.Event.Key)
		}
	}
	assert.Equal(t, 2, keyEvents, "events after the switch must follow the new target")
}

func TestRouter_SwitchKeySuppressionNeverForwardsComboKeys(t *testing.T) {
	r, _ := startRouter(t, comboConfig(false))
	ctx := context.Background()

	kb := newFakeDevice(model.DeviceInfo{Name: "keyboard"})
	require.NoError(t, r.AddDevice(ctx, kb))

	client := newFakeTransport("client-1")
	require.NoError(t, r.AddClient(ctx, client))
	require.Eventually(t, func() bool { return len(client.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	kb.in <- model.KeyEvent(model.KeyLeftCtrl, true)
	kb.in <- model.KeyEvent(model.KeyRightCtrl, true)
	kb.in <- model.KeyEvent(model.KeyLeftCtrl, false)
	kb.in <- model.KeyEvent(model.KeyRightCtrl, false)

	kb.in <- model.KeyEvent(model.KeyA, true)
	require.Eventually(t, func() bool { return len(client.snapshot()) >= 2 }, time.Second, 5*time.Millisecond)

	for _, u := range client.snapshot() {
		if eu, ok := u.(wire.EventUpdate); ok && eu.Event.Kind == model.EventKey {
			assert.Equal(t, model.KeyA, eu.Event.Key, "combo key events must never be forwarded")
		}
	}
	require.Eventually(t, func() bool { return len(kb.writeLog()) == 4 }, time.Second, 5*time.Millisecond)
	for _, ev := range kb.writeLog() {
		assert.True(t, ev.IsReportEnd(), "only the combo's sync boundaries are looped back, the key presses themselves are dropped")
	}
}

func TestRouter_DeviceHotplugBroadcastsCreateAndDestroy(t *testing.T) {
	r, _ := startRouter(t, comboConfig(true))
	ctx := context.Background()

	client := newFakeTransport("client-1")
	require.NoError(t, r.AddClient(ctx, client))
	require.Eventually(t, func() bool { return true }, 10*time.Millisecond, time.Millisecond) // let sender start

	kb := newFakeDevice(model.DeviceInfo{Name: "keyboard"})
	require.NoError(t, r.AddDevice(ctx, kb))

	require.Eventually(t, func() bool { return len(client.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	_, ok := client.snapshot()[0].(wire.CreateDevice)
	require.True(t, ok)

	close(kb.in)

	require.Eventually(t, func() bool { return len(client.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	_, ok = client.snapshot()[1].(wire.DestroyDevice)
	require.True(t, ok)
}

func TestRouter_ClientDisconnectFallsBackToLoopback(t *testing.T) {
	r, _ := startRouter(t, comboConfig(true))
	ctx := context.Background()

	mouse := newFakeDevice(model.DeviceInfo{Name: "mouse"})
	require.NoError(t, r.AddDevice(ctx, mouse))

	kb := newFakeDevice(model.DeviceInfo{Name: "keyboard"})
	require.NoError(t, r.AddDevice(ctx, kb))

	client := newFakeTransport("client-1")
	require.NoError(t, r.AddClient(ctx, client))
	require.Eventually(t, func() bool { return len(client.snapshot()) == 2 }, time.Second, 5*time.Millisecond)

	kb.in <- model.KeyEvent(model.KeyLeftCtrl, true)
	kb.in <- model.KeyEvent(model.KeyRightCtrl, true)
	kb.in <- model.KeyEvent(model.KeyLeftCtrl, false)
	kb.in <- model.KeyEvent(model.KeyRightCtrl, false)

	require.Eventually(t, func() bool {
		return len(kb.writeLog()) == 4+4 // the combo and its sync boundaries, looped back to the previous target
	}, time.Second, 5*time.Millisecond)

	r.closed <- clientClosed{slot: 0}

	mouse.in <- model.Rel(model.RelX, 1)
	require.Eventually(t, func() bool {
		return len(mouse.writeLog()) == 1
	}, time.Second, 5*time.Millisecond)
}
