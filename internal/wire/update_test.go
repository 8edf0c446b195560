package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkvm-go/rkvm/internal/model"
)

func roundTrip(t *testing.T, u Update) Update {
	t.Helper()
	payload, err := EncodeUpdate(u)
	require.NoError(t, err)
	got, err := DecodeUpdate(payload)
	require.NoError(t, err)
	return got
}

func TestUpdate_PongEncodesNonEmpty(t *testing.T) {
	payload, err := EncodeUpdate(Pong{})
	require.NoError(t, err)
	assert.Greater(t, len(payload), 0)
}

func TestUpdate_PingRoundTrip(t *testing.T) {
	assert.Equal(t, Ping{}, roundTrip(t, Ping{}))
}

func TestUpdate_DestroyDeviceRoundTrip(t *testing.T) {
	got := roundTrip(t, DestroyDevice{ID: 42})
	assert.Equal(t, DestroyDevice{ID: 42}, got)
}

func TestUpdate_EventRoundTrip(t *testing.T) {
	cases := []model.Event{
		model.Rel(model.RelX, -12),
		model.Abs(model.AbsY, 900),
		model.AbsMtToolType(int32(model.ToolPen)),
		model.KeyEvent(model.KeyLeftCtrl, true),
		model.SyncEvent(model.SyncAll),
		model.SyncEvent(model.SyncMt),
	}
	for _, ev := range cases {
		got := roundTrip(t, EventUpdate{ID: 7, Event: ev})
		assert.Equal(t, EventUpdate{ID: 7, Event: ev}, got)
	}
}

func TestUpdate_CreateDeviceRoundTrip_EmptyCapabilities(t *testing.T) {
	info := model.DeviceInfo{ID: 1, Name: "empty device", Vendor: 1, Product: 2, Version: 3}
	got := roundTrip(t, CreateDevice{Info: info})
	create, ok := got.(CreateDevice)
	require.True(t, ok)
	assert.Equal(t, info.ID, create.Info.ID)
	assert.Equal(t, info.Name, create.Info.Name)
	assert.Empty(t, create.Info.Rel)
	assert.Empty(t, create.Info.Abs)
	assert.Empty(t, create.Info.Key)
	assert.Nil(t, create.Info.Repeat)
}

func TestUpdate_CreateDeviceRoundTrip_FullCapabilities(t *testing.T) {
	info := model.DeviceInfo{
		ID:      99,
		Name:    "full keyboard+mouse",
		Vendor:  0x046d,
		Product: 0xc52b,
		Version: 1,
		Rel:     []model.RelAxis{model.RelX, model.RelY, model.RelWheelHiRes},
		Abs: map[model.AbsAxis]model.AbsInfo{
			model.AbsX: {Min: 0, Max: 1920, Fuzz: 0, Flat: 0, Resolution: 1},
			model.AbsY: {Min: 0, Max: 1080},
		},
		Key:    []model.Key{model.KeyLeftCtrl, model.KeyRightCtrl, model.BtnLeft},
		Repeat: &model.Autorepeat{Delay: 250, Period: 33},
	}

	got := roundTrip(t, CreateDevice{Info: info})
	create, ok := got.(CreateDevice)
	require.True(t, ok)
	assert.Equal(t, info.ID, create.Info.ID)
	assert.Equal(t, info.Name, create.Info.Name)
	assert.Equal(t, info.Vendor, create.Info.Vendor)
	assert.ElementsMatch(t, info.Rel, create.Info.Rel)
	assert.Equal(t, info.Abs, create.Info.Abs)
	assert.ElementsMatch(t, info.Key, create.Info.Key)
	require.NotNil(t, create.Info.Repeat)
	assert.Equal(t, *info.Repeat, *create.Info.Repeat)
}

func TestUpdate_TruncatedPayloadFailsToDecode(t *testing.T) {
	payload, err := EncodeUpdate(CreateDevice{Info: model.DeviceInfo{ID: 1, Name: "x"}})
	require.NoError(t, err)

	_, err = DecodeUpdate(payload[:len(payload)-1])
	assert.Error(t, err)
}

func TestUpdate_UnknownDiscriminantFailsToDecode(t *testing.T) {
	_, err := DecodeUpdate([]byte{255})
	assert.Error(t, err)
}
