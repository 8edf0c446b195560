package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGaugesAndCountersAreRegistered(t *testing.T) {
	DevicesConnected.Set(2)
	assert.Equal(t, float64(2), testutil.ToFloat64(DevicesConnected))

	ClientsConnected.Set(1)
	assert.Equal(t, float64(1), testutil.ToFloat64(ClientsConnected))

	before := testutil.ToFloat64(SwitchRotations)
	SwitchRotations.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(SwitchRotations))
}

func TestEventsRoutedIsLabeledByTarget(t *testing.T) {
	before := testutil.ToFloat64(EventsRouted.WithLabelValues("loopback"))
	EventsRouted.WithLabelValues("loopback").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(EventsRouted.WithLabelValues("loopback")))
}

func TestClientUpdatesAppliedIsLabeledByKind(t *testing.T) {
	before := testutil.ToFloat64(ClientUpdatesApplied.WithLabelValues("ping"))
	ClientUpdatesApplied.WithLabelValues("ping").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ClientUpdatesApplied.WithLabelValues("ping")))
}
