// Package metrics exposes Prometheus instrumentation for the router and
// client receiver: per-device and per-client counters/gauges consumed
// by internal/statusapi's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DevicesConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rkvm",
		Subsystem: "server",
		Name:      "devices_connected",
		Help:      "Number of local input devices currently grabbed by the interceptor layer.",
	})

	ClientsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rkvm",
		Subsystem: "server",
		Name:      "clients_connected",
		Help:      "Number of clients with a live, authenticated session.",
	})

	EventsRouted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rkvm",
		Subsystem: "router",
		Name:      "events_routed_total",
		Help:      "Events routed, labeled by target (\"loopback\" or a client slot id).",
	}, []string{"target"})

	SwitchRotations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rkvm",
		Subsystem: "router",
		Name:      "switch_rotations_total",
		Help:      "Number of times the switch combo rotated the routing target.",
	})

	AuthFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rkvm",
		Subsystem: "auth",
		Name:      "failures_total",
		Help:      "Number of handshakes rejected for a bad HMAC response.",
	})

	DeviceOverflows = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rkvm",
		Subsystem: "router",
		Name:      "overflow_total",
		Help:      "Number of fatal loopback-channel overflow errors (pathological writer latency).",
	})

	ClientDisconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rkvm",
		Subsystem: "server",
		Name:      "client_disconnects_total",
		Help:      "Client sessions ended, labeled by reason.",
	}, []string{"reason"})

	// ClientUpdatesApplied counts Updates the client receiver has
	// successfully applied, labeled by update kind.
	ClientUpdatesApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rkvm",
		Subsystem: "client",
		Name:      "updates_applied_total",
		Help:      "Updates successfully applied by the client receive loop, labeled by kind.",
	}, []string{"kind"})
)
