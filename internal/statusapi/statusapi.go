// Package statusapi is the read-only introspection surface over a
// running rkvm-server: router state (/status, /devices, /clients),
// Prometheus metrics (/metrics), and a live SSE feed of lifecycle
// events and log lines (/events, /logs). It is purely additive
// tooling, grounded on the teacher's internal/api package (huma v2 +
// humago + huma/v2/sse), and never touches routing/auth/codec
// semantics: no remote control, no clipboard, no file transfer.
package statusapi

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rkvm-go/rkvm/internal/eventbus"
	"github.com/rkvm-go/rkvm/internal/logging"
	"github.com/rkvm-go/rkvm/internal/model"
	"github.com/rkvm-go/rkvm/internal/router"
	"github.com/rkvm-go/rkvm/internal/systemd"
	"github.com/rkvm-go/rkvm/internal/version"
)

// RouterView is the subset of *router.Router the status API reads.
type RouterView interface {
	Status(ctx context.Context) (router.Snapshot, error)
}

// Options configures a Server.
type Options struct {
	Router   RouterView
	Bus      *eventbus.Bus
	Systemd  *systemd.Manager // nil disables /api/service
	Username string           // empty disables basic auth
	Password string
}

// Server serves the status API over an http.ServeMux built by humago.
type Server struct {
	api     huma.API
	mux     *http.ServeMux
	router  RouterView
	bus     *eventbus.Bus
	systemd *systemd.Manager
	logger  *slog.Logger

	username, password string
}

// NewServer builds a Server with every route registered; callers pass
// the mux to http.Serve or http.ListenAndServe themselves.
func NewServer(opts Options) *Server {
	mux := http.NewServeMux()
	cfg := huma.DefaultConfig("rkvm status API", version.String())
	cfg.Info.Description = "Read-only introspection over a running rkvm-server: live devices, clients, and metrics."
	if opts.Username != "" {
		cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
			"basicAuth": {Type: "http", Scheme: "basic"},
		}
	}

	api := humago.New(mux, cfg)
	s := &Server{
		api:      api,
		mux:      mux,
		router:   opts.Router,
		bus:      opts.Bus,
		systemd:  opts.Systemd,
		logger:   logging.GetLogger("statusapi"),
		username: opts.Username,
		password: opts.Password,
	}

	if opts.Username != "" {
		api.UseMiddleware(s.basicAuthMiddleware())
	}

	s.registerHealthRoute()
	s.registerStatusRoutes()
	s.registerMetricsRoute()
	s.registerEventsRoute()
	s.registerLogsRoute()
	if s.systemd != nil {
		s.registerServiceRoute()
	}

	return s
}

// Mux returns the underlying http.ServeMux.
func (s *Server) Mux() *http.ServeMux { return s.mux }

func withAuth() []map[string][]string {
	return []map[string][]string{{"basicAuth": {}}}
}

// basicAuthMiddleware mirrors the teacher's server-wide HTTP basic
// auth gate: routes with no declared security requirement (the health
// check) pass through untouched.
func (s *Server) basicAuthMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		authHeader := ctx.Header("Authorization")
		const prefix = "Basic "
		if !strings.HasPrefix(authHeader, prefix) {
			ctx.SetHeader("WWW-Authenticate", `Basic realm="rkvm status API"`)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "authentication required")
			return
		}
		decoded, err := base64.StdEncoding.DecodeString(authHeader[len(prefix):])
		if err != nil {
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "invalid credentials encoding")
			return
		}
		user, pass, ok := strings.Cut(string(decoded), ":")
		if !ok || user != s.username || pass != s.password {
			ctx.SetHeader("WWW-Authenticate", `Basic realm="rkvm status API"`)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "invalid credentials")
			return
		}
		next(ctx)
	}
}

// HealthResponse is the /health response body.
type HealthResponse struct {
	Body struct {
		Status  string `json:"status" example:"ok"`
		Version string `json:"version" example:"1.2.3"`
	}
}

func (s *Server) registerHealthRoute() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Tags:        []string{"health"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, _ *struct{}) (*HealthResponse, error) {
		resp := &HealthResponse{}
		resp.Body.Status = "ok"
		resp.Body.Version = version.String()
		return resp, nil
	})
}

// DeviceView is the JSON shape of a device in /api/devices and /api/status.
type DeviceView struct {
	ID      uint64 `json:"id" example:"3"`
	Name    string `json:"name" example:"/dev/input/event3"`
	Vendor  uint16 `json:"vendor"`
	Product uint16 `json:"product"`
}

// ClientView is the JSON shape of a client in /api/clients and /api/status.
type ClientView struct {
	Slot    int    `json:"slot" example:"0"`
	Remote  string `json:"remote" example:"203.0.113.4:51022"`
	Session string `json:"session" example:"4a1e2e4a-...-..." doc:"Correlation id stable across a slot's lifetime"`
}

// StatusResponse is the /api/status response body.
type StatusResponse struct {
	Body struct {
		Devices []DeviceView `json:"devices"`
		Clients []ClientView `json:"clients"`
		Current int          `json:"current" doc:"0 = server loopback, k+1 = k-th client slot"`
	}
}

func toDeviceView(d model.DeviceInfo) DeviceView {
	return DeviceView{ID: uint64(d.ID), Name: d.Name, Vendor: d.Vendor, Product: d.Product}
}

func (s *Server) registerStatusRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Router status",
		Tags:        []string{"status"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, func(ctx context.Context, _ *struct{}) (*StatusResponse, error) {
		snap, err := s.router.Status(ctx)
		if err != nil {
			return nil, huma.Error503ServiceUnavailable("router unavailable", err)
		}
		resp := &StatusResponse{}
		for _, d := range snap.Devices {
			resp.Body.Devices = append(resp.Body.Devices, toDeviceView(d))
		}
		for _, c := range snap.Clients {
			resp.Body.Clients = append(resp.Body.Clients, ClientView{Slot: c.Slot, Remote: c.Remote, Session: c.Session.String()})
		}
		resp.Body.Current = snap.Current
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List local devices",
		Tags:        []string{"status"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body struct {
			Devices []DeviceView `json:"devices"`
		}
	}, error) {
		snap, err := s.router.Status(ctx)
		if err != nil {
			return nil, huma.Error503ServiceUnavailable("router unavailable", err)
		}
		resp := &struct {
			Body struct {
				Devices []DeviceView `json:"devices"`
			}
		}{}
		for _, d := range snap.Devices {
			resp.Body.Devices = append(resp.Body.Devices, toDeviceView(d))
		}
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-clients",
		Method:      http.MethodGet,
		Path:        "/api/clients",
		Summary:     "List connected clients",
		Tags:        []string{"status"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body struct {
			Clients []ClientView `json:"clients"`
		}
	}, error) {
		snap, err := s.router.Status(ctx)
		if err != nil {
			return nil, huma.Error503ServiceUnavailable("router unavailable", err)
		}
		resp := &struct {
			Body struct {
				Clients []ClientView `json:"clients"`
			}
		}{}
		for _, c := range snap.Clients {
			resp.Body.Clients = append(resp.Body.Clients, ClientView{Slot: c.Slot, Remote: c.Remote, Session: c.Session.String()})
		}
		return resp, nil
	})
}

// registerMetricsRoute mounts promhttp's handler directly on the mux,
// outside huma's typed-response model, the same way the teacher's
// internal/metrics/exporters.HTTPHandler is meant to be mounted.
func (s *Server) registerMetricsRoute() {
	s.mux.Handle("/metrics", promhttp.Handler())
}

// serviceUnitName is the systemd unit this process expects to be
// running under when Options.Systemd is set.
const serviceUnitName = "rkvm-server.service"

// ServiceStatusResponse is the /api/service response body.
type ServiceStatusResponse struct {
	Body struct {
		Service string `json:"service" example:"rkvm-server.service"`
		State   string `json:"state" example:"active"`
	}
}

// registerServiceRoute exposes the systemd unit's ActiveState, mirroring
// the teacher's GetServiceStatus route; the teacher's matching
// restart/stop/start actions are deliberately not carried over here —
// statusapi is read-only by design.
func (s *Server) registerServiceRoute() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-service-status",
		Method:      http.MethodGet,
		Path:        "/api/service",
		Summary:     "systemd unit status",
		Tags:        []string{"service"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, func(ctx context.Context, _ *struct{}) (*ServiceStatusResponse, error) {
		state, err := s.systemd.GetServiceStatus(ctx, serviceUnitName)
		if err != nil {
			return nil, huma.Error503ServiceUnavailable("systemd unavailable", err)
		}
		resp := &ServiceStatusResponse{}
		resp.Body.Service = serviceUnitName
		resp.Body.State = state
		return resp, nil
	})
}

func (s *Server) registerEventsRoute() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Lifecycle event stream",
		Description: "Client connects/disconnects, device hotplug, switch rotations, and auth failures.",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"client-connected":    eventbus.ClientConnectedEvent{},
		"client-disconnected": eventbus.ClientDisconnectedEvent{},
		"device-added":        eventbus.DeviceAddedEvent{},
		"device-removed":      eventbus.DeviceRemovedEvent{},
		"switch-rotated":      eventbus.SwitchRotatedEvent{},
		"auth-failed":         eventbus.AuthFailedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		if s.bus == nil {
			return
		}
		ch := make(chan any, 16)
		unsubs := []func(){
			eventbus.SubscribeToChannel[eventbus.ClientConnectedEvent](s.bus, ch),
			eventbus.SubscribeToChannel[eventbus.ClientDisconnectedEvent](s.bus, ch),
			eventbus.SubscribeToChannel[eventbus.DeviceAddedEvent](s.bus, ch),
			eventbus.SubscribeToChannel[eventbus.DeviceRemovedEvent](s.bus, ch),
			eventbus.SubscribeToChannel[eventbus.SwitchRotatedEvent](s.bus, ch),
			eventbus.SubscribeToChannel[eventbus.AuthFailedEvent](s.bus, ch),
		}
		defer func() {
			for _, unsub := range unsubs {
				unsub()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-ch:
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}

// registerLogsRoute tails the ring buffer live by subscribing to
// LogEntryEvent, after replaying whatever history the buffer already
// holds, so a freshly connected dashboard isn't staring at a blank feed.
func (s *Server) registerLogsRoute() {
	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Log tail stream",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"log": eventbus.LogEntryEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		if buf := logging.GetBuffer(); buf != nil {
			for _, entry := range buf.ReadAll() {
				ev := eventbus.LogEntryEvent{
					Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
					Level:      entry.Level,
					Module:     entry.Module,
					Message:    entry.Message,
					Attributes: entry.Attributes,
				}
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
		if s.bus == nil {
			return
		}
		ch := make(chan any, 64)
		unsub := eventbus.SubscribeToChannel[eventbus.LogEntryEvent](s.bus, ch)
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-ch:
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}

