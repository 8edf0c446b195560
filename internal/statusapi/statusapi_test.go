package statusapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkvm-go/rkvm/internal/model"
	"github.com/rkvm-go/rkvm/internal/router"
)

type fakeRouter struct {
	snap router.Snapshot
	err  error
}

func (f *fakeRouter) Status(_ context.Context) (router.Snapshot, error) {
	return f.snap, f.err
}

func TestHealthRouteNeverRequiresAuth(t *testing.T) {
	s := NewServer(Options{Router: &fakeRouter{}, Username: "admin", Password: "secret"})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
}

func TestStatusRouteRequiresBasicAuth(t *testing.T) {
	s := NewServer(Options{Router: &fakeRouter{}, Username: "admin", Password: "secret"})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStatusRouteWithValidCredentials(t *testing.T) {
	snap := router.Snapshot{
		Devices: []model.DeviceInfo{{ID: 1, Name: "Keyboard", Vendor: 0x1234, Product: 0x5678}},
		Clients: []router.ClientInfo{{Slot: 0, Remote: "203.0.113.4:51022"}},
		Current: 1,
	}
	s := NewServer(Options{Router: &fakeRouter{snap: snap}, Username: "admin", Password: "secret"})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("admin:secret")))
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Devices []DeviceView `json:"devices"`
		Clients []ClientView `json:"clients"`
		Current int          `json:"current"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Devices, 1)
	assert.Equal(t, "Keyboard", body.Devices[0].Name)
	require.Len(t, body.Clients, 1)
	assert.Equal(t, "203.0.113.4:51022", body.Clients[0].Remote)
	assert.Equal(t, 1, body.Current)
}

func TestStatusRouteWithoutAuthConfiguredAllowsAnyone(t *testing.T) {
	s := NewServer(Options{Router: &fakeRouter{}})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusRoutePropagatesRouterError(t *testing.T) {
	s := NewServer(Options{Router: &fakeRouter{err: context.DeadlineExceeded}})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsRouteServesPrometheusFormat(t *testing.T) {
	s := NewServer(Options{Router: &fakeRouter{}})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
