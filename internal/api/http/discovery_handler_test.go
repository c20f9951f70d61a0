package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/onc-archive/internal/domain"
	errpkg "github.com/veranemoloko/onc-archive/internal/errors"
	"github.com/veranemoloko/onc-archive/internal/onc"
)

type mockDiscovery struct {
	called   string
	filters  domain.Filters
	allPages bool
	err      error
}

func (m *mockDiscovery) discover(name string, filters domain.Filters) (json.RawMessage, error) {
	m.called, m.filters = name, filters
	if m.err != nil {
		return nil, m.err
	}
	return json.RawMessage(`[{"service":"` + name + `"}]`), nil
}

func (m *mockDiscovery) realTime(name string, filters domain.Filters, allPages bool) ([]json.RawMessage, error) {
	m.called, m.filters, m.allPages = name, filters, allPages
	if m.err != nil {
		return nil, m.err
	}
	return []json.RawMessage{json.RawMessage(`{"sensorData":[]}`)}, nil
}

func (m *mockDiscovery) GetLocations(_ context.Context, f domain.Filters) (json.RawMessage, error) {
	return m.discover("locations", f)
}

func (m *mockDiscovery) GetLocationHierarchy(_ context.Context, f domain.Filters) (json.RawMessage, error) {
	return m.discover("locationTree", f)
}

func (m *mockDiscovery) GetDeployments(_ context.Context, f domain.Filters) (json.RawMessage, error) {
	return m.discover("deployments", f)
}

func (m *mockDiscovery) GetDevices(_ context.Context, f domain.Filters) (json.RawMessage, error) {
	return m.discover("devices", f)
}

func (m *mockDiscovery) GetDeviceCategories(_ context.Context, f domain.Filters) (json.RawMessage, error) {
	return m.discover("deviceCategories", f)
}

func (m *mockDiscovery) GetProperties(_ context.Context, f domain.Filters) (json.RawMessage, error) {
	return m.discover("properties", f)
}

func (m *mockDiscovery) GetDataProducts(_ context.Context, f domain.Filters) (json.RawMessage, error) {
	return m.discover("dataProducts", f)
}

func (m *mockDiscovery) GetDirectScalar(_ context.Context, f domain.Filters, all bool) ([]json.RawMessage, error) {
	return m.realTime("scalar", f, all)
}

func (m *mockDiscovery) GetDirectByLocation(_ context.Context, f domain.Filters, all bool) ([]json.RawMessage, error) {
	return m.realTime("scalarByLocation", f, all)
}

func (m *mockDiscovery) GetDirectByDevice(_ context.Context, f domain.Filters, all bool) ([]json.RawMessage, error) {
	return m.realTime("scalarByDevice", f, all)
}

func (m *mockDiscovery) GetDirectRawByLocation(_ context.Context, f domain.Filters, all bool) ([]json.RawMessage, error) {
	return m.realTime("rawByLocation", f, all)
}

func (m *mockDiscovery) GetDirectRawByDevice(_ context.Context, f domain.Filters, all bool) ([]json.RawMessage, error) {
	return m.realTime("rawByDevice", f, all)
}

func TestDiscoveryHandler_Discover(t *testing.T) {
	for _, service := range []string{"locations", "locationTree", "deployments", "devices", "deviceCategories", "properties", "dataProducts"} {
		t.Run(service, func(t *testing.T) {
			discovery := &mockDiscovery{}
			router := NewRouter(&mockBatchService{}, &mockArchiveService{}, discovery, newTestLogger())

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/discovery/"+service+"?locationCode=BACAX", nil))

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, service, discovery.called)
			assert.Equal(t, "BACAX", discovery.filters["locationCode"])
			assert.JSONEq(t, `[{"service":"`+service+`"}]`, w.Body.String())
		})
	}
}

func TestDiscoveryHandler_UnknownService(t *testing.T) {
	router := NewRouter(&mockBatchService{}, &mockArchiveService{}, &mockDiscovery{}, newTestLogger())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/discovery/archivefiles", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDiscoveryHandler_RealTime(t *testing.T) {
	tests := []struct {
		url    string
		called string
	}{
		{"/realtime/scalar?locationCode=BACAX&deviceCategoryCode=ADCP2MHZ", "scalar"},
		{"/realtime/scalardata/location?locationCode=BACAX&deviceCategoryCode=ADCP2MHZ&allPages=true", "scalarByLocation"},
		{"/realtime/scalardata/device?deviceCode=X&allPages=true", "scalarByDevice"},
		{"/realtime/rawdata/location?locationCode=BACAX&deviceCategoryCode=ADCP2MHZ&allPages=true", "rawByLocation"},
		{"/realtime/rawdata/device?deviceCode=X&allPages=true", "rawByDevice"},
	}

	for _, tt := range tests {
		t.Run(tt.called, func(t *testing.T) {
			discovery := &mockDiscovery{}
			router := NewRouter(&mockBatchService{}, &mockArchiveService{}, discovery, newTestLogger())

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.url, nil))

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.called, discovery.called)
			assert.Equal(t, tt.called != "scalar", discovery.allPages)
			assert.NotContains(t, discovery.filters, "allPages")
			assert.JSONEq(t, `{"pages":[{"sensorData":[]}]}`, w.Body.String())
		})
	}
}

func TestDiscoveryHandler_RealTimeErrors(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		err    error
		status int
	}{
		{"missing category", "/realtime/scalardata/location?locationCode=BACAX", nil, http.StatusBadRequest},
		{"missing device", "/realtime/rawdata/device", nil, http.StatusBadRequest},
		{"service 401", "/realtime/scalardata/device?deviceCode=X", &errpkg.HTTPError{StatusCode: 401}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(&mockBatchService{}, &mockArchiveService{}, &mockDiscovery{err: tt.err}, newTestLogger())

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.url, nil))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestDiscoveryHandler_WithClient(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/deviceCategories", r.URL.Path)
		assert.Equal(t, "get", r.URL.Query().Get("method"))
		assert.Equal(t, "tok", r.URL.Query().Get("token"))
		io.WriteString(w, `[{"deviceCategoryCode":"ADCP2MHZ"}]`)
	}))
	defer upstream.Close()

	client := onc.NewClient(onc.Options{Token: "tok", BaseURL: upstream.URL}, newTestLogger())
	router := NewRouter(&mockBatchService{}, &mockArchiveService{}, client, newTestLogger())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/discovery/deviceCategories", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"deviceCategoryCode":"ADCP2MHZ"}]`, w.Body.String())
}
