package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/odanko/outagebot/internal/address"
	"github.com/odanko/outagebot/internal/store"
	"github.com/odanko/outagebot/internal/store/memory"
)

func newTestServer(t *testing.T, st store.Store, ready ReadyChecker) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	srv := NewServer(st, reg, ready, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, memory.New(), nil)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestReadyzReportsFailure(t *testing.T) {
	t.Parallel()

	ready := func(context.Context) error { return errors.New("browser session unavailable") }
	ts := newTestServer(t, memory.New(), ready)

	resp, err := http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "browser session unavailable", body["reason"])
}

func TestListSubscriptions(t *testing.T) {
	t.Parallel()

	st := memory.New()
	require.NoError(t, st.Put(context.Background(), store.Subscription{
		SubscriberID: "100",
		Address:      address.Address{Street: "вул. Хрещатик", House: "12"},
		LastMarker:   "updateTimestamp:10:00",
	}))
	// Inactive records are hidden from the ops view.
	require.NoError(t, st.Put(context.Background(), store.Subscription{SubscriberID: "200"}))

	ts := newTestServer(t, st, nil)
	resp, err := http.Get(ts.URL + "/v1/subscriptions")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body subscriptionsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, 1, body.Total)
	require.Equal(t, "100", body.Subscriptions[0].SubscriberID)
	require.Equal(t, "updateTimestamp:10:00", body.Subscriptions[0].LastMarker)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "outagebot_test_gauge", Help: "test"})
	require.NoError(t, reg.Register(gauge))
	gauge.Set(3)

	srv := NewServer(memory.New(), reg, nil, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
