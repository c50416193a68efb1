package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HerbHall/telerelay/internal/sink"
	"github.com/HerbHall/telerelay/internal/telemetry"
)

func newTestServer(t *testing.T) (*httptest.Server, *sink.Live, *prometheus.Registry) {
	t.Helper()
	live := sink.NewLive(8)
	reg := prometheus.NewRegistry()
	srv := New("127.0.0.1:0", live, reg, zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, live, reg
}

func publish(t *testing.T, live *sink.Live, cpu float64) {
	t.Helper()
	require.NoError(t, live.Publish(context.Background(), telemetry.Record{CPUUsage: cpu, TemperatureCelsius: 48.3}))
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp := get(t, ts.URL+"/api/v1/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "dev", resp.Header.Get("X-Telerelay-Version"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "telerelay", body["service"])
	assert.Equal(t, false, body["has_samples"])
}

func TestLatest_Empty(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp := get(t, ts.URL+"/api/v1/telemetry/latest")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))

	var p Problem
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	assert.Equal(t, ProblemTypeNotFound, p.Type)
	assert.Equal(t, "/api/v1/telemetry/latest", p.Instance)
}

func TestLatest(t *testing.T) {
	ts, live, _ := newTestServer(t)
	publish(t, live, 12.5)
	publish(t, live, 23.5)

	resp := get(t, ts.URL+"/api/v1/telemetry/latest")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var s sink.Sample
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
	assert.Equal(t, 23.5, s.CPUUsage)
	assert.Equal(t, 48.3, s.TemperatureCelsius)
	assert.False(t, s.Time.IsZero())
}

func TestSeries(t *testing.T) {
	ts, live, _ := newTestServer(t)
	for _, cpu := range []float64{1, 2, 3} {
		publish(t, live, cpu)
	}

	resp := get(t, ts.URL+"/api/v1/telemetry/series?limit=2")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var series map[string][]sink.Point
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&series))
	assert.Len(t, series, telemetry.FieldCount)
	require.Len(t, series["cpu"], 2)
	assert.Equal(t, 2.0, series["cpu"][0].Value)
	assert.Equal(t, 3.0, series["cpu"][1].Value)
}

func TestSeries_BadLimit(t *testing.T) {
	ts, _, _ := newTestServer(t)

	for _, q := range []string{"abc", "-1"} {
		resp := get(t, ts.URL+"/api/v1/telemetry/series?limit="+q)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "limit=%s", q)
	}
}

func TestMetrics(t *testing.T) {
	ts, _, reg := newTestServer(t)
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "telerelay_test_gauge", Help: "test"})
	reg.MustRegister(g)
	g.Set(42)

	resp := get(t, ts.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "telerelay_test_gauge 42")
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/v1/telemetry/latest", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStream(t *testing.T) {
	ts, live, _ := newTestServer(t)
	publish(t, live, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/telemetry/stream"
	c, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer c.CloseNow()

	var s sink.Sample
	require.NoError(t, wsjson.Read(ctx, c, &s))
	assert.Equal(t, 1.0, s.CPUUsage, "latest sample is sent on connect")

	publish(t, live, 2)
	require.NoError(t, wsjson.Read(ctx, c, &s))
	assert.Equal(t, 2.0, s.CPUUsage)

	require.NoError(t, c.Close(websocket.StatusNormalClosure, ""))
}
