package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridoc/keygraph"
	"github.com/veridoc/keygraph/pkg/config"
	"github.com/veridoc/keygraph/pkg/driver"
	"github.com/veridoc/keygraph/pkg/metrics"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.Host = "localhost"
	cfg.Server.Port = 0
	cfg.Server.Mode = "test"

	m := metrics.New()
	registry := prometheus.NewRegistry()
	require.NoError(t, m.Register(registry))

	engineCfg := keygraph.DefaultConfig()
	engineCfg.EmbedMode = false
	engine, err := keygraph.NewClient(driver.NewMemoryStore(), nil, engineCfg, &keygraph.Options{Metrics: m})
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	srv := New(cfg, engine, registry, nil)
	srv.Setup()
	return srv
}

func TestRoutesWired(t *testing.T) {
	srv := newTestServer(t)

	paths := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/live", http.StatusOK},
		{http.MethodGet, "/ready", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/v1/scopes", http.StatusOK},
	}

	for _, tt := range paths {
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
		assert.Equal(t, tt.status, w.Code, "%s %s", tt.method, tt.path)
	}
}

func TestMetricsEndpointServesCollectors(t *testing.T) {
	srv := newTestServer(t)

	// Drive one build so a counter has a sample.
	body := `{"entries":[{"keyword":"policy","fragments":["text"]}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scopes/s/build", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "keygraph_builds_total")
}

func TestCORSPreflights(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/v1/scopes", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
