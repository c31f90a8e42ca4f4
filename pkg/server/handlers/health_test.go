package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridoc/keygraph"
	"github.com/veridoc/keygraph/pkg/driver"
)

func newHealthRouter(t *testing.T, engine keygraph.KeyGraph) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	handler := NewHealthHandler(engine)
	router := gin.New()
	router.GET("/health", handler.HealthCheck)
	router.GET("/live", handler.LivenessCheck)
	router.GET("/ready", handler.ReadinessCheck)
	return router
}

func TestHealthCheck(t *testing.T) {
	router := newHealthRouter(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response["status"])
	assert.Equal(t, "keygraph", response["service"])
	assert.Contains(t, response, "timestamp")
	assert.Contains(t, response, "version")
}

func TestLivenessCheck(t *testing.T) {
	router := newHealthRouter(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/live", nil))

	require.Equal(t, http.StatusOK, w.Code)
}

func TestReadinessCheckWithoutEngine(t *testing.T) {
	router := newHealthRouter(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReadinessCheckWithEngine(t *testing.T) {
	cfg := keygraph.DefaultConfig()
	cfg.EmbedMode = false
	engine, err := keygraph.NewClient(driver.NewMemoryStore(), nil, cfg, nil)
	require.NoError(t, err)
	defer engine.Close()

	router := newHealthRouter(t, engine)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ready", response["status"])
}
