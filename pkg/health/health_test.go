package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/canopy/pkg/mqtt"
)

type stubMQTT struct {
	mqtt.Client
	connected bool
}

func (s stubMQTT) IsConnected() bool { return s.connected }

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

func newTestChecker(connected bool) *Checker {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewChecker(stubMQTT{connected: connected}, logger)
}

func detailed(t *testing.T, c *Checker) (int, HealthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	c.DetailedHandlerFunc()(rec, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestLiveness(t *testing.T) {
	c := newTestChecker(false)
	c.Register("redis", stubPinger{err: errors.New("down")})

	rec := httptest.NewRecorder()
	c.HandlerFunc()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestDetailed_AllConnected(t *testing.T) {
	c := newTestChecker(true)
	c.Register("redis", stubPinger{})
	c.Register("postgres", stubPinger{})

	code, resp := detailed(t, c)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, map[string]string{
		"mqtt":     "connected",
		"redis":    "connected",
		"postgres": "connected",
	}, resp.Services)
}

func TestDetailed_Degraded(t *testing.T) {
	c := newTestChecker(true)
	c.Register("redis", stubPinger{err: errors.New("connection refused")})

	code, resp := detailed(t, c)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "disconnected", resp.Services["redis"])
}

func TestDetailed_MQTTDown(t *testing.T) {
	code, resp := detailed(t, newTestChecker(false))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "disconnected", resp.Services["mqtt"])
}
