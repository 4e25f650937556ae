package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/helpdesk-labs/support-rewards/internal/api/http/handlers"
	"github.com/helpdesk-labs/support-rewards/internal/observability"
)

type stubDependency struct {
	enabled bool
	err     error
}

func (s stubDependency) Enabled() bool                { return s.enabled }
func (s stubDependency) Ping(_ context.Context) error { return s.err }

func newTestApp(deps map[string]handlers.Dependency, metrics *observability.Metrics) *fiber.App {
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:  handlers.NewHealthHandler("support-rewards", "test", deps),
		Metrics: handlers.NewMetricsHandler(metrics),
	})
	return app
}

func decode(t *testing.T, body io.Reader) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

func TestHealthLive(t *testing.T) {
	app := newTestApp(nil, observability.NewMetrics())

	resp, err := app.Test(httptest.NewRequest("GET", "/health/live", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "alive", decode(t, resp.Body)["status"])
}

func TestHealthReady(t *testing.T) {
	t.Run("disabled dependencies do not block readiness", func(t *testing.T) {
		app := newTestApp(map[string]handlers.Dependency{
			"postgres": stubDependency{enabled: false},
			"redis":    stubDependency{enabled: true},
		}, observability.NewMetrics())

		resp, err := app.Test(httptest.NewRequest("GET", "/health/ready", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		body := decode(t, resp.Body)
		deps := body["dependencies"].(map[string]any)
		assert.Equal(t, "disabled", deps["postgres"])
		assert.Equal(t, "ok", deps["redis"])
	})

	t.Run("failing dependency", func(t *testing.T) {
		app := newTestApp(map[string]handlers.Dependency{
			"postgres": stubDependency{enabled: true, err: errors.New("connection refused")},
		}, observability.NewMetrics())

		resp, err := app.Test(httptest.NewRequest("GET", "/health/ready", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

		body := decode(t, resp.Body)
		assert.Equal(t, "DEPENDENCY_UNAVAILABLE", body["error"].(map[string]any)["code"])
	})
}

func TestMetricsEndpoint(t *testing.T) {
	metrics := observability.NewMetrics()
	metrics.Add(observability.CounterPointsAwarded, 40)
	app := newTestApp(nil, metrics)

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decode(t, resp.Body)
	engine := body["engine"].(map[string]any)
	assert.Equal(t, float64(40), engine[observability.CounterPointsAwarded])
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	app := newTestApp(nil, observability.NewMetrics())

	resp, err := app.Test(httptest.NewRequest("GET", "/nope", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", decode(t, resp.Body)["error"].(map[string]any)["code"])
}
