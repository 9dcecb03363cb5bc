package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sunnyisland2mqtt/internal/core/domain"
	"sunnyisland2mqtt/internal/metrics"
	"sunnyisland2mqtt/internal/util"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fakeMaster(healthy bool, status domain.ChargeStatusResponse) func(actor.Context) {
	return func(ctx actor.Context) {
		switch ctx.Message().(type) {
		case domain.ActorHealthRequest:
			ctx.Respond(domain.ActorHealthResponse{Id: domain.ACTOR_ID_MASTER, Healthy: healthy})
		case domain.ChargeStatusRequest:
			ctx.Respond(status)
		}
	}
}

func testServer(master func(actor.Context)) (*actor.ActorSystem, http.Handler) {
	as := actor.NewActorSystem()
	pid := as.Root.Spawn(actor.PropsFromFunc(master))
	srv := newServer(util.LoadTestConfig(), as.Root, pid, metrics.NewCollector())
	srv.now = func() time.Time { return now }
	return as, srv.RegisterRoutes()
}

func TestHealthCheckHandler(t *testing.T) {

	require := require.New(t)

	as, handler := testServer(fakeMaster(true, domain.ChargeStatusResponse{}))
	defer as.Shutdown()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	require.Equal(http.StatusOK, rec.Code)
	require.Equal("health_check: OK", rec.Body.String())

	as2, handler := testServer(fakeMaster(false, domain.ChargeStatusResponse{}))
	defer as2.Shutdown()

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	require.Equal(http.StatusServiceUnavailable, rec.Code)
}

func TestStatusHandler(t *testing.T) {

	require := require.New(t)

	absorbAt := now.Add(-15 * time.Minute)
	as, handler := testServer(fakeMaster(true, domain.ChargeStatusResponse{
		Status: domain.ChargeStatus{
			State:           domain.ChargeStateAbsorb,
			ChargeCurrent:   42.5,
			BulkCurrent:     160,
			ActualVoltage:   58.4,
			ActualCurrent:   41.9,
			AbsorbEnteredAt: &absorbAt,
			StateEnteredAt:  absorbAt,
		},
		Enabled:      true,
		CurrentLimit: 0,
	}))
	defer as.Shutdown()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal("absorb", body["state"])
	require.Equal(4.0, body["state_code"])
	require.Equal(2.0, body["vebus_charge_state"])
	require.Equal(true, body["enabled"])
	require.Equal(42.5, body["charge_current"])
	require.Equal("15 minutes ago", body["absorb_since"])
	require.Equal(900.0, body["absorb_seconds"])
}

func TestStatusHandlerWithoutAbsorb(t *testing.T) {

	require := require.New(t)

	as, handler := testServer(fakeMaster(true, domain.ChargeStatusResponse{
		Status: domain.ChargeStatus{State: domain.ChargeStateCanceled},
	}))
	defer as.Shutdown()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(http.StatusOK, rec.Code)
	require.False(strings.Contains(rec.Body.String(), "absorb_since"))
	require.True(strings.Contains(rec.Body.String(), `"state":"canceled"`))
}

func TestMetricsRoute(t *testing.T) {

	require := require.New(t)

	as, handler := testServer(fakeMaster(true, domain.ChargeStatusResponse{}))
	defer as.Shutdown()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(http.StatusOK, rec.Code)
	require.True(strings.Contains(rec.Body.String(), "sunnyisland_charge_current_amps"))
}
