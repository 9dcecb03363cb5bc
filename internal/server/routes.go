package server

import (
	"net/http"
	"time"

	"sunnyisland2mqtt/internal/core/domain"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type statusResponse struct {
	State            string   `json:"state"`
	StateCode        int      `json:"state_code"`
	VebusChargeState int      `json:"vebus_charge_state"`
	Enabled          bool     `json:"enabled"`
	ChargeCurrent    float64  `json:"charge_current"`
	BulkCurrent      float64  `json:"bulk_current"`
	CurrentLimit     float64  `json:"current_limit"`
	BatteryVoltage   float64  `json:"battery_voltage"`
	BatteryCurrent   float64  `json:"battery_current"`
	StateSince       string   `json:"state_since"`
	AbsorbSince      *string  `json:"absorb_since,omitempty"`
	AbsorbSeconds    *float64 `json:"absorb_seconds,omitempty"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/status", s.StatusHandler)
	if s.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) StatusHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ChargeStatusRequest{}, 5*time.Second).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	response, ok := res.(domain.ChargeStatusResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected response")
	}
	if response.HasResponseError() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, response.GetResponseError().Error())
	}
	return c.JSON(http.StatusOK, toStatusResponse(response, s.now()))
}

func toStatusResponse(resp domain.ChargeStatusResponse, now time.Time) statusResponse {
	status := resp.Status
	out := statusResponse{
		State:            status.State.String(),
		StateCode:        status.State.SystemStateCode(),
		VebusChargeState: status.State.VebusChargeState(),
		Enabled:          resp.Enabled,
		ChargeCurrent:    status.ChargeCurrent,
		BulkCurrent:      status.BulkCurrent,
		CurrentLimit:     resp.CurrentLimit,
		BatteryVoltage:   status.ActualVoltage,
		BatteryCurrent:   status.ActualCurrent,
	}
	if !status.StateEnteredAt.IsZero() {
		out.StateSince = humanize.RelTime(status.StateEnteredAt, now, "ago", "from now")
	}
	if status.AbsorbEnteredAt != nil {
		since := humanize.RelTime(*status.AbsorbEnteredAt, now, "ago", "from now")
		seconds := now.Sub(*status.AbsorbEnteredAt).Seconds()
		out.AbsorbSince = &since
		out.AbsorbSeconds = &seconds
	}
	return out
}
