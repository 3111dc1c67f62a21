package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/servipro/booking-api/internal/core/ports"
)

// StatsHandler serves the landing page counters.
type StatsHandler struct {
	service ports.StatsService
}

func NewStatsHandler(service ports.StatsService) *StatsHandler {
	return &StatsHandler{service: service}
}

// Dashboard handles GET /v1/stats. A figure whose query failed is reported as zero.
//
// @Summary      Marketplace totals
// @Tags         stats
// @Produce      json
// @Success      200  {object}  envelope
// @Router       /v1/stats [get]
func (h *StatsHandler) Dashboard(c echo.Context) error {
	stats, err := h.service.GetDashboardStats(c.Request().Context())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, stats)
}

// RealTime handles GET /v1/stats/realtime.
//
// @Summary      Short-window activity
// @Tags         stats
// @Produce      json
// @Success      200  {object}  envelope
// @Router       /v1/stats/realtime [get]
func (h *StatsHandler) RealTime(c echo.Context) error {
	m, err := h.service.GetRealTimeMetrics(c.Request().Context())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, m)
}
