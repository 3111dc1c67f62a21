package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/servipro/booking-api/internal/core/ports"
)

// CatalogHandler serves the read-only service catalog.
type CatalogHandler struct {
	service ports.CatalogService
}

func NewCatalogHandler(service ports.CatalogService) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// List handles GET /v1/services.
//
// @Summary      List active services
// @Tags         catalog
// @Produce      json
// @Param        refresh  query     bool  false  "Bypass the five minute cache"
// @Success      200      {object}  envelope
// @Failure      503      {object}  ErrorEnvelope
// @Router       /v1/services [get]
func (h *CatalogHandler) List(c echo.Context) error {
	var refresh bool
	if err := echo.QueryParamsBinder(c).Bool("refresh", &refresh).BindError(); err != nil {
		return err
	}
	services, err := h.service.ListActiveServices(c.Request().Context(), refresh)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, services)
}

// ByCategory handles GET /v1/services/categories/:category.
//
// @Summary      List active services of one category
// @Tags         catalog
// @Produce      json
// @Param        category  path      string  true  "Category slug"
// @Success      200       {object}  envelope
// @Failure      422       {object}  ErrorEnvelope
// @Router       /v1/services/categories/{category} [get]
func (h *CatalogHandler) ByCategory(c echo.Context) error {
	services, err := h.service.ListByCategory(c.Request().Context(), c.Param("category"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, services)
}
