package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/servipro/booking-api/internal/core/domain"
	"github.com/servipro/booking-api/internal/core/ports"
)

const maxSearchLimit = 100

// ProfessionalHandler serves the professional search.
type ProfessionalHandler struct {
	service ports.ProfessionalService
}

func NewProfessionalHandler(service ports.ProfessionalService) *ProfessionalHandler {
	return &ProfessionalHandler{service: service}
}

// Search handles GET /v1/professionals. lat and lng must be given together;
// with them results are sorted by distance, unknown distances last.
//
// @Summary      Search professionals
// @Tags         professionals
// @Produce      json
// @Param        service  query     string  false  "Offered service id"
// @Param        city     query     string  false  "Case-insensitive partial city match"
// @Param        lat      query     number  false  "Reference latitude"
// @Param        lng      query     number  false  "Reference longitude"
// @Param        radius   query     number  false  "Drop professionals farther than this many km"
// @Param        limit    query     int     false  "Maximum results (default 20, max 100)"
// @Success      200      {object}  envelope
// @Failure      400      {object}  ErrorEnvelope
// @Failure      422      {object}  ErrorEnvelope
// @Router       /v1/professionals [get]
func (h *ProfessionalHandler) Search(c echo.Context) error {
	var (
		criteria ports.SearchCriteria
		lat, lng float64
	)
	err := echo.QueryParamsBinder(c).
		String("service", &criteria.ServiceID).
		String("city", &criteria.City).
		Float64("lat", &lat).
		Float64("lng", &lng).
		Float64("radius", &criteria.RadiusKm).
		Int("limit", &criteria.Limit).
		BindError()
	if err != nil {
		return err
	}

	hasLat, hasLng := c.QueryParam("lat") != "", c.QueryParam("lng") != ""
	switch {
	case hasLat && hasLng:
		criteria.Reference = &domain.Coordinates{Lat: lat, Lng: lng}
	case hasLat:
		return domain.ValidationErrors{{Field: "lng", Reason: "is required with lat"}}
	case hasLng:
		return domain.ValidationErrors{{Field: "lat", Reason: "is required with lng"}}
	}
	if criteria.Limit < 0 || criteria.Limit > maxSearchLimit {
		return domain.ValidationErrors{{Field: "limit", Reason: "must be between 0 and 100"}}
	}

	professionals, err := h.service.SearchProfessionals(c.Request().Context(), criteria)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, professionals)
}
