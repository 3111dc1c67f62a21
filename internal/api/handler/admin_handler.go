package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/servipro/booking-api/internal/core/ports"
)

// AdminHandler serves the back-office reads behind middleware.Auth + RBAC("admin").
type AdminHandler struct {
	users    ports.UserService
	bookings ports.BookingService
	audit    ports.AuditReader
	log      zerolog.Logger
}

// NewAdminHandler builds the handler. audit may be nil when the audit trail is disabled.
func NewAdminHandler(users ports.UserService, bookings ports.BookingService, audit ports.AuditReader, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{users: users, bookings: bookings, audit: audit, log: log}
}

// ListUsers handles GET /v1/admin/users.
//
// @Summary      Most recent registrations
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        limit  query     int  false  "Maximum rows (default 50, max 100)"
// @Success      200    {object}  envelope
// @Failure      401    {object}  ErrorEnvelope
// @Failure      403    {object}  ErrorEnvelope
// @Router       /v1/admin/users [get]
func (h *AdminHandler) ListUsers(c echo.Context) error {
	subject, _, err := requester(c)
	if err != nil {
		return err
	}
	var limit int
	if err := echo.QueryParamsBinder(c).Int("limit", &limit).BindError(); err != nil {
		return err
	}
	users, err := h.users.ListRecent(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	h.log.Info().Str("subject", subject).Int("rows", len(users)).Msg("admin listed users")
	return respond(c, http.StatusOK, users)
}

// GetUser handles GET /v1/admin/users/:id.
//
// @Summary      User profile
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User id"
// @Success      200  {object}  envelope
// @Failure      404  {object}  ErrorEnvelope
// @Router       /v1/admin/users/{id} [get]
func (h *AdminHandler) GetUser(c echo.Context) error {
	if _, _, err := requester(c); err != nil {
		return err
	}
	user, err := h.users.GetUser(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, user)
}

// UserBookings handles GET /v1/admin/users/:id/bookings. Clients are matched
// on client_id and professionals on professional_id.
//
// @Summary      Bookings of one user
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User id"
// @Success      200  {object}  envelope
// @Failure      404  {object}  ErrorEnvelope
// @Router       /v1/admin/users/{id}/bookings [get]
func (h *AdminHandler) UserBookings(c echo.Context) error {
	if _, _, err := requester(c); err != nil {
		return err
	}
	ctx := c.Request().Context()
	user, err := h.users.GetUser(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	bookings, err := h.bookings.ListUserBookings(ctx, user.ID, user.Role)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, bookings)
}

// GetBooking handles GET /v1/admin/bookings/:id.
//
// @Summary      Booking detail
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Booking id"
// @Success      200  {object}  envelope
// @Failure      404  {object}  ErrorEnvelope
// @Router       /v1/admin/bookings/{id} [get]
func (h *AdminHandler) GetBooking(c echo.Context) error {
	if _, _, err := requester(c); err != nil {
		return err
	}
	booking, err := h.bookings.GetBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, booking)
}

// WizardAttempts handles GET /v1/admin/wizards/:id/attempts.
//
// @Summary      Submission attempts of one wizard
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Wizard id"
// @Success      200  {object}  envelope
// @Failure      503  {object}  ErrorEnvelope
// @Router       /v1/admin/wizards/{id}/attempts [get]
func (h *AdminHandler) WizardAttempts(c echo.Context) error {
	if _, _, err := requester(c); err != nil {
		return err
	}
	if h.audit == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "audit trail is disabled")
	}
	attempts, err := h.audit.SessionAttempts(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, attempts)
}
