package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/servipro/booking-api/internal/api/middleware"
)

// requester returns the identity injected by middleware.Auth. A missing role
// means the route was mounted without the middleware.
func requester(c echo.Context) (subject, role string, err error) {
	role, _ = c.Get(middleware.ContextRole).(string)
	if role == "" {
		return "", "", echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	subject, _ = c.Get(middleware.ContextSubject).(string)
	return subject, role, nil
}
