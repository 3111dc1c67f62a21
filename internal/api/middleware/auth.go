// Package middleware guards the back-office routes.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Context keys set by Auth.
const (
	ContextSubject = "subject"
	ContextRole    = "role"
)

// Claims is the payload of a back-office bearer token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Auth validates an HS256 bearer token and stores its subject and role in the context.
func Auth(jwtSecret string) echo.MiddlewareFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	key := []byte(jwtSecret)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if len(key) == 0 {
				return echo.NewHTTPError(http.StatusUnauthorized, "back office authentication is not configured")
			}
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			scheme, raw, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			var claims Claims
			tkn, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
				return key, nil
			})
			if err != nil || !tkn.Valid {
				msg := "invalid token"
				if errors.Is(err, jwt.ErrTokenExpired) {
					msg = "token expired"
				}
				return echo.NewHTTPError(http.StatusUnauthorized, msg)
			}

			c.Set(ContextSubject, claims.Subject)
			c.Set(ContextRole, claims.Role)
			return next(c)
		}
	}
}
