package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/servipro/booking-api/internal/api/handler"
	"github.com/servipro/booking-api/internal/api/middleware"
	"github.com/servipro/booking-api/internal/core/domain"
	"github.com/servipro/booking-api/internal/core/ports"

	_ "github.com/servipro/booking-api/docs"
)

// Dependencies carries everything the router wires into handlers.
type Dependencies struct {
	Users         ports.UserService
	Catalog       ports.CatalogService
	Professionals ports.ProfessionalService
	Bookings      ports.BookingService
	Stats         ports.StatsService
	Wizards       ports.WizardService
	// Audit is nil when the audit trail is disabled.
	Audit     ports.AuditReader
	Checks    map[string]handler.Check
	JWTSecret string
	// AllowOrigins feeds the CORS middleware; empty allows any origin.
	AllowOrigins []string
	// Registry receives the HTTP metrics and backs /metrics; nil means the
	// prometheus default registry.
	Registry *prometheus.Registry
	Logger   zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Logger))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{AllowOrigins: d.AllowOrigins}))
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if d.Registry != nil {
		registerer, gatherer = d.Registry, d.Registry
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "servipro",
		Registerer: registerer,
	}))

	// --- Ops ---
	health := handler.NewHealthHandler(d.Checks)
	e.GET("/health", health.Liveness)
	e.GET("/health/ready", health.Readiness)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	v1 := e.Group("/v1")

	// --- Public reads ---
	catalog := handler.NewCatalogHandler(d.Catalog)
	v1.GET("/services", catalog.List)
	v1.GET("/services/categories/:category", catalog.ByCategory)

	professionals := handler.NewProfessionalHandler(d.Professionals)
	v1.GET("/professionals", professionals.Search)

	stats := handler.NewStatsHandler(d.Stats)
	v1.GET("/stats", stats.Dashboard)
	v1.GET("/stats/realtime", stats.RealTime)

	users := handler.NewUserHandler(d.Users)
	v1.POST("/users", users.Create)

	// --- Booking wizard ---
	wizards := handler.NewWizardHandler(d.Wizards)
	w := v1.Group("/wizards")
	w.POST("", wizards.Start)
	w.GET("/:id", wizards.Get)
	w.PATCH("/:id/client", wizards.PatchClient)
	w.PATCH("/:id/service", wizards.PatchService)
	w.POST("/:id/advance", wizards.Advance)
	w.POST("/:id/retreat", wizards.Retreat)
	w.POST("/:id/submit", wizards.Submit)
	w.POST("/:id/retry", wizards.Retry)
	w.DELETE("/:id", wizards.Cancel)

	// --- Back office ---
	admin := handler.NewAdminHandler(d.Users, d.Bookings, d.Audit, d.Logger)
	a := v1.Group("/admin", middleware.Auth(d.JWTSecret), middleware.RBAC(domain.RoleAdmin))
	a.GET("/users", admin.ListUsers)
	a.GET("/users/:id", admin.GetUser)
	a.GET("/users/:id/bookings", admin.UserBookings)
	a.GET("/bookings/:id", admin.GetBooking)
	a.GET("/wizards/:id/attempts", admin.WizardAttempts)

	return e
}

// requestLogger writes one access log line per request through zerolog.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
