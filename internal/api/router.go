package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/bugtracker/bugtracker/internal/api/docs" // swagger docs
	"github.com/bugtracker/bugtracker/internal/api/handler"
	"github.com/bugtracker/bugtracker/internal/api/middleware"
	"github.com/bugtracker/bugtracker/internal/core/domain"
	"github.com/bugtracker/bugtracker/internal/core/ports"
)

// Deps are the collaborators the HTTP layer is built from.
type Deps struct {
	Bugs      ports.BugService
	Users     ports.UserService
	Auth      ports.AuthService
	JWTSecret string
	Checks    map[string]handler.Pinger
	Logger    zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Logger))
	e.Use(echoprometheus.NewMiddleware("bugtracker"))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(d.Auth)
	bugHandler := handler.NewBugHandler(d.Bugs)
	userHandler := handler.NewUserHandler(d.Users)
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(d.Checks)

	// --- Health probes, metrics and docs (no auth required) ---
	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	// --- Auth routes ---
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)

	secured := api.Group("", middleware.Auth(d.JWTSecret))
	secured.GET("/auth/profile", userHandler.Profile)

	// --- Bug routes ---
	bugs := secured.Group("/bugs")
	bugs.GET("", bugHandler.List)
	bugs.POST("", bugHandler.Create)
	bugs.GET("/stats", bugHandler.Stats)
	bugs.GET("/:id", bugHandler.Get)
	bugs.PUT("/:id", bugHandler.Update)
	bugs.DELETE("/:id", bugHandler.Delete)
	bugs.POST("/:id/comments", bugHandler.AddComment)

	// --- User routes ---
	users := secured.Group("/users")
	users.GET("", userHandler.List)
	users.GET("/assignees", userHandler.Assignees)
	users.GET("/:id", userHandler.Get)
	users.PUT("/:id", userHandler.Update)
	users.DELETE("/:id", userHandler.Delete, middleware.RBAC(domain.RoleAdmin))

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Status >= 500 {
				evt = log.Error().Err(v.Error)
			}
			evt.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
