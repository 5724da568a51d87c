// Package router wires middleware and registers the HTTP routes.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/levitt-app/levitt/internal/config"
	"github.com/levitt-app/levitt/internal/handler"
	"github.com/levitt-app/levitt/internal/ids"
	"github.com/levitt-app/levitt/internal/logging"
	"github.com/levitt-app/levitt/internal/middleware"
	"github.com/levitt-app/levitt/internal/utils"
)

// Deps is everything the router needs. Redis may be nil.
type Deps struct {
	Auth    *handler.AuthHandler
	Tokens  *utils.TokenIssuer
	Health  handler.Pinger
	Metrics *middleware.Metrics
	Redis   *redis.Client
	Cache   config.CacheConfig
	Log     logging.Logger
}

// New builds the echo instance with the global middleware chain and every route.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.ErrorHandler(d.Log)

	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: ids.New}))
	e.Use(echomw.Recover())
	e.Use(echomw.BodyLimit("64K"))
	if d.Metrics != nil {
		e.Use(d.Metrics.Instrument())
	}
	e.Use(requestLogger(d.Log))

	RegisterRoutes(e, d)
	RegisterAuth(e, d)
	return e
}

// RegisterRoutes registers the unauthenticated operational and public routes.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.Health))
	if d.Metrics != nil {
		e.GET("/metrics", d.Metrics.Handler())
	}
	e.GET("/daily-verse", handler.DailyVerse,
		middleware.NewRedisCache(d.Cache, d.Redis, middleware.WithTTLCap(middleware.UntilUTCMidnight)))
}

// RegisterAuth registers the session endpoints. /me and /initial-data sit
// behind the bearer gate.
func RegisterAuth(e *echo.Echo, d Deps) {
	a := d.Auth
	e.POST("/users", a.Register)
	e.POST("/sessions", a.Login)
	e.POST("/forgot-password", a.ForgotPassword)
	e.POST("/reset-password", a.ResetPassword)
	e.POST("/auth/google", a.GoogleLogin)

	gate := middleware.BearerAuth(d.Tokens, d.Metrics)
	e.GET("/me", a.Me, gate)
	e.GET("/initial-data", a.InitialData, gate)
}

// requestLogger writes one structured access-log line per request.
func requestLogger(log logging.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			args := []any{
				"request_id", v.RequestID,
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency.String(),
			}
			if id := middleware.AccountID(c); id != "" {
				args = append(args, "account_id", id)
			}
			ctx := c.Request().Context()
			switch {
			case v.Status >= http.StatusInternalServerError:
				log.Error(ctx, "request", append(args, "err", errString(v.Error))...)
			case v.Status >= http.StatusBadRequest:
				log.Warn(ctx, "request", args...)
			default:
				log.Info(ctx, "request", args...)
			}
			return nil
		},
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
