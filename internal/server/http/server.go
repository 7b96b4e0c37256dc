package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/solveprint/printshop/internal/config"
	"github.com/solveprint/printshop/internal/observability"
	"github.com/solveprint/printshop/internal/presentation/http/response"
	"github.com/solveprint/printshop/pkg/errorbank"
)

// Module exposes the HTTP server lifecycle to Fx.
var Module = fx.Module("http_server",
	fx.Provide(NewEcho),
	fx.Invoke(Run),
)

// NewEcho configures the Echo router with basic middleware.
func NewEcho(cfg config.Config, obs *observability.Manager, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if cfg.Shop.MaxUploadBytes > 0 {
		// Multipart framing adds a little on top of the document itself.
		e.Use(middleware.BodyLimit(fmt.Sprintf("%dK", cfg.Shop.MaxUploadBytes/1024+64)))
	}
	if obs != nil && obs.TracingEnabled() {
		e.Use(otelecho.Middleware(cfg.Observability.ServiceName))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	if obs != nil && obs.MetricsEnabled() && obs.MetricsHandler() != nil {
		e.GET(cfg.Observability.PrometheusPath, echo.WrapHandler(obs.MetricsHandler()))
	}

	return e
}

// errorHandler renders router and middleware errors in the response
// envelope used by handlers.
func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var httpErr *echo.HTTPError
		if !errors.As(err, &httpErr) {
			logger.Error("http request failed", zap.String("path", c.Path()), zap.Error(err))
			_ = response.New(c).WithError(err).Build()
			return
		}

		msg := http.StatusText(httpErr.Code)
		if m, ok := httpErr.Message.(string); ok && m != "" {
			msg = m
		}
		var appErr *errorbank.AppError
		switch httpErr.Code {
		case http.StatusNotFound:
			appErr = errorbank.NotFound(msg)
		case http.StatusUnauthorized:
			appErr = errorbank.Unauthorized(msg)
		case http.StatusForbidden:
			appErr = errorbank.Forbidden(msg)
		case http.StatusServiceUnavailable:
			appErr = errorbank.Unavailable(msg)
		default:
			if httpErr.Code >= 500 {
				logger.Error("http request failed", zap.String("path", c.Path()), zap.Error(err))
				appErr = errorbank.Internal("action failed, please retry", errorbank.WithCause(err))
			} else {
				appErr = errorbank.BadRequest(msg)
			}
		}
		_ = response.New(c).WithStatus(httpErr.Code).WithError(appErr).Build()
	}
}

// Run starts the HTTP server and ties it to the Fx lifecycle.
func Run(lc fx.Lifecycle, cfg config.Config, e *echo.Echo, logger *zap.Logger) {
	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)

	server := &http.Server{
		Addr:    addr,
		Handler: e,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting HTTP server", zap.String("addr", addr))
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping HTTP server")
			return server.Shutdown(ctx)
		},
	})
}
