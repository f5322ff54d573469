package logger

import (
	"time"

	"spartan-crm/pkg/config"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.Logger

// InitLogger builds the process logger and installs it as the zap global.
// Production emits JSON; anything else gets the colored console encoder.
func InitLogger(cfg *config.Config) error {
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zc := zap.NewDevelopmentConfig()
	zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if cfg.Server.Env == "production" {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "timestamp"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	built, err := zc.Build(zap.Fields(
		zap.String("service", cfg.ServiceName),
		zap.String("environment", cfg.Server.Env),
	))
	if err != nil {
		return err
	}

	log = built
	zap.ReplaceGlobals(log)
	return nil
}

// GetLogger returns the process logger, or the zap global before InitLogger
func GetLogger() *zap.Logger {
	if log == nil {
		return zap.L()
	}
	return log
}

// quietPaths are probed constantly; their access lines go to debug
var quietPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// Middleware attaches a request-scoped logger carrying the request id to the
// echo and Go contexts, then writes one access line per request.
func Middleware(base *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			requestID := c.Request().Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = c.Response().Header().Get(echo.HeaderXRequestID)
			}

			reqLog := base.With(zap.String("request_id", requestID))
			c.Set(echoKey, reqLog)
			c.SetRequest(c.Request().WithContext(WithContext(c.Request().Context(), reqLog)))

			err := next(c)

			path := c.Request().URL.Path
			fields := []zap.Field{
				zap.String("method", c.Request().Method),
				zap.String("path", path),
				zap.String("route", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", c.RealIP()),
			}
			switch {
			case err != nil:
				reqLog.Error("HTTP request failed", append(fields, zap.Error(err))...)
			case quietPaths[path]:
				reqLog.Debug("HTTP request completed", fields...)
			default:
				reqLog.Info("HTTP request completed", fields...)
			}
			return err
		}
	}
}
