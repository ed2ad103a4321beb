package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rotaclub/rota/internal/config"
	"github.com/rotaclub/rota/internal/monitoring"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup initializes the global logger based on configuration
func Setup(cfg *config.LoggingConfig, env string) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	zerolog.TimeFieldFormat = time.RFC3339Nano

	var output io.Writer
	if cfg.Format == "json" || env == "production" {
		output = os.Stdout
	} else {
		// Pretty console output for development
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	}

	log.Logger = zerolog.New(output).
		With().
		Timestamp().
		Str("service", "rota").
		Logger()
}

type requestIDKey struct{}

// WithRequestID stores the request id on ctx for services that log outside gin
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request id stored by WithRequestID, or ""
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// NewLogger creates a new logger with additional context
func NewLogger(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}

// RequestLogger is a Gin middleware for structured request logging
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		requestID := c.GetString("request_id")

		event := log.Info()
		if c.Writer.Status() >= 500 {
			event = log.Error()
		} else if c.Writer.Status() >= 400 {
			event = log.Warn()
		}

		event.
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", raw).
			Int("status", c.Writer.Status()).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Str("user_id", c.GetString("user_id")).
			Int("body_size", c.Writer.Size()).
			Msg("HTTP request")
	}
}

// LogSoftFailure records an error from a side effect that must not fail the
// primary operation (medal checks, storage cleanup, point awards).
func LogSoftFailure(err error, component, operation string, fields map[string]any) {
	monitoring.RecordSoftFailure(component, operation)
	log.Warn().
		Err(err).
		Str("component", component).
		Str("operation", operation).
		Fields(fields).
		Msg("Background side effect failed")
}

// LogPayout logs a withdrawal resolution
func LogPayout(requestID, userID, withdrawalID, status string, amount string, commissionsPaid int) {
	log.Info().
		Str("request_id", requestID).
		Str("user_id", userID).
		Str("withdrawal_id", withdrawalID).
		Str("status", status).
		Str("amount", amount).
		Int("commissions_paid", commissionsPaid).
		Msg("Withdrawal resolved")
}

// LogSecurityEvent logs security-related events
func LogSecurityEvent(eventType, userID, clientIP, details string) {
	log.Warn().
		Str("event_type", eventType).
		Str("user_id", userID).
		Str("client_ip", clientIP).
		Str("details", details).
		Msg("Security event")
}

// LogError logs an error with context
func LogError(err error, requestID, component, operation string) {
	log.Error().
		Err(err).
		Str("request_id", requestID).
		Str("component", component).
		Str("operation", operation).
		Msg("Error occurred")
}
