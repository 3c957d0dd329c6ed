// Package context carries request-scoped values (request id, logger, caller identity)
// between the HTTP layer and the use cases.
package context

import (
	"context"
	"log/slog"

	"jwtauth/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	// KeyRequestID is the key for storing request ID in context.
	KeyRequestID ContextKey = "request_id"

	// KeyLogger is the key for storing request-scoped logger in context.
	KeyLogger ContextKey = "logger"

	// KeyUsername is the key for the authenticated username.
	KeyUsername ContextKey = "username"

	// KeyRole is the key for the authenticated role.
	KeyRole ContextKey = "role"

	// HeaderXRequestID is the HTTP header name for request ID.
	HeaderXRequestID = "X-Request-Id"
)

// GetRequestID extracts the request ID from echo.Context, generating one when absent.
func GetRequestID(c echo.Context) string {
	if id, ok := c.Get(string(KeyRequestID)).(string); ok && id != "" {
		return id
	}

	return uuid.New().String()
}

// SetRequestID sets the request ID in echo.Context.
func SetRequestID(c echo.Context, requestID string) {
	c.Set(string(KeyRequestID), requestID)
}

// GetRequestIDFromContext returns the request ID stored in ctx, or "".
func GetRequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(KeyRequestID).(string)

	return id
}

// WithRequestID returns a new context with the request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, KeyRequestID, requestID)
}

// GetLoggerOrDefault returns the request-scoped logger, or fallback when none is set.
func GetLoggerOrDefault(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(KeyLogger).(*slog.Logger); ok && logger != nil {
		return logger
	}

	return fallback
}

// WithLogger returns a new context with the logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, KeyLogger, logger)
}

// SetPrincipal records the verified caller on the echo.Context.
func SetPrincipal(c echo.Context, username string, role entity.Role) {
	c.Set(string(KeyUsername), username)
	c.Set(string(KeyRole), role)
}

// GetPrincipal returns the verified caller, if the request was authenticated.
func GetPrincipal(c echo.Context) (string, entity.Role, bool) {
	username, ok := c.Get(string(KeyUsername)).(string)
	if !ok || username == "" {
		return "", "", false
	}
	role, _ := c.Get(string(KeyRole)).(entity.Role)

	return username, role, true
}
