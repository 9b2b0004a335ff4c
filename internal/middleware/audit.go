package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/arturoeanton/dyana-web/internal/domain"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// RequestIDHeader carries the audit record id back to the caller.
const RequestIDHeader = "X-Request-ID"

// auditTimeout bounds a single background audit write.
const auditTimeout = 5 * time.Second

// AuditWriter defines how audit records are persisted.
type AuditWriter interface {
	WriteAudit(ctx context.Context, entry domain.AuditLog) error
}

// LogAuditWriter writes audit records to slog. Used when no database is
// configured.
type LogAuditWriter struct{}

// WriteAudit implements AuditWriter.
func (LogAuditWriter) WriteAudit(_ context.Context, entry domain.AuditLog) error {
	slog.Info("audit",
		"id", entry.ID,
		"user_id", entry.UserID,
		"action", entry.Action,
		"resource", entry.Resource,
		"resource_id", entry.ResourceID,
		"details", entry.Details,
		"ip", entry.IP,
	)
	return nil
}

// AuditMiddleware records every request. Errors from the chain are rendered
// through the app ErrorHandler before the status is read.
func AuditMiddleware(writer AuditWriter) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		// Capture request data BEFORE handler execution (Fiber reuses context objects)
		requestID := uuid.NewString()
		method := c.Method()
		path := strings.Clone(c.Path())
		ip := c.IP()
		userAgent := strings.Clone(c.Get(fiber.HeaderUserAgent))
		c.Set(RequestIDHeader, requestID)

		// Render chain errors here so the audited status is the one sent.
		if chainErr := c.Next(); chainErr != nil {
			if err := c.App().Config().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		userID := "anonymous"
		if claims := GetClaims(c); claims != nil && claims.Subject != "" {
			userID = claims.Subject
		}

		status := c.Response().StatusCode()
		details, _ := json.Marshal(map[string]any{
			"method":      method,
			"path":        path,
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
		})

		entry := domain.AuditLog{
			ID:         requestID,
			UserID:     userID,
			Action:     auditAction(path),
			Resource:   "api",
			ResourceID: path,
			Details:    string(details),
			IP:         ip,
			UserAgent:  userAgent,
			CreatedAt:  start,
		}

		// all values are captured, safe to use in goroutine
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
			defer cancel()
			if writeErr := writer.WriteAudit(ctx, entry); writeErr != nil {
				slog.Error("failed to write audit log", "error", writeErr)
			}
		}()

		return nil
	}
}

func auditAction(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/credits"):
		return domain.AuditActionCredits
	case strings.HasPrefix(path, "/api/tema"),
		strings.HasPrefix(path, "/api/sinastria"),
		strings.HasPrefix(path, "/api/oroscopo"):
		return domain.AuditActionProxy
	default:
		return domain.AuditActionHTTPRequest
	}
}
