package handler

import (
	"context"
	"crypto/subtle"
	"strconv"

	"github.com/arturoeanton/dyana-web/internal/domain"
	"github.com/gofiber/fiber/v3"
)

// AuditReader lists stored audit records.
type AuditReader interface {
	ListAuditLogs(ctx context.Context, limit int, action string) ([]domain.AuditLog, error)
}

// AuditHandler handles audit log endpoints.
type AuditHandler struct {
	reader     AuditReader
	adminToken string
}

// NewAuditHandler creates a new audit handler. Requests must carry
// adminToken in the X-Admin-Token header.
func NewAuditHandler(reader AuditReader, adminToken string) *AuditHandler {
	return &AuditHandler{reader: reader, adminToken: adminToken}
}

// Register sets up audit routes.
func (h *AuditHandler) Register(router fiber.Router) {
	audit := router.Group("/audit", h.requireAdmin)
	audit.Get("/logs", h.ListLogs)
}

func (h *AuditHandler) requireAdmin(c fiber.Ctx) error {
	got := c.Get("X-Admin-Token")
	if h.adminToken == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.adminToken)) != 1 {
		return fail(c, fiber.StatusUnauthorized, "admin token required", nil)
	}
	return c.Next()
}

// ListLogs returns audit logs with optional filtering.
func (h *AuditHandler) ListLogs(c fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}
	action := c.Query("action", "")

	logs, err := h.reader.ListAuditLogs(c.Context(), limit, action)
	if err != nil {
		return failErr(c, err)
	}

	return ok(c, fiber.Map{
		"logs":  logs,
		"count": len(logs),
	})
}
