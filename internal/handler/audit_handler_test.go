package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arturoeanton/dyana-web/internal/domain"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuditReader struct {
	limit  int
	action string
}

func (s *stubAuditReader) ListAuditLogs(_ context.Context, limit int, action string) ([]domain.AuditLog, error) {
	s.limit, s.action = limit, action
	return []domain.AuditLog{{ID: "a1", Action: action}}, nil
}

func TestAuditHandler_RequiresAdminToken(t *testing.T) {
	reader := &stubAuditReader{}
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	NewAuditHandler(reader, "s3cret").Register(app.Group("/api"))

	req := httptest.NewRequest(http.MethodGet, "/api/audit/logs", nil)
	status, _ := doRequest(t, app, req)
	assert.Equal(t, http.StatusUnauthorized, status)

	req = httptest.NewRequest(http.MethodGet, "/api/audit/logs?limit=5&action=proxy_forward", nil)
	req.Header.Set("X-Admin-Token", "s3cret")
	status, body := doRequest(t, app, req)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 5, reader.limit)
	assert.Equal(t, domain.AuditActionProxy, reader.action)
	assert.Equal(t, float64(1), body["result"].(map[string]any)["count"])
}

func TestAuditHandler_EmptyTokenLocksRoute(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	NewAuditHandler(&stubAuditReader{}, "").Register(app.Group("/api"))

	req := httptest.NewRequest(http.MethodGet, "/api/audit/logs", nil)
	req.Header.Set("X-Admin-Token", "")
	status, _ := doRequest(t, app, req)
	assert.Equal(t, http.StatusUnauthorized, status)
}
