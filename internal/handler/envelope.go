package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"unicode/utf8"

	"github.com/arturoeanton/dyana-web/internal/port"
	"github.com/arturoeanton/dyana-web/internal/service"
	"github.com/gofiber/fiber/v3"
)

// previewLen bounds the upstream body excerpt returned on malformed replies.
const previewLen = 200

// ok writes the success envelope.
func ok(c fiber.Ctx, result any) error {
	return c.JSON(fiber.Map{"status": "ok", "result": result})
}

// fail writes the error envelope with optional diagnostic fields.
func fail(c fiber.Ctx, status int, message string, extra fiber.Map) error {
	body := fiber.Map{"status": "error", "message": message}
	for k, v := range extra {
		body[k] = v
	}
	return c.Status(status).JSON(body)
}

// failErr maps a service error to its HTTP status and envelope. Only
// validation details reach the client; everything else gets a generic
// message and is logged.
func failErr(c fiber.Ctx, err error) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return fail(c, fiber.StatusBadRequest, "missing required fields", fiber.Map{"fields": verr.Fields})
	case errors.Is(err, port.ErrValidation):
		return fail(c, fiber.StatusBadRequest, "invalid request body", nil)
	case errors.Is(err, port.ErrAuthFailure), errors.Is(err, port.ErrNoToken):
		return fail(c, fiber.StatusUnauthorized, "session not valid", nil)
	case errors.Is(err, port.ErrUpstreamMalformed):
		return fail(c, fiber.StatusBadGateway, "invalid response from astrology service", nil)
	case errors.Is(err, port.ErrUpstreamUnavailable), errors.Is(err, port.ErrNetwork):
		return fail(c, fiber.StatusBadGateway, "astrology service unreachable, please retry", nil)
	default:
		slog.Error("request failed", "path", c.Path(), "error", err)
		return fail(c, fiber.StatusInternalServerError, "internal error", nil)
	}
}

// relay translates an upstream reply into the envelope. The upstream
// status is mirrored; non-JSON bodies become a 502.
func relay(c fiber.Ctx, resp *port.UpstreamResponse) error {
	var decoded any
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		slog.Warn("upstream returned non-JSON body",
			"path", c.Path(),
			"upstream_status", resp.Status,
			"content_type", resp.ContentType,
		)
		return fail(c, fiber.StatusBadGateway, "invalid response from astrology service", fiber.Map{
			"upstream_status": resp.Status,
			"preview":         preview(resp.Body),
		})
	}

	// already enveloped upstream
	if obj, isObj := decoded.(map[string]any); isObj {
		if _, has := obj["status"]; has {
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Status(resp.Status).Send(resp.Body)
		}
	}

	raw := json.RawMessage(resp.Body)
	if resp.Status >= 200 && resp.Status < 300 {
		return c.Status(resp.Status).JSON(fiber.Map{"status": "ok", "result": raw})
	}
	return fail(c, resp.Status, "astrology service error", fiber.Map{
		"upstream_status": resp.Status,
		"detail":          raw,
	})
}

func preview(body []byte) string {
	if len(body) > previewLen {
		body = body[:previewLen]
	}
	for !utf8.Valid(body) && len(body) > 0 {
		body = body[:len(body)-1]
	}
	return string(body)
}

// ErrorHandler renders errors that escaped a handler as the error envelope.
func ErrorHandler(c fiber.Ctx, err error) error {
	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		return fail(c, ferr.Code, ferr.Message, nil)
	}
	return failErr(c, err)
}
