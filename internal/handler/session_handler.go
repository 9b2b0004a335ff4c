package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arturoeanton/dyana-web/internal/domain"
	"github.com/arturoeanton/dyana-web/internal/port"
	"github.com/arturoeanton/dyana-web/internal/service"
	"github.com/gofiber/fiber/v3"
)

// streamTimeout ends idle navbar streams; EventSource reconnects on its own.
const streamTimeout = 5 * time.Minute

// NavbarSession is the reconciler surface the session routes drive.
type NavbarSession interface {
	State() domain.NavbarState
	Subscribe() (<-chan domain.NavbarState, func())
	Trigger(reason service.Reason, payload *service.RefreshPayload)
	Logout(ctx context.Context) error
}

// ConversionSink accepts conversion events from pages.
type ConversionSink interface {
	Enqueue(ctx context.Context, name string, params map[string]any) error
	Kick()
}

// SessionHandler exposes a local client session to page scripts: the
// navbar tuple, its triggers and the conversion queue.
type SessionHandler struct {
	navbar      NavbarSession
	conversions ConversionSink
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(navbar NavbarSession, conversions ConversionSink) *SessionHandler {
	return &SessionHandler{navbar: navbar, conversions: conversions}
}

// Register sets up session routes.
func (h *SessionHandler) Register(router fiber.Router) {
	session := router.Group("/session")
	session.Get("/navbar", h.GetNavbar)
	session.Get("/navbar/stream", h.StreamNavbar)
	session.Post("/refresh", h.Refresh)
	session.Post("/visible", h.Visible)
	session.Post("/logout", h.Logout)
	session.Post("/conversions", h.Enqueue)
}

// GetNavbar returns the displayed tuple.
func (h *SessionHandler) GetNavbar(c fiber.Ctx) error {
	return ok(c, h.navbar.State())
}

// Refresh handles the dyana:refresh-credits event. A body carrying
// remaining_credits is applied optimistically.
func (h *SessionHandler) Refresh(c fiber.Ctx) error {
	var payload *service.RefreshPayload
	if len(c.Body()) > 0 {
		payload = &service.RefreshPayload{}
		if err := c.Bind().JSON(payload); err != nil {
			return fail(c, fiber.StatusBadRequest, "invalid request body", nil)
		}
	}
	h.navbar.Trigger(service.ReasonEvent, payload)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "ok"})
}

// Visible handles the page becoming visible again.
func (h *SessionHandler) Visible(c fiber.Ctx) error {
	h.navbar.Trigger(service.ReasonVisibility, nil)
	h.conversions.Kick()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "ok"})
}

// Logout clears the user token and returns the reset tuple.
func (h *SessionHandler) Logout(c fiber.Ctx) error {
	if err := h.navbar.Logout(c.Context()); err != nil {
		slog.Error("logout failed", "error", err)
		return fail(c, fiber.StatusInternalServerError, "logout failed", nil)
	}
	return ok(c, h.navbar.State())
}

// Enqueue records a conversion event.
func (h *SessionHandler) Enqueue(c fiber.Ctx) error {
	var body struct {
		Name   string         `json:"name"`
		Params map[string]any `json:"params"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body", nil)
	}

	err := h.conversions.Enqueue(c.Context(), body.Name, body.Params)
	if errors.Is(err, port.ErrEventNotAllowed) {
		return fail(c, fiber.StatusBadRequest, "unknown conversion event", fiber.Map{"name": body.Name})
	}
	if err != nil {
		return failErr(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "ok"})
}

// StreamNavbar streams navbar updates via Server-Sent Events.
func (h *SessionHandler) StreamNavbar(c fiber.Ctx) error {
	ch, unsubscribe := h.navbar.Subscribe()
	current := h.navbar.State()

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()

		if err := writeNavbarEvent(w, current); err != nil {
			return
		}

		timeout := time.After(streamTimeout)
		for {
			select {
			case update, open := <-ch:
				if !open {
					return
				}
				if err := writeNavbarEvent(w, update); err != nil {
					return // client went away
				}
			case <-timeout:
				slog.Debug("navbar stream timeout")
				return
			}
		}
	})
}

func writeNavbarEvent(w *bufio.Writer, state domain.NavbarState) error {
	data, _ := json.Marshal(state)
	if _, err := fmt.Fprintf(w, "event: navbar\ndata: %s\n\n", data); err != nil {
		return err
	}
	return w.Flush()
}
