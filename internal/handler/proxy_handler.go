package handler

import (
	"github.com/arturoeanton/dyana-web/internal/service"
	"github.com/gofiber/fiber/v3"
)

// ProxyHandler exposes the astrology form endpoints.
type ProxyHandler struct {
	proxy *service.ProxyService
}

// NewProxyHandler creates a new proxy handler.
func NewProxyHandler(proxy *service.ProxyService) *ProxyHandler {
	return &ProxyHandler{proxy: proxy}
}

// Register sets up proxy routes.
func (h *ProxyHandler) Register(router fiber.Router) {
	router.Post("/tema", h.Natal)
	router.Post("/sinastria", h.Synastry)
	router.Post("/oroscopo/:period", h.Horoscope)
}

// Natal handles POST /tema.
func (h *ProxyHandler) Natal(c fiber.Ctx) error {
	resp, err := h.proxy.Natal(c.Context(), c.Body())
	if err != nil {
		return failErr(c, err)
	}
	return relay(c, resp)
}

// Synastry handles POST /sinastria.
func (h *ProxyHandler) Synastry(c fiber.Ctx) error {
	resp, err := h.proxy.Synastry(c.Context(), c.Body())
	if err != nil {
		return failErr(c, err)
	}
	return relay(c, resp)
}

// Horoscope handles POST /oroscopo/:period.
func (h *ProxyHandler) Horoscope(c fiber.Ctx) error {
	resp, err := h.proxy.Horoscope(c.Context(), c.Params("period"), c.Body())
	if err != nil {
		return failErr(c, err)
	}
	return relay(c, resp)
}
