package handler

import (
	"github.com/arturoeanton/dyana-web/internal/adapter/identity"
	"github.com/arturoeanton/dyana-web/internal/domain"
	"github.com/arturoeanton/dyana-web/internal/port"
	"github.com/gofiber/fiber/v3"
)

// CreditsView is the resolved navbar tuple for one bearer token.
type CreditsView struct {
	Role    string `json:"role"`
	Credits int    `json:"credits"`
	Email   string `json:"email,omitempty"`
	Guest   bool   `json:"guest"`
}

// CreditsHandler resolves the caller's credits for pages that cannot
// reach the identity provider directly.
type CreditsHandler struct {
	fetcher port.CreditsFetcher
}

// NewCreditsHandler creates a new credits handler.
func NewCreditsHandler(fetcher port.CreditsFetcher) *CreditsHandler {
	return &CreditsHandler{fetcher: fetcher}
}

// Register sets up credits routes.
func (h *CreditsHandler) Register(router fiber.Router) {
	router.Get("/credits", h.Get)
}

// Get handles GET /credits.
func (h *CreditsHandler) Get(c fiber.Ctx) error {
	token := identity.BearerToken(c.Get(fiber.HeaderAuthorization))
	if token == "" {
		return fail(c, fiber.StatusUnauthorized, "missing authorization", nil)
	}

	state, err := h.fetcher.FetchCreditsState(c.Context(), token)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, resolveView(state, token))
}

func resolveView(state *domain.CreditsState, token string) CreditsView {
	view := CreditsView{
		Role:    state.DisplayRole(),
		Credits: state.DisplayCredits(),
		Email:   state.Email,
		Guest:   state.IsGuest(),
	}
	if view.Email == "" && !view.Guest {
		if claims, err := identity.PeekClaims(token); err == nil {
			view.Email = claims.Email
		}
	}
	return view
}
