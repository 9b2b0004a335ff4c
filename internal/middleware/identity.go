package middleware

import (
	"github.com/arturoeanton/dyana-web/internal/adapter/identity"
	"github.com/arturoeanton/dyana-web/internal/domain"
	"github.com/gofiber/fiber/v3"
)

const claimsKey = "claims"

// IdentityMiddleware peeks the bearer token claims into the request locals.
// It never rejects a request: the identity provider validates tokens, the
// claims are only used for attribution.
func IdentityMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		token := identity.BearerToken(c.Get(fiber.HeaderAuthorization))
		if token != "" {
			if claims, err := identity.PeekClaims(token); err == nil {
				c.Locals(claimsKey, claims)
			}
		}
		return c.Next()
	}
}

// GetClaims extracts the peeked claims from Fiber locals.
func GetClaims(c fiber.Ctx) *domain.Claims {
	claims, ok := c.Locals(claimsKey).(*domain.Claims)
	if !ok {
		return nil
	}
	return claims
}
