// Package identity reads claims out of bearer tokens issued by the identity
// provider. The BFF never holds the signing key, so signatures are not
// checked here; the provider remains the authority on validity.
package identity

import (
	"fmt"
	"strings"

	"github.com/arturoeanton/dyana-web/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// PeekClaims decodes the claims of a JWT without verifying its signature.
func PeekClaims(token string) (*domain.Claims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("peek claims: %w", err)
	}

	out := &domain.Claims{}
	if sub, err := claims.GetSubject(); err == nil {
		out.Subject = sub
	}
	if email, ok := claims["email"].(string); ok {
		out.Email = email
	}
	if role, ok := claims["role"].(string); ok {
		out.Role = role
	}
	return out, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
