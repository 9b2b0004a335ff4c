package port

import (
	"context"

	"github.com/arturoeanton/dyana-web/internal/domain"
)

// CreditsFetcher obtains the caller's current role and balances.
type CreditsFetcher interface {
	// FetchCreditsState fails with ErrNetwork on transport failure and
	// ErrAuthFailure when the token is rejected.
	FetchCreditsState(ctx context.Context, token string) (*domain.CreditsState, error)
}

// GuestIssuer asks the identity provider for a new anonymous guest token.
type GuestIssuer interface {
	IssueGuestToken(ctx context.Context) (string, error)
}

// TokenSource is the read side of the token store used by the reconciler.
type TokenSource interface {
	// UserToken returns the registered-user token or "" when absent.
	UserToken(ctx context.Context) (string, error)

	// GuestToken returns the stored guest token or "" when absent. Never creates one.
	GuestToken(ctx context.Context) (string, error)

	// EnsureGuestToken returns the stored guest token, creating it through
	// the identity provider when absent. Only the initial mount may call it.
	EnsureGuestToken(ctx context.Context) (string, error)

	// ClearUserToken removes the registered-user token.
	ClearUserToken(ctx context.Context) error

	// Watch returns a channel notified on every token write or clear.
	Watch() (<-chan domain.TokenChange, func())
}
