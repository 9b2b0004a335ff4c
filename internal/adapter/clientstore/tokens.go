package clientstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/arturoeanton/dyana-web/internal/domain"
	"github.com/arturoeanton/dyana-web/internal/port"
	"golang.org/x/sync/singleflight"
)

// TokenStore persists the user and guest bearer tokens in local scope and
// notifies watchers whenever one of them changes.
type TokenStore struct {
	store  *Store
	issuer port.GuestIssuer
	group  singleflight.Group

	mu       sync.Mutex
	watchers map[int]chan domain.TokenChange
	nextID   int
}

// NewTokenStore creates a token store. issuer may be nil, in which case
// EnsureGuestToken only returns an already stored token.
func NewTokenStore(store *Store, issuer port.GuestIssuer) *TokenStore {
	return &TokenStore{
		store:    store,
		issuer:   issuer,
		watchers: make(map[int]chan domain.TokenChange),
	}
}

// UserToken returns the registered-user token or "".
func (t *TokenStore) UserToken(ctx context.Context) (string, error) {
	return t.get(ctx, domain.KeyUserToken)
}

// GuestToken returns the guest token or "". It never creates one.
func (t *TokenStore) GuestToken(ctx context.Context) (string, error) {
	return t.get(ctx, domain.KeyGuestToken)
}

// SetUserToken stores the token issued at login.
func (t *TokenStore) SetUserToken(ctx context.Context, token string) error {
	if err := t.store.Set(ctx, ScopeLocal, domain.KeyUserToken, []byte(token)); err != nil {
		return err
	}
	t.notify(domain.TokenChange{Kind: domain.UserToken})
	return nil
}

// SetGuestToken stores a guest token.
func (t *TokenStore) SetGuestToken(ctx context.Context, token string) error {
	if err := t.store.Set(ctx, ScopeLocal, domain.KeyGuestToken, []byte(token)); err != nil {
		return err
	}
	t.notify(domain.TokenChange{Kind: domain.GuestToken})
	return nil
}

// ClearUserToken removes the user token (logout).
func (t *TokenStore) ClearUserToken(ctx context.Context) error {
	if err := t.store.Delete(ctx, ScopeLocal, domain.KeyUserToken); err != nil {
		return err
	}
	t.notify(domain.TokenChange{Kind: domain.UserToken, Cleared: true})
	return nil
}

// ClearGuestToken removes the guest token.
func (t *TokenStore) ClearGuestToken(ctx context.Context) error {
	if err := t.store.Delete(ctx, ScopeLocal, domain.KeyGuestToken); err != nil {
		return err
	}
	t.notify(domain.TokenChange{Kind: domain.GuestToken, Cleared: true})
	return nil
}

// EnsureGuestToken returns the stored guest token, asking the identity
// provider for a new one when none exists. Concurrent callers share a single
// provider call so at most one guest identity is created.
func (t *TokenStore) EnsureGuestToken(ctx context.Context) (string, error) {
	if tok, err := t.GuestToken(ctx); err != nil || tok != "" {
		return tok, err
	}
	if t.issuer == nil {
		return "", port.ErrNoToken
	}

	v, err, _ := t.group.Do("guest", func() (any, error) {
		// another caller may have finished while we waited
		if tok, err := t.GuestToken(ctx); err != nil || tok != "" {
			return tok, err
		}
		tok, err := t.issuer.IssueGuestToken(ctx)
		if err != nil {
			return "", fmt.Errorf("issue guest token: %w", err)
		}
		if err := t.SetGuestToken(ctx, tok); err != nil {
			return "", err
		}
		slog.Info("guest token created")
		return tok, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Watch subscribes to token changes. The returned function unsubscribes.
func (t *TokenStore) Watch() (<-chan domain.TokenChange, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	ch := make(chan domain.TokenChange, 4)
	t.watchers[id] = ch

	return ch, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if _, ok := t.watchers[id]; ok {
			delete(t.watchers, id)
			close(ch)
		}
	}
}

func (t *TokenStore) get(ctx context.Context, key string) (string, error) {
	v, err := t.store.Get(ctx, ScopeLocal, key)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (t *TokenStore) notify(change domain.TokenChange) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range t.watchers {
		select {
		case ch <- change:
		default:
		}
	}
}
