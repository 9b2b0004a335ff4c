package clientstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arturoeanton/dyana-web/internal/domain"
)

// ResumeMaxAge bounds how long a saved resume target stays usable.
const ResumeMaxAge = 30 * time.Minute

// ErrInvalidResumePath rejects anything that is not a same-site relative path.
var ErrInvalidResumePath = errors.New("resume path must be a relative path")

// SaveResumeTarget records where to go after login.
func (s *Store) SaveResumeTarget(ctx context.Context, path, query string) error {
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") {
		return ErrInvalidResumePath
	}
	target := domain.ResumeTarget{Path: path, Query: query, Timestamp: s.now()}
	data, err := json.Marshal(target)
	if err != nil {
		return fmt.Errorf("encode resume target: %w", err)
	}
	return s.Set(ctx, ScopeLocal, domain.KeyResumeTarget, data)
}

// ConsumeResumeTarget returns the saved target, or nil when none is saved
// or it is older than ResumeMaxAge. With clear set the target is removed
// whether or not it was still fresh.
func (s *Store) ConsumeResumeTarget(ctx context.Context, clear bool) (*domain.ResumeTarget, error) {
	data, err := s.Get(ctx, ScopeLocal, domain.KeyResumeTarget)
	if err != nil {
		return nil, err
	}
	if clear && data != nil {
		if err := s.Delete(ctx, ScopeLocal, domain.KeyResumeTarget); err != nil {
			return nil, err
		}
	}
	if data == nil {
		return nil, nil
	}

	var target domain.ResumeTarget
	if err := json.Unmarshal(data, &target); err != nil {
		// corrupt entries are treated as absent
		return nil, nil
	}
	if s.now().Sub(target.Timestamp) > ResumeMaxAge {
		return nil, nil
	}
	return &target, nil
}

// SetConsent stores the cookie-consent decision.
func (s *Store) SetConsent(ctx context.Context, granted bool) error {
	v := "denied"
	if granted {
		v = "granted"
	}
	return s.Set(ctx, ScopeLocal, domain.KeyConsent, []byte(v))
}

// Consent reports whether analytics consent was granted.
func (s *Store) Consent(ctx context.Context) (bool, error) {
	v, err := s.Get(ctx, ScopeLocal, domain.KeyConsent)
	if err != nil {
		return false, err
	}
	return string(v) == "granted", nil
}
