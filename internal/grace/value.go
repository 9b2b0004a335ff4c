// Package grace holds a value that can be temporarily pinned by a local
// optimistic update, shielding it from authoritative writes until a grace
// period expires.
package grace

import (
	"sync"
	"time"
)

// Value is an authoritative value plus an optional override with an expiry.
// While now < expiry the override is rendered and authoritative offers are
// discarded. The zero value is ready to use.
type Value[T any] struct {
	mu       sync.Mutex
	base     T
	override T
	expiry   time.Time
}

// Get returns the value to render at now.
func (v *Value[T]) Get(now time.Time) T {
	v.mu.Lock()
	defer v.mu.Unlock()
	if now.Before(v.expiry) {
		return v.override
	}
	return v.base
}

// Frozen reports whether an override is active at now.
func (v *Value[T]) Frozen(now time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return now.Before(v.expiry)
}

// Expiry returns the end of the current (or last) grace period.
func (v *Value[T]) Expiry() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.expiry
}

// Offer stores x as the authoritative value unless an override is active.
// It reports whether x was accepted.
func (v *Value[T]) Offer(x T, now time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if now.Before(v.expiry) {
		return false
	}
	v.base = x
	return true
}

// Override pins x for at least d from now. The grace period only ever
// grows: a shorter request leaves the existing expiry in place. x also
// becomes the authoritative value so it survives the expiry until the
// next accepted Offer. Returns the resulting expiry.
func (v *Value[T]) Override(x T, now time.Time, d time.Duration) time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.override = x
	v.base = x
	if until := now.Add(d); until.After(v.expiry) {
		v.expiry = until
	}
	return v.expiry
}

// Reset drops any override and sets the authoritative value to x.
func (v *Value[T]) Reset(x T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var zero T
	v.base = x
	v.override = zero
	v.expiry = time.Time{}
}
