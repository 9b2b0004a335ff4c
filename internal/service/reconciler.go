package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/arturoeanton/dyana-web/internal/adapter/identity"
	"github.com/arturoeanton/dyana-web/internal/domain"
	"github.com/arturoeanton/dyana-web/internal/grace"
	"github.com/arturoeanton/dyana-web/internal/port"
)

// Reason tells the reconciler why a refresh was requested.
type Reason string

const (
	ReasonInitial    Reason = "initial"
	ReasonEvent      Reason = "event"      // dyana:refresh-credits / dyana-credits-updated
	ReasonVisibility Reason = "visibility" // tab became visible
	ReasonStorage    Reason = "storage"    // token keys changed
	ReasonDeferred   Reason = "deferred"   // freeze window elapsed
)

// DefaultFreezeWindow is how long an optimistic credit value is protected.
const DefaultFreezeWindow = 2500 * time.Millisecond

// RefreshPayload is the optional body of a refresh event.
type RefreshPayload struct {
	RemainingCredits *int `json:"remaining_credits,omitempty"`
}

// ReconcilerConfig tunes the reconciler.
type ReconcilerConfig struct {
	FreezeWindow time.Duration
	Now          func() time.Time
}

// NavbarReconciler merges stored tokens, the credits endpoint and local
// optimistic updates into the displayed role/credits/email tuple.
//
// All refreshes run on one goroutine. Triggers post to a one-slot channel,
// so while a refresh is in flight at most one follow-up is pending.
type NavbarReconciler struct {
	tokens  port.TokenSource
	fetcher port.CreditsFetcher
	freeze  time.Duration
	now     func() time.Time

	credits  grace.Value[int]
	requests chan Reason

	mu            sync.Mutex
	state         domain.NavbarState
	generation    uint64 // bumped by Logout; results of older refreshes are dropped
	optimisticSeq uint64 // bumped by every optimistic update
	deferred      *time.Timer
	subs          map[int]chan domain.NavbarState
	nextSub       int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNavbarReconciler creates a reconciler in the Uninitialized phase.
func NewNavbarReconciler(tokens port.TokenSource, fetcher port.CreditsFetcher, cfg ReconcilerConfig) *NavbarReconciler {
	if cfg.FreezeWindow <= 0 {
		cfg.FreezeWindow = DefaultFreezeWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &NavbarReconciler{
		tokens:   tokens,
		fetcher:  fetcher,
		freeze:   cfg.FreezeWindow,
		now:      cfg.Now,
		requests: make(chan Reason, 1),
		state:    domain.NavbarState{Phase: domain.PhaseUninitialized},
		subs:     make(map[int]chan domain.NavbarState),
	}
}

// Start mounts the reconciler: it performs the initial refresh (which may
// create a guest token) and then serves triggers until Stop or ctx ends.
func (r *NavbarReconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return errors.New("reconciler already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.state.Phase = domain.PhaseLoading
	r.mu.Unlock()
	r.publish()

	changes, unwatch := r.tokens.Watch()

	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		r.run(ctx)
	}()
	go func() {
		defer r.wg.Done()
		defer unwatch()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				r.Trigger(ReasonStorage, nil)
			}
		}
	}()
	return nil
}

// Stop unmounts the reconciler and waits for its goroutines.
func (r *NavbarReconciler) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	if r.deferred != nil {
		r.deferred.Stop()
		r.deferred = nil
	}
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

// Trigger requests a refresh. A payload carrying remaining_credits is
// applied immediately as an optimistic update instead; the backend is then
// consulted once, after the freeze window.
func (r *NavbarReconciler) Trigger(reason Reason, payload *RefreshPayload) {
	if payload != nil && payload.RemainingCredits != nil {
		r.ApplyOptimistic(*payload.RemainingCredits)
		return
	}
	r.post(reason)
}

// ApplyOptimistic displays credits right away and opens (or extends) the
// freeze window. Exactly one deferred refresh fires when the window closes.
func (r *NavbarReconciler) ApplyOptimistic(credits int) {
	r.mu.Lock()
	now := r.now()
	expiry := r.credits.Override(credits, now, r.freeze)
	r.optimisticSeq++
	if r.deferred != nil {
		r.deferred.Stop()
	}
	r.deferred = time.AfterFunc(expiry.Sub(now), func() { r.post(ReasonDeferred) })
	r.mu.Unlock()

	slog.Debug("optimistic credits applied", "credits", credits, "frozen_until", expiry)
	r.publish()
}

// Logout clears the user token and resets the display synchronously.
// The generation is bumped on both sides of the clear so that neither a
// refresh already in flight nor one that read the user token while it was
// being cleared can write an authenticated state back.
func (r *NavbarReconciler) Logout(ctx context.Context) error {
	r.resetToGuest()
	err := r.tokens.ClearUserToken(ctx)
	r.resetToGuest()
	return err
}

func (r *NavbarReconciler) resetToGuest() {
	r.mu.Lock()
	r.generation++
	r.state = domain.GuestNavbar()
	r.credits.Reset(0)
	if r.deferred != nil {
		r.deferred.Stop()
		r.deferred = nil
	}
	r.mu.Unlock()
	r.publish()
}

// State returns the currently displayed tuple.
func (r *NavbarReconciler) State() domain.NavbarState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Subscribe returns a channel receiving every displayed state change.
// Slow subscribers miss intermediate states. Call the returned function
// to unsubscribe.
func (r *NavbarReconciler) Subscribe() (<-chan domain.NavbarState, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSub
	r.nextSub++
	ch := make(chan domain.NavbarState, 16)
	r.subs[id] = ch
	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(ch)
		}
	}
}

func (r *NavbarReconciler) post(reason Reason) {
	select {
	case r.requests <- reason:
	default:
		// a follow-up is already pending
	}
}

func (r *NavbarReconciler) run(ctx context.Context) {
	r.refresh(ctx, ReasonInitial)
	for {
		select {
		case <-ctx.Done():
			return
		case reason := <-r.requests:
			r.refresh(ctx, reason)
		}
	}
}

func (r *NavbarReconciler) refresh(ctx context.Context, reason Reason) {
	r.mu.Lock()
	gen, seq := r.generation, r.optimisticSeq
	r.mu.Unlock()

	token, isUser, err := r.resolveToken(ctx, reason)
	if err != nil {
		slog.Warn("navbar token lookup failed", "reason", reason, "error", err)
	}
	if token == "" {
		r.apply(gen, seq, nil, "")
		return
	}

	state, err := r.fetcher.FetchCreditsState(ctx, token)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Warn("credits refresh failed", "reason", reason, "error", err)
		r.apply(gen, seq, nil, "")
		return
	}

	email := state.Email
	if email == "" && isUser {
		if claims, err := identity.PeekClaims(token); err == nil {
			email = claims.Email
		}
	}
	r.apply(gen, seq, state, email)
}

// resolveToken picks the bearer for a refresh. Only the initial mount may
// create a guest identity; every other trigger uses what is stored.
func (r *NavbarReconciler) resolveToken(ctx context.Context, reason Reason) (string, bool, error) {
	user, err := r.tokens.UserToken(ctx)
	if err != nil {
		return "", false, err
	}
	if user != "" {
		return user, true, nil
	}

	var guest string
	if reason == ReasonInitial {
		guest, err = r.tokens.EnsureGuestToken(ctx)
	} else {
		guest, err = r.tokens.GuestToken(ctx)
	}
	return guest, false, err
}

// apply commits a refresh result. A nil state means "no session".
func (r *NavbarReconciler) apply(gen, seq uint64, st *domain.CreditsState, email string) {
	r.mu.Lock()
	if gen != r.generation {
		r.mu.Unlock()
		slog.Debug("discarding superseded refresh")
		return
	}

	credits := 0
	if st == nil {
		r.state.Phase = domain.PhaseGuest
		r.state.Role = domain.RoleGuest
		r.state.Email = ""
	} else {
		r.state.Phase = domain.PhaseAuthenticated
		if st.IsGuest() {
			r.state.Phase = domain.PhaseGuest
		}
		r.state.Role = st.DisplayRole()
		r.state.Email = email
		credits = st.DisplayCredits()
	}

	// a read that began before the latest optimistic update is stale
	// for credits even if it resolves after the window
	if seq == r.optimisticSeq {
		r.credits.Offer(credits, r.now())
	}
	r.mu.Unlock()

	r.publish()
}

func (r *NavbarReconciler) snapshotLocked() domain.NavbarState {
	s := r.state
	s.Credits = r.credits.Get(r.now())
	return s
}

func (r *NavbarReconciler) publish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := r.snapshotLocked()
	for _, ch := range r.subs {
		select {
		case ch <- snapshot:
		default:
		}
	}
}
