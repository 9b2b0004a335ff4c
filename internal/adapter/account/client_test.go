package account

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arturoeanton/dyana-web/internal/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, CreditsPath: "/credits/state", GuestPath: "/auth/anonymous"}, time.Second)
}

func TestFetchCreditsState_OK(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/credits/state", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"role":"guest","free_left":3,"email":"x@y.z"}`))
	})

	state, err := c.FetchCreditsState(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, 3, state.DisplayCredits())
	assert.Equal(t, "x@y.z", state.Email)
}

func TestFetchCreditsState_Rejected(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		})
		_, err := c.FetchCreditsState(context.Background(), "tok")
		assert.ErrorIs(t, err, port.ErrAuthFailure)
	}
}

func TestFetchCreditsState_Failures(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})
	_, err := c.FetchCreditsState(context.Background(), "tok")
	assert.ErrorIs(t, err, port.ErrUpstreamMalformed)

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err = c.FetchCreditsState(context.Background(), "tok")
	assert.ErrorIs(t, err, port.ErrUpstreamUnavailable)

	_, err = c.FetchCreditsState(context.Background(), "")
	assert.ErrorIs(t, err, port.ErrNoToken)

	dead := NewClient(Config{BaseURL: "http://127.0.0.1:1", CreditsPath: "/c"}, time.Second)
	_, err = dead.FetchCreditsState(context.Background(), "tok")
	assert.ErrorIs(t, err, port.ErrNetwork)
}

func TestIssueGuestToken(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/anonymous", r.URL.Path)
		_, _ = w.Write([]byte(`{"access_token":"g-123"}`))
	})

	tok, err := c.IssueGuestToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "g-123", tok)
	assert.Equal(t, int32(1), calls)
}

func TestIssueGuestToken_Empty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	_, err := c.IssueGuestToken(context.Background())
	assert.ErrorIs(t, err, port.ErrUpstreamMalformed)
}
