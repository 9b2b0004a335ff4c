package clientstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SetGetDelete(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	v, err := s.Get(ctx, ScopeLocal, "absent")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, s.Set(ctx, ScopeLocal, "k", []byte("one")))
	require.NoError(t, s.Set(ctx, ScopeLocal, "k", []byte("two")))
	v, err = s.Get(ctx, ScopeLocal, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), v)

	require.NoError(t, s.Delete(ctx, ScopeLocal, "k"))
	require.NoError(t, s.Delete(ctx, ScopeLocal, "k"))
	v, err = s.Get(ctx, ScopeLocal, "k")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestStore_ScopesAreIndependent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, ScopeLocal, "k", []byte("local")))
	require.NoError(t, s.Set(ctx, ScopeSession, "k", []byte("session")))

	require.NoError(t, s.ClearSession(ctx))

	v, err := s.Get(ctx, ScopeLocal, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("local"), v)

	v, err = s.Get(ctx, ScopeSession, "k")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestStore_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "client.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, ScopeLocal, "k", []byte("v")))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	v, err := s.Get(ctx, ScopeLocal, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}

func TestResumeTarget_Lifecycle(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.SaveResumeTarget(ctx, "/sinastria", "tier=premium"))

	got, err := s.ConsumeResumeTarget(ctx, false)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "/sinastria?tier=premium", got.URL())

	got, err = s.ConsumeResumeTarget(ctx, true)
	require.NoError(t, err)
	require.NotNil(t, got)

	got, err = s.ConsumeResumeTarget(ctx, false)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResumeTarget_Expired(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.SaveResumeTarget(ctx, "/tema", ""))
	now = now.Add(ResumeMaxAge + time.Second)

	got, err := s.ConsumeResumeTarget(ctx, true)
	require.NoError(t, err)
	assert.Nil(t, got)

	v, err := s.Get(ctx, ScopeLocal, "dyana_resume_target")
	require.NoError(t, err)
	assert.Nil(t, v, "clear removes stale targets too")
}

func TestResumeTarget_RejectsExternalPaths(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.SaveResumeTarget(ctx, "https://evil.test/", ""), ErrInvalidResumePath)
	assert.ErrorIs(t, s.SaveResumeTarget(ctx, "//evil.test/", ""), ErrInvalidResumePath)
}

func TestConsent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	ok, err := s.Consent(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetConsent(ctx, true))
	ok, err = s.Consent(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.SetConsent(ctx, false))
	ok, err = s.Consent(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
