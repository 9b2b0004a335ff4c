package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arturoeanton/dyana-web/internal/domain"
	"github.com/arturoeanton/dyana-web/internal/port"
	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	state *domain.CreditsState
	err   error
	token string
}

func (s *stubFetcher) FetchCreditsState(_ context.Context, token string) (*domain.CreditsState, error) {
	s.token = token
	return s.state, s.err
}

func intp(v int) *int { return &v }

func getCredits(t *testing.T, fetcher port.CreditsFetcher, auth string) (int, map[string]any) {
	t.Helper()
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	NewCreditsHandler(fetcher).Register(app.Group("/api"))

	req := httptest.NewRequest(http.MethodGet, "/api/credits", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	return doRequest(t, app, req)
}

func TestCreditsHandler_ResolvesDisplayTuple(t *testing.T) {
	fetcher := &stubFetcher{state: &domain.CreditsState{
		Role:             "user",
		RemainingCredits: intp(7),
		TotalAvailable:   intp(30),
		Email:            "ada@dyana.test",
	}}

	status, body := getCredits(t, fetcher, "Bearer tok-1")

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "tok-1", fetcher.token)
	assert.Equal(t, map[string]any{
		"role":    "free",
		"credits": float64(7),
		"email":   "ada@dyana.test",
		"guest":   false,
	}, body["result"])
}

func TestCreditsHandler_EmailFromClaims(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"email": "claims@dyana.test"}).SignedString([]byte("k"))
	require.NoError(t, err)
	fetcher := &stubFetcher{state: &domain.CreditsState{Role: "premium", Paid: intp(12)}}

	status, body := getCredits(t, fetcher, "Bearer "+tok)

	require.Equal(t, http.StatusOK, status)
	result := body["result"].(map[string]any)
	assert.Equal(t, "claims@dyana.test", result["email"])
	assert.Equal(t, float64(12), result["credits"])
}

func TestCreditsHandler_Errors(t *testing.T) {
	status, _ := getCredits(t, &stubFetcher{}, "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := getCredits(t, &stubFetcher{err: port.ErrAuthFailure}, "Bearer x")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "error", body["status"])

	status, _ = getCredits(t, &stubFetcher{err: errors.Join(port.ErrNetwork, errors.New("refused"))}, "Bearer x")
	assert.Equal(t, http.StatusBadGateway, status)
}
