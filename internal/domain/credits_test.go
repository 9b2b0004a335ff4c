package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, body string) CreditsState {
	t.Helper()
	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &raw))
	return ParseCreditsState(raw)
}

func TestDisplayCredits_ResolutionPolicy(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"remaining wins for guest", `{"role":"guest","remaining_credits":7,"free_left":3}`, 7},
		{"remaining wins for paid", `{"role":"premium","remaining_credits":2,"total_available":40,"paid":30}`, 2},
		{"remaining zero still wins", `{"role":"user","remaining_credits":0,"total_available":5}`, 0},
		{"guest free_left", `{"role":"guest","free_left":3}`, 3},
		{"guest guest_free_left", `{"role":"guest","guest_free_left":2,"credits":9}`, 2},
		{"guest credits", `{"role":"guest","credits":9}`, 9},
		{"guest nothing", `{"role":"guest"}`, 0},
		{"user total_available", `{"role":"user","total_available":12,"paid":10,"credits":1}`, 12},
		{"user paid", `{"role":"user","paid":10,"credits":1}`, 10},
		{"user credits", `{"role":"user","credits":1}`, 1},
		{"user ignores free_left", `{"role":"user","free_left":4}`, 0},
		{"non-numeric remaining ignored", `{"role":"guest","remaining_credits":"7","free_left":3}`, 3},
		{"fractional remaining rounds", `{"role":"premium","remaining_credits":2.5,"total_available":40}`, 3},
		{"fractional remaining rounds down", `{"role":"premium","remaining_credits":2.4,"total_available":40}`, 2},
		{"out of range remaining ignored", `{"role":"guest","remaining_credits":1e300,"free_left":3}`, 3},
		{"out of range total ignored", `{"role":"user","total_available":-1e20,"paid":10}`, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, parse(t, tc.body).DisplayCredits())
		})
	}
}

func TestDisplayRole(t *testing.T) {
	assert.Equal(t, "free", parse(t, `{"role":"user"}`).DisplayRole())
	assert.Equal(t, "guest", parse(t, `{"role":"guest"}`).DisplayRole())
	assert.Equal(t, "premium", parse(t, `{"role":"premium"}`).DisplayRole())
}

func TestParseCreditsState_Email(t *testing.T) {
	s := parse(t, `{"role":"user","email":"a@b.it","credits":3}`)
	assert.Equal(t, "a@b.it", s.Email)
	assert.False(t, s.IsGuest())
}
