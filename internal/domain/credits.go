package domain

import "math"

// Role values as returned by the credits endpoint.
const (
	RoleGuest = "guest"
	RoleUser  = "user"
	RoleFree  = "free" // display form of RoleUser
)

// CreditsState is a snapshot of the caller's role and balances as reported by
// the credits endpoint. Numeric fields are nil when absent or non-numeric.
type CreditsState struct {
	Role             string `json:"role"`
	Email            string `json:"email,omitempty"`
	RemainingCredits *int   `json:"remaining_credits,omitempty"`
	FreeLeft         *int   `json:"free_left,omitempty"`
	GuestFreeLeft    *int   `json:"guest_free_left,omitempty"`
	Credits          *int   `json:"credits,omitempty"`
	TotalAvailable   *int   `json:"total_available,omitempty"`
	Paid             *int   `json:"paid,omitempty"`
}

// ParseCreditsState builds a CreditsState from a decoded JSON object.
// Only JSON numbers populate the numeric fields.
func ParseCreditsState(raw map[string]any) CreditsState {
	s := CreditsState{
		RemainingCredits: number(raw["remaining_credits"]),
		FreeLeft:         number(raw["free_left"]),
		GuestFreeLeft:    number(raw["guest_free_left"]),
		Credits:          number(raw["credits"]),
		TotalAvailable:   number(raw["total_available"]),
		Paid:             number(raw["paid"]),
	}
	if role, ok := raw["role"].(string); ok {
		s.Role = role
	}
	if email, ok := raw["email"].(string); ok {
		s.Email = email
	}
	return s
}

// IsGuest reports whether the backend role is the anonymous guest role.
func (s CreditsState) IsGuest() bool {
	return s.Role == RoleGuest
}

// DisplayCredits applies the value resolution policy:
// remaining_credits always wins; guests then fall back through
// free_left, guest_free_left, credits; everyone else through
// total_available, paid, credits. Missing everything yields 0.
func (s CreditsState) DisplayCredits() int {
	if s.RemainingCredits != nil {
		return *s.RemainingCredits
	}
	var chain []*int
	if s.IsGuest() {
		chain = []*int{s.FreeLeft, s.GuestFreeLeft, s.Credits}
	} else {
		chain = []*int{s.TotalAvailable, s.Paid, s.Credits}
	}
	for _, v := range chain {
		if v != nil {
			return *v
		}
	}
	return 0
}

// DisplayRole normalizes the backend role for display.
func (s CreditsState) DisplayRole() string {
	return NormalizeRole(s.Role)
}

// NormalizeRole maps "user" to "free" and passes every other role through.
func NormalizeRole(role string) string {
	if role == RoleUser {
		return RoleFree
	}
	return role
}

// number reads a JSON numeric field. Fractional values are rounded to the
// nearest whole credit; NaN, infinities and values outside the int32 range
// count as absent.
func number(v any) *int {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	f = math.Round(f)
	if f > math.MaxInt32 || f < math.MinInt32 {
		return nil
	}
	n := int(f)
	return &n
}
