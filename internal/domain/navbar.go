package domain

// Phase is the lifecycle state of the navbar reconciler.
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseLoading       Phase = "loading"
	PhaseGuest         Phase = "guest"
	PhaseAuthenticated Phase = "authenticated"
)

// NavbarState is the displayed role/credits/email tuple.
type NavbarState struct {
	Phase   Phase  `json:"phase"`
	Role    string `json:"role"`
	Credits int    `json:"credits"`
	Email   string `json:"email,omitempty"`
}

// GuestNavbar is the state shown when there is no usable session.
func GuestNavbar() NavbarState {
	return NavbarState{Phase: PhaseGuest, Role: RoleGuest}
}
