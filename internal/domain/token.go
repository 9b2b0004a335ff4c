package domain

// TokenKind distinguishes the two bearer credentials a client may hold.
type TokenKind string

const (
	UserToken  TokenKind = "user"
	GuestToken TokenKind = "guest"
)

// Storage keys for the persisted client state.
const (
	KeyUserToken    = "dyana_token"
	KeyGuestToken   = "dyana_guest_token"
	KeyResumeTarget = "dyana_resume_target"
	KeyConsent      = "dyana_cookie_consent"
	KeyRecentEvents = "dyana_conv_recent"
)

// TokenChange is published whenever a stored token is written or cleared.
type TokenChange struct {
	Kind    TokenKind
	Cleared bool
}
