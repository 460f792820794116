package core

// Credentials is the access/renewal token pair issued by the backend. A
// session is authenticated only while both are present; either one alone is
// not sufficient.
type Credentials struct {
	Access  string // short-lived bearer token with an embedded expiry claim
	Refresh string // longer-lived token used solely to obtain a new access token
}

// UserProfile is a denormalized snapshot of the authenticated principal,
// cached alongside the credential pair for fast reads. It is not
// authoritative and must never drive an authorization decision on its own.
type UserProfile struct {
	ID          int    `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	IsSuperuser bool   `json:"is_superuser"`
}

// Session termination reason codes carried by SessionEvent.
const (
	ReasonUserNotFound       = "user_not_found"
	ReasonInvalidToken       = "invalid_token"
	ReasonUserInactive       = "user_inactive"
	ReasonTokenRefreshFailed = "token_refresh_failed"
	ReasonTokenExpired       = "token_expired"
)

// SessionEvent is the payload of a session-terminated notification.
type SessionEvent struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// KnownReason reports whether a reason code is one of the recognized
// termination reasons. Subscribers treat anything else as a generic
// expired session.
func KnownReason(reason string) bool {
	switch reason {
	case ReasonUserNotFound, ReasonInvalidToken, ReasonUserInactive,
		ReasonTokenRefreshFailed, ReasonTokenExpired:
		return true
	}
	return false
}
