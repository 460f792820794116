package ports

import "github.com/facilityworks/sessionkit/core"

// CredentialStore persists the credential pair and the cached user profile.
// Implementations hold no expiry logic and perform no renewal I/O of their
// own; they are plain storage.
type CredentialStore interface {
	// Access returns the stored access credential, or "" when absent.
	Access() string

	// Refresh returns the stored renewal credential, or "" when absent.
	Refresh() string

	// SetTokens replaces the credential pair as a whole. Readers never
	// observe a mixed pairing across two sessions.
	SetTokens(access, refresh string) error

	// Profile returns the cached user profile, or nil when absent.
	Profile() *core.UserProfile

	// SetProfile caches the user profile alongside the credential pair.
	SetProfile(profile *core.UserProfile) error

	// IsAuthenticated reports whether both credentials are present.
	IsAuthenticated() bool

	// ClearAll removes the credential pair, the cached profile and every
	// other stored key whose name contains "token", "auth" or "user". It
	// never returns an error and is safe to repeat.
	ClearAll()
}
