// Package store provides CredentialStore implementations: an in-memory store
// for tests and ephemeral sessions, a JSON file store that survives process
// restarts, and a Redis store for deployments that share one session across
// processes.
package store

import "strings"

// Storage keys for the credential pair and the cached profile. The names are
// part of the persisted contract and must stay stable across releases.
const (
	keyAccess  = "access_token"
	keyRefresh = "refresh_token"
	keyProfile = "user"
)

// sweepKey reports whether a key looks auth-related. ClearAll removes every
// key matching this predicate, not just the three canonical ones, so stale
// credentials from older releases cannot linger.
func sweepKey(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "token") ||
		strings.Contains(k, "auth") ||
		strings.Contains(k, "user")
}
