package store

import (
	"encoding/json"
	"sync"

	"github.com/facilityworks/sessionkit/core"
	"github.com/facilityworks/sessionkit/ports"
)

// MemoryStore is an in-memory CredentialStore. Nothing survives a restart;
// it backs tests and deployments that want a fresh login per process.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

var _ ports.CredentialStore = (*MemoryStore)(nil)

// Access returns the stored access credential, or "" when absent.
func (s *MemoryStore) Access() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.data[keyAccess]
}

// Refresh returns the stored renewal credential, or "" when absent.
func (s *MemoryStore) Refresh() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.data[keyRefresh]
}

// SetTokens replaces the credential pair under one lock acquisition.
func (s *MemoryStore) SetTokens(access, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[keyAccess] = access
	s.data[keyRefresh] = refresh
	return nil
}

// Profile returns the cached user profile, or nil when absent.
func (s *MemoryStore) Profile() *core.UserProfile {
	s.mu.RLock()
	raw, ok := s.data[keyProfile]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	var profile core.UserProfile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return nil
	}
	return &profile
}

// SetProfile caches the user profile.
func (s *MemoryStore) SetProfile(profile *core.UserProfile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[keyProfile] = string(raw)
	return nil
}

// IsAuthenticated reports whether both credentials are present.
func (s *MemoryStore) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.data[keyAccess] != "" && s.data[keyRefresh] != ""
}

// ClearAll removes the credential pair, the cached profile and every other
// auth-looking key. Idempotent.
func (s *MemoryStore) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, keyAccess)
	delete(s.data, keyRefresh)
	delete(s.data, keyProfile)
	for key := range s.data {
		if sweepKey(key) {
			delete(s.data, key)
		}
	}
}

// Put stores an arbitrary application key next to the session state. Keys
// matching the auth sweep are removed by ClearAll along with the credentials.
func (s *MemoryStore) Put(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
}

// Get retrieves an arbitrary application key.
func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	return value, ok
}
