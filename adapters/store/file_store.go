package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/facilityworks/sessionkit/core"
	"github.com/facilityworks/sessionkit/ports"
)

// FileStore is a CredentialStore backed by a JSON key/value file, so the
// session survives a process restart. All reads come from an in-memory
// mirror; the file is rewritten after every mutation.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu   sync.RWMutex
	data map[string]string
}

// NewFileStore opens (or creates) the keyring file at path.
func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &FileStore{
		path:   path,
		logger: logger,
		data:   make(map[string]string),
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open credential file: %w", err)
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("failed to parse credential file: %w", err)
	}

	return s, nil
}

var _ ports.CredentialStore = (*FileStore)(nil)

// Access returns the stored access credential, or "" when absent.
func (s *FileStore) Access() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.data[keyAccess]
}

// Refresh returns the stored renewal credential, or "" when absent.
func (s *FileStore) Refresh() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.data[keyRefresh]
}

// SetTokens replaces the credential pair and persists the file.
func (s *FileStore) SetTokens(access, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[keyAccess] = access
	s.data[keyRefresh] = refresh
	return s.persist()
}

// Profile returns the cached user profile, or nil when absent.
func (s *FileStore) Profile() *core.UserProfile {
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

// SetProfile caches the user profile and persists the file.
func (s *FileStore) SetProfile(profile *core.UserProfile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[keyProfile] = string(raw)
	return s.persist()
}

// IsAuthenticated reports whether both credentials are present.
func (s *FileStore) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.data[keyAccess] != "" && s.data[keyRefresh] != ""
}

// ClearAll removes the credential pair, the cached profile and every other
// auth-looking key. A persistence failure is logged and swallowed: callers
// cannot meaningfully fail to clear session state, and the in-memory mirror
// is already clean.
func (s *FileStore) ClearAll() {
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

	if err := s.persist(); err != nil {
		s.logger.Warn("failed to persist cleared credential file",
			slog.String("path", s.path), slog.Any("error", err))
	}
}

// Put stores an arbitrary application key next to the session state.
func (s *FileStore) Put(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
	return s.persist()
}

// Get retrieves an arbitrary application key.
func (s *FileStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	return value, ok
}

// persist rewrites the keyring file. Caller holds the write lock. The write
// goes through a temp file and rename so a crash never leaves a torn file.
func (s *FileStore) persist() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credential file: %w", err)
	}

	tmp := s.path + ".tmp"
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create credential directory: %w", err)
		}
	}
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace credential file: %w", err)
	}

	return nil
}
