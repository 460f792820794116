package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/facilityworks/sessionkit/adapters/store"
	"github.com/facilityworks/sessionkit/core"
)

// recordNotifier captures Terminate calls for assertions.
type recordNotifier struct {
	mu     sync.Mutex
	events []core.SessionEvent
}

func (n *recordNotifier) Terminate(reason, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, core.SessionEvent{Reason: reason, Message: msg})
}

func (n *recordNotifier) Events(ctx context.Context) (<-chan core.SessionEvent, error) {
	return nil, nil
}

func (n *recordNotifier) Close() error { return nil }

func (n *recordNotifier) all() []core.SessionEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]core.SessionEvent(nil), n.events...)
}

func TestTokenRefresher_SuccessKeepsRefreshWhenNotRotated(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.SetTokens("A1", "R1"))

	var (
		gotPath string
		gotBody map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]string{"access": "A2"})
	}))
	defer srv.Close()

	r := NewTokenRefresher(srv.URL, st, nil)
	require.NoError(t, r.Refresh(context.Background()))

	require.Equal(t, "/api/auth/token/refresh/", gotPath)
	require.Equal(t, map[string]string{"refresh": "R1"}, gotBody)
	require.Equal(t, "A2", st.Access())
	require.Equal(t, "R1", st.Refresh(), "renewal credential must be reused when the backend sends none")
}

func TestTokenRefresher_SuccessStoresRotatedRefresh(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.SetTokens("A1", "R1"))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access": "A2", "refresh": "R2"})
	}))
	defer srv.Close()

	r := NewTokenRefresher(srv.URL, st, nil)
	require.NoError(t, r.Refresh(context.Background()))

	require.Equal(t, "A2", st.Access())
	require.Equal(t, "R2", st.Refresh())
}

func TestTokenRefresher_TerminalClassification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantReason string
		wantMsg    string
	}{
		{
			name:       "explicit clear instruction",
			status:     http.StatusUnauthorized,
			body:       `{"action":"clear_tokens"}`,
			wantReason: "",
			wantMsg:    "",
		},
		{
			name:       "user not found",
			status:     http.StatusUnauthorized,
			body:       `{"error":"user_not_found","detail":"No such account"}`,
			wantReason: core.ReasonUserNotFound,
			wantMsg:    "No such account",
		},
		{
			name:       "invalid token",
			status:     http.StatusUnauthorized,
			body:       `{"error":"invalid_token","detail":"Token invalid"}`,
			wantReason: core.ReasonInvalidToken,
			wantMsg:    "Token invalid",
		},
		{
			name:       "inactive user",
			status:     http.StatusForbidden,
			body:       `{"error":"user_inactive","detail":"Account disabled"}`,
			wantReason: core.ReasonUserInactive,
			wantMsg:    "Account disabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewMemoryStore()
			require.NoError(t, st.SetTokens("A1", "R1"))

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := NewTokenRefresher(srv.URL, st, nil).Refresh(context.Background())
			te, ok := core.AsTerminal(err)
			require.True(t, ok, "expected a terminal error, got %v", err)
			require.Equal(t, tt.wantReason, te.Reason)
			require.Equal(t, tt.wantMsg, te.Message)

			// Clearing is the caller's job; the refresher itself never
			// touches stored credentials on failure.
			require.Equal(t, "A1", st.Access())
			require.Equal(t, "R1", st.Refresh())
		})
	}
}

func TestTokenRefresher_TransientFailuresKeepCredentials(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"detail":"backend exploded"}`))
			},
		},
		{
			name: "plain 401 without terminal markers",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"detail":"Token is invalid or expired","code":"token_not_valid"}`))
			},
		},
		{
			name: "malformed failure payload",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				w.Write([]byte("<html>gateway error</html>"))
			},
		},
		{
			name: "malformed success payload",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("{"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewMemoryStore()
			require.NoError(t, st.SetTokens("A1", "R1"))

			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			err := NewTokenRefresher(srv.URL, st, nil).Refresh(context.Background())
			require.Error(t, err)
			_, terminal := core.AsTerminal(err)
			require.False(t, terminal)

			require.Equal(t, "A1", st.Access())
			require.Equal(t, "R1", st.Refresh())
		})
	}
}

func TestTokenRefresher_TimeoutIsTransient(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.SetTokens("A1", "R1"))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	r := NewTokenRefresher(srv.URL, st, nil,
		WithRefreshClient(&http.Client{Timeout: 50 * time.Millisecond}))

	err := r.Refresh(context.Background())
	require.Error(t, err)
	_, terminal := core.AsTerminal(err)
	require.False(t, terminal)

	require.Equal(t, "A1", st.Access())
	require.Equal(t, "R1", st.Refresh())
}

func TestTokenRefresher_NoRefreshCredential(t *testing.T) {
	st := store.NewMemoryStore()

	r := NewTokenRefresher("http://localhost:0", st, nil)
	err := r.Refresh(context.Background())
	require.ErrorIs(t, err, core.ErrNoRefreshCredential)
}
