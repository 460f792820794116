package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/facilityworks/sessionkit/adapters/store"
	"github.com/facilityworks/sessionkit/core"
)

// fakeRefresher counts calls and returns a fixed result.
type fakeRefresher struct {
	calls atomic.Int32
	err   error
}

func (f *fakeRefresher) Refresh(ctx context.Context) error {
	f.calls.Add(1)
	return f.err
}

func mintAccessToken(t *testing.T, expiresIn time.Duration) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   "commander@example.mil",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func newTestMonitor(st *store.MemoryStore, refresher *fakeRefresher, notifier *recordNotifier) *ExpiryMonitor {
	return NewExpiryMonitor(st, refresher, notifier, MonitorConfig{}, nil)
}

func TestCheckNow_IdleWithoutCredential(t *testing.T) {
	st := store.NewMemoryStore()
	refresher := &fakeRefresher{}
	notifier := &recordNotifier{}

	newTestMonitor(st, refresher, notifier).CheckNow(context.Background())

	require.Zero(t, refresher.calls.Load())
	require.Empty(t, notifier.all())
}

func TestCheckNow_FailsOpenOnMalformedCredential(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.SetTokens("not-a-jwt", "R1"))
	refresher := &fakeRefresher{}
	notifier := &recordNotifier{}

	newTestMonitor(st, refresher, notifier).CheckNow(context.Background())

	// A malformed read never forces a logout.
	require.Zero(t, refresher.calls.Load())
	require.Empty(t, notifier.all())
	require.Equal(t, "not-a-jwt", st.Access())
	require.Equal(t, "R1", st.Refresh())
}

func TestCheckNow_ProactiveRenewalInsideThreshold(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.SetTokens(mintAccessToken(t, 200*time.Second), "R1"))
	refresher := &fakeRefresher{}
	notifier := &recordNotifier{}

	newTestMonitor(st, refresher, notifier).CheckNow(context.Background())

	require.Equal(t, int32(1), refresher.calls.Load(),
		"200s to expiry is inside the 300s window, renewal must fire")
	require.Empty(t, notifier.all())
}

func TestCheckNow_NoRenewalOutsideThreshold(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.SetTokens(mintAccessToken(t, time.Hour), "R1"))
	refresher := &fakeRefresher{}
	notifier := &recordNotifier{}

	newTestMonitor(st, refresher, notifier).CheckNow(context.Background())

	require.Zero(t, refresher.calls.Load())
	require.Empty(t, notifier.all())
}

func TestCheckNow_ExpiredCredentialTerminatesImmediately(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.SetTokens(mintAccessToken(t, -5*time.Second), "R1"))
	refresher := &fakeRefresher{}
	notifier := &recordNotifier{}

	newTestMonitor(st, refresher, notifier).CheckNow(context.Background())

	require.Zero(t, refresher.calls.Load(), "an expired credential never attempts renewal")
	require.False(t, st.IsAuthenticated())

	events := notifier.all()
	require.Len(t, events, 1)
	require.Equal(t, core.ReasonTokenExpired, events[0].Reason)
	require.Equal(t, "Your session has expired", events[0].Message)
}

func TestCheckNow_TerminalRenewalFailureClearsAndNotifies(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.SetTokens(mintAccessToken(t, 100*time.Second), "R1"))
	refresher := &fakeRefresher{err: &core.TerminalError{
		Reason:  core.ReasonUserInactive,
		Message: "Account disabled",
	}}
	notifier := &recordNotifier{}

	newTestMonitor(st, refresher, notifier).CheckNow(context.Background())

	require.False(t, st.IsAuthenticated())
	events := notifier.all()
	require.Len(t, events, 1)
	require.Equal(t, core.ReasonUserInactive, events[0].Reason)
	require.Equal(t, "Account disabled", events[0].Message)
}

func TestCheckNow_TerminalFailureWithoutReasonDefaultsToExpired(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.SetTokens(mintAccessToken(t, 100*time.Second), "R1"))
	refresher := &fakeRefresher{err: &core.TerminalError{}}
	notifier := &recordNotifier{}

	newTestMonitor(st, refresher, notifier).CheckNow(context.Background())

	events := notifier.all()
	require.Len(t, events, 1)
	require.Equal(t, core.ReasonTokenExpired, events[0].Reason)
	require.Equal(t, "Your session has expired", events[0].Message)
}

func TestCheckNow_TransientRenewalFailureKeepsSession(t *testing.T) {
	st := store.NewMemoryStore()
	access := mintAccessToken(t, 100*time.Second)
	require.NoError(t, st.SetTokens(access, "R1"))
	refresher := &fakeRefresher{err: context.DeadlineExceeded}
	notifier := &recordNotifier{}

	newTestMonitor(st, refresher, notifier).CheckNow(context.Background())

	require.Equal(t, access, st.Access())
	require.Equal(t, "R1", st.Refresh())
	require.Empty(t, notifier.all())
}

func TestMonitor_StartStop(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.SetTokens(mintAccessToken(t, 100*time.Second), "R1"))
	refresher := &fakeRefresher{}
	notifier := &recordNotifier{}

	m := NewExpiryMonitor(st, refresher, notifier, MonitorConfig{
		CheckInterval: 10 * time.Millisecond,
	}, nil)

	m.Start(context.Background())
	require.Eventually(t, func() bool {
		return refresher.calls.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond, "ticker must drive repeated checks")

	m.Stop()
	m.Stop() // idempotent

	settled := refresher.calls.Load()
	time.Sleep(50 * time.Millisecond)
	require.LessOrEqual(t, refresher.calls.Load(), settled+1,
		"no further checks may run after Stop")
}
