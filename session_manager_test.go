package auth_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	auth "github.com/elpresidentey/agroallied-sub002"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestManager(provider auth.Provider, opts ...auth.ManagerOption) *auth.Manager {
	opts = append([]auth.ManagerOption{auth.WithManagerLogger(testLogger{})}, opts...)
	return auth.NewSessionManager(provider, opts...)
}

func TestIsSessionValidUsesInjectedClock(t *testing.T) {
	fixed := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	manager := newTestManager(new(MockProvider), auth.WithManagerClock(func() time.Time {
		return fixed
	}))

	assert.True(t, manager.IsSessionValid(testSession(fixed.Add(time.Hour))))
	assert.False(t, manager.IsSessionValid(testSession(fixed.Add(auth.SessionValidityBuffer-time.Second))))
	assert.False(t, manager.IsSessionValid(nil))
}

func TestSignInInstallsSessionAndEmits(t *testing.T) {
	provider := new(MockProvider)
	manager := newTestManager(provider)

	session := testSession(time.Now().Add(time.Hour))
	provider.On("SignInWithPassword", mock.Anything, "person@example.com", "secret123").
		Return(session, nil).Once()

	var events []auth.AuthEventType
	manager.OnAuthStateChange(func(change auth.AuthStateChange) {
		events = append(events, change.Event)
	})

	got, err := manager.SignIn(context.Background(), "person@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, session, got)
	assert.Equal(t, auth.StateValid, manager.State())
	assert.Equal(t, []auth.AuthEventType{auth.AuthEventSignedIn}, events)

	provider.AssertExpectations(t)
}

func TestSignInRejected(t *testing.T) {
	provider := new(MockProvider)
	manager := newTestManager(provider)

	provider.On("SignInWithPassword", mock.Anything, "person@example.com", "wrong").
		Return(nil, assert.AnError).Once()

	session, err := manager.SignIn(context.Background(), "person@example.com", "wrong")
	require.Error(t, err)
	assert.Nil(t, session)
	assert.Equal(t, auth.StateIdle, manager.State())
}

func TestRefreshSessionDeduplicatesConcurrentCalls(t *testing.T) {
	provider := new(MockProvider)
	manager := newTestManager(provider)

	manager.SetSession(testSession(time.Now().Add(time.Hour)))

	refreshed := testSession(time.Now().Add(2 * time.Hour))
	var exchanges int32
	provider.On("RefreshSession", mock.Anything, "refresh-token").
		Run(func(mock.Arguments) {
			atomic.AddInt32(&exchanges, 1)
			time.Sleep(50 * time.Millisecond)
		}).
		Return(refreshed, nil)

	const callers = 10
	results := make([]*auth.Session, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = manager.RefreshSession(context.Background())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&exchanges))
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, refreshed, results[i])
	}
	assert.Equal(t, auth.StateValid, manager.State())
}

func TestRefreshSessionWithoutRefreshToken(t *testing.T) {
	provider := new(MockProvider)
	manager := newTestManager(provider)

	session, err := manager.RefreshSession(context.Background())
	require.Error(t, err)
	assert.Nil(t, session)
	assert.True(t, auth.IsTokenRefreshFailedError(err))
	assert.Equal(t, auth.StateInvalid, manager.State())

	provider.AssertNotCalled(t, "RefreshSession", mock.Anything, mock.Anything)
}

func TestRefreshSessionFailureAllowsRetry(t *testing.T) {
	provider := new(MockProvider)
	manager := newTestManager(provider)

	manager.SetSession(testSession(time.Now().Add(time.Hour)))

	provider.On("RefreshSession", mock.Anything, "refresh-token").
		Return(nil, assert.AnError).Once()

	_, err := manager.RefreshSession(context.Background())
	require.Error(t, err)
	assert.True(t, auth.IsTokenRefreshFailedError(err))
	assert.Equal(t, auth.StateInvalid, manager.State())

	// the pending slot is cleared, so a later call retries the exchange
	refreshed := testSession(time.Now().Add(2 * time.Hour))
	provider.On("RefreshSession", mock.Anything, "refresh-token").
		Return(refreshed, nil).Once()

	session, err := manager.RefreshSession(context.Background())
	require.NoError(t, err)
	assert.Same(t, refreshed, session)
	assert.Equal(t, auth.StateValid, manager.State())

	provider.AssertExpectations(t)
}

func TestAutoRefreshFiresAheadOfExpiry(t *testing.T) {
	provider := new(MockProvider)
	manager := newTestManager(provider, auth.WithRefreshLead(100*time.Millisecond))
	defer manager.Destroy()

	refreshedEvents := make(chan *auth.Session, 1)
	manager.OnAuthStateChange(func(change auth.AuthStateChange) {
		if change.Event == auth.AuthEventTokenRefreshed {
			refreshedEvents <- change.Session
		}
	})

	refreshed := testSession(time.Now().Add(time.Hour))
	provider.On("RefreshSession", mock.Anything, "refresh-token").
		Return(refreshed, nil).Once()

	// timer fires at expires_at minus the lead, ~50ms from now
	manager.SetSession(testSession(time.Now().Add(150 * time.Millisecond)))

	select {
	case session := <-refreshedEvents:
		assert.Same(t, refreshed, session)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a TOKEN_REFRESHED event from the scheduled refresh")
	}

	provider.AssertExpectations(t)
}

func TestNoTimerInsideLeadWindow(t *testing.T) {
	provider := new(MockProvider)
	manager := newTestManager(provider)
	defer manager.Destroy()

	// default lead is 5m, so a session expiring in 1m gets no timer
	manager.SetSession(testSession(time.Now().Add(time.Minute)))

	time.Sleep(100 * time.Millisecond)
	provider.AssertNotCalled(t, "RefreshSession", mock.Anything, mock.Anything)
}

func TestGetSessionRecoversStaleSession(t *testing.T) {
	provider := new(MockProvider)
	manager := newTestManager(provider)

	// expired but still refreshable
	manager.SetSession(testSession(time.Now().Add(-time.Minute)))

	refreshed := testSession(time.Now().Add(time.Hour))
	provider.On("RefreshSession", mock.Anything, "refresh-token").
		Return(refreshed, nil).Once()

	session := manager.GetSession(context.Background())
	assert.Same(t, refreshed, session)
	assert.Equal(t, auth.StateValid, manager.State())

	provider.AssertExpectations(t)
}

func TestGetSessionReturnsNilNotError(t *testing.T) {
	provider := new(MockProvider)
	manager := newTestManager(provider)

	// no session at all
	assert.Nil(t, manager.GetSession(context.Background()))

	// stale session whose refresh is rejected degrades to nil
	manager.SetSession(testSession(time.Now().Add(-time.Minute)))
	provider.On("RefreshSession", mock.Anything, "refresh-token").
		Return(nil, assert.AnError).Once()

	assert.Nil(t, manager.GetSession(context.Background()))

	provider.AssertExpectations(t)
}

func TestClearSessionWhenRemoteSignOutFails(t *testing.T) {
	provider := new(MockProvider)
	manager := newTestManager(provider)

	manager.SetSession(testSession(time.Now().Add(time.Hour)))

	var events []auth.AuthEventType
	manager.OnAuthStateChange(func(change auth.AuthStateChange) {
		events = append(events, change.Event)
	})

	provider.On("SignOut", mock.Anything, "access-token").
		Return(assert.AnError).Once()

	manager.ClearSession(context.Background())

	assert.Nil(t, manager.GetSession(context.Background()))
	assert.Equal(t, auth.StateIdle, manager.State())
	assert.Equal(t, []auth.AuthEventType{auth.AuthEventSignedOut}, events)

	provider.AssertExpectations(t)
}

// panickySignOutProvider simulates a provider client blowing up mid sign-out.
type panickySignOutProvider struct {
	MockProvider
}

func (p *panickySignOutProvider) SignOut(ctx context.Context, accessToken string) error {
	panic("transport exploded")
}

func TestClearSessionSurvivesPanickingProvider(t *testing.T) {
	provider := new(panickySignOutProvider)
	manager := newTestManager(provider)

	manager.SetSession(testSession(time.Now().Add(time.Hour)))

	require.NotPanics(t, func() {
		manager.ClearSession(context.Background())
	})

	assert.Nil(t, manager.GetSession(context.Background()))
	assert.Equal(t, auth.StateIdle, manager.State())
}

func TestDestroyIsIdempotent(t *testing.T) {
	provider := new(MockProvider)
	manager := newTestManager(provider)

	manager.SetSession(testSession(time.Now().Add(time.Hour)))

	manager.Destroy()
	manager.Destroy()

	assert.Nil(t, manager.GetSession(context.Background()))
	assert.Equal(t, auth.StateIdle, manager.State())

	_, err := manager.RefreshSession(context.Background())
	require.Error(t, err)

	// subscribing after teardown is a no-op
	unsubscribe := manager.OnAuthStateChange(func(auth.AuthStateChange) {
		t.Fatal("destroyed manager must not deliver events")
	})
	unsubscribe()

	manager.SetSession(testSession(time.Now().Add(time.Hour)))
	assert.Nil(t, manager.GetSession(context.Background()))
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	provider := new(MockProvider)
	manager := newTestManager(provider)

	var delivered int
	unsubscribe := manager.OnAuthStateChange(func(auth.AuthStateChange) {
		delivered++
	})

	manager.SetSession(testSession(time.Now().Add(time.Hour)))
	assert.Equal(t, 1, delivered)

	unsubscribe()
	unsubscribe()

	manager.SetSession(testSession(time.Now().Add(2 * time.Hour)))
	assert.Equal(t, 1, delivered)
}
