package auth

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// refreshCall is the single pending-refresh slot. Concurrent callers attach
// to the same call and observe the same outcome, so at most one token
// exchange is ever in flight per Manager.
type refreshCall struct {
	done    chan struct{}
	session *Session
	err     error
}

// Manager is the single authority for session retrieval, validity, refresh,
// and teardown. It wraps the provider client, schedules proactive refresh
// ahead of expiry, and publishes auth-state-change events to subscribers.
//
// Construct one per composition root and pass it by reference; there are no
// package-level instances.
type Manager struct {
	provider Provider
	logger   Logger
	now      func() time.Time
	lead     time.Duration

	mu           sync.Mutex
	session      *Session
	state        SessionState
	pending      *refreshCall
	timer        *time.Timer
	timerGen     uint64
	destroyed    bool
	listeners    map[int]AuthStateHandler
	nextListener int
}

var _ AuthStateNotifier = (*Manager)(nil)

// ManagerOption customizes Manager construction.
type ManagerOption func(*Manager)

// WithManagerLogger overrides the default logger.
func WithManagerLogger(logger Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithManagerClock injects a custom clock (useful for tests).
func WithManagerClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithRefreshLead overrides how far ahead of expiry the proactive refresh
// fires.
func WithRefreshLead(lead time.Duration) ManagerOption {
	return func(m *Manager) {
		if lead > 0 {
			m.lead = lead
		}
	}
}

// NewSessionManager creates a session Manager wrapping the given provider.
func NewSessionManager(provider Provider, opts ...ManagerOption) *Manager {
	m := &Manager{
		provider:  provider,
		logger:    defLogger{},
		now:       time.Now,
		lead:      RefreshLeadTime,
		state:     StateIdle,
		listeners: map[int]AuthStateHandler{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsSessionValid reports whether the given session may authorize a request
// right now.
func (m *Manager) IsSessionValid(session *Session) bool {
	return session.ValidAt(m.now())
}

// GetSession returns the current session or nil. It never returns an error:
// an unauthenticated visitor is a normal, recoverable state, so transport
// failures during recovery are logged and reported as nil. A stale session
// that still carries a refresh token is recovered in place via
// RefreshSession.
func (m *Manager) GetSession(ctx context.Context) *Session {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return nil
	}
	session := m.session
	m.mu.Unlock()

	if session.ValidAt(m.now()) {
		return session
	}

	if session == nil || session.RefreshToken == "" {
		return nil
	}

	refreshed, err := m.RefreshSession(ctx)
	if err != nil {
		m.logger.Debug("session recovery failed, treating as signed out: %v", err)
		return nil
	}

	return refreshed
}

// SignIn exchanges credentials for a session, installs it, arms the
// proactive refresh timer, and emits SIGNED_IN.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*Session, error) {
	session, err := m.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		m.logger.Error("sign in rejected: %v", err)
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "invalid email or password").
			WithCode(goerrors.CodeUnauthorized)
	}

	if session == nil || session.AccessToken == "" {
		return nil, ErrProviderUnavailable
	}

	if err := session.HydrateFromAccessToken(); err != nil {
		m.logger.Warn("sign in session claims: %v", err)
	}

	m.install(session, AuthEventSignedIn)
	return session, nil
}

// SetSession installs a session obtained out of band (the email-verification
// exchange), arms the refresh timer, and emits SIGNED_IN.
func (m *Manager) SetSession(session *Session) {
	if session == nil || session.AccessToken == "" {
		return
	}

	if err := session.HydrateFromAccessToken(); err != nil {
		m.logger.Warn("installed session claims: %v", err)
	}

	m.install(session, AuthEventSignedIn)
}

// RefreshSession exchanges the refresh token for a new session. If an
// exchange is already in flight, the call attaches to it and resolves with
// the same outcome instead of issuing a duplicate exchange; duplicate
// exchanges would race the provider's refresh-token rotation and invalidate
// each other. On failure the pending slot is cleared so a later call may
// retry.
func (m *Manager) RefreshSession(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return nil, ErrManagerDestroyed
	}

	if call := m.pending; call != nil {
		m.mu.Unlock()
		select {
		case <-call.done:
			return call.session, call.err
		case <-ctx.Done():
			return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled waiting for session refresh")
		}
	}

	var refreshToken string
	if m.session != nil {
		refreshToken = m.session.RefreshToken
	}

	call := &refreshCall{done: make(chan struct{})}
	m.pending = call
	m.setStateLocked(StateRefreshing)
	m.mu.Unlock()

	session, err := m.exchange(ctx, refreshToken)

	m.mu.Lock()
	m.pending = nil
	call.session = session
	call.err = err

	if err != nil {
		if !m.destroyed {
			m.setStateLocked(StateInvalid)
		}
		m.mu.Unlock()
		close(call.done)
		return nil, err
	}

	destroyed := m.destroyed
	if !destroyed {
		m.session = session
		m.setStateLocked(StateValid)
	}
	m.mu.Unlock()
	close(call.done)

	if destroyed {
		// late result after teardown: resolve waiters, install nothing
		return session, nil
	}

	m.SetupAutoRefresh(session)
	m.emit(AuthStateChange{Event: AuthEventTokenRefreshed, Session: session})

	return session, nil
}

func (m *Manager) exchange(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, ErrTokenRefreshFailed.WithMetadata(map[string]any{
			"reason": "no refresh token",
		})
	}

	// the exchange must outlive the first caller: attached callers and
	// timer-driven refreshes share its outcome
	session, err := m.provider.RefreshSession(context.WithoutCancel(ctx), refreshToken)
	if err != nil {
		m.logger.Error("refresh exchange rejected: %v", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "your session could not be renewed, please sign in again").
			WithTextCode(TextCodeTokenRefreshFailed).
			WithCode(goerrors.CodeUnauthorized)
	}

	if session == nil || session.AccessToken == "" {
		return nil, ErrTokenRefreshFailed
	}

	if err := session.HydrateFromAccessToken(); err != nil {
		m.logger.Warn("refreshed session claims: %v", err)
	}

	return session, nil
}

// SetupAutoRefresh arms a single timer firing at expires_at minus the
// refresh lead. Re-arming for a new session cancels the previous timer
// first, so timers never accumulate. Sessions expiring inside the lead
// window get no timer: the caller is expected to re-authenticate.
func (m *Manager) SetupAutoRefresh(session *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelTimerLocked()

	if m.destroyed {
		return
	}

	delay, ok := m.refreshDelayLocked(session)
	if !ok {
		return
	}

	gen := m.timerGen
	m.timer = time.AfterFunc(delay, func() {
		m.autoRefresh(gen)
	})
}

func (m *Manager) refreshDelayLocked(session *Session) (time.Duration, bool) {
	if session == nil || session.ExpiresAt == nil {
		return 0, false
	}

	delay := session.ExpiresAt.Add(-m.lead).Sub(m.now())
	if delay < 0 {
		return 0, false
	}

	return delay, true
}

func (m *Manager) autoRefresh(gen uint64) {
	m.mu.Lock()
	if m.destroyed || gen != m.timerGen {
		// superseded or torn down after the timer fired
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	if _, err := m.RefreshSession(context.Background()); err != nil {
		m.logger.Error("scheduled refresh failed: %v", err)
	}
}

// ClearSession signs out on the provider side and tears down local state.
// The remote call is best effort: whether it succeeds, fails, or panics,
// local cleanup always completes and SIGNED_OUT is emitted.
func (m *Manager) ClearSession(ctx context.Context) {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	if session != nil && session.AccessToken != "" {
		m.remoteSignOut(ctx, session.AccessToken)
	}

	m.mu.Lock()
	m.cancelTimerLocked()
	m.session = nil
	m.setStateLocked(StateIdle)
	destroyed := m.destroyed
	m.mu.Unlock()

	if !destroyed {
		m.emit(AuthStateChange{Event: AuthEventSignedOut})
	}
}

func (m *Manager) remoteSignOut(ctx context.Context, accessToken string) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("provider sign out panicked: %v", r)
		}
	}()

	if err := m.provider.SignOut(ctx, accessToken); err != nil {
		m.logger.Warn("provider sign out failed, clearing local state anyway: %v", err)
	}
}

// Destroy cancels any pending timer and drops all subscribers. Idempotent;
// a destroyed Manager discards late refresh results instead of installing
// them.
func (m *Manager) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return
	}

	m.destroyed = true
	m.cancelTimerLocked()
	m.session = nil
	m.listeners = map[int]AuthStateHandler{}
	m.state = StateIdle
}

// OnAuthStateChange registers a handler for SIGNED_IN, SIGNED_OUT, and
// TOKEN_REFRESHED notifications. The returned disposer removes the handler;
// calling it more than once is safe.
func (m *Manager) OnAuthStateChange(handler AuthStateHandler) Unsubscribe {
	if handler == nil {
		return func() {}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return func() {}
	}

	id := m.nextListener
	m.nextListener++
	m.listeners[id] = handler

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

func (m *Manager) install(session *Session, event AuthEventType) {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.session = session
	m.setStateLocked(StateValid)
	m.mu.Unlock()

	m.SetupAutoRefresh(session)
	m.emit(AuthStateChange{Event: event, Session: session})
}

func (m *Manager) emit(change AuthStateChange) {
	m.mu.Lock()
	handlers := make([]AuthStateHandler, 0, len(m.listeners))
	for _, handler := range m.listeners {
		handlers = append(handlers, handler)
	}
	m.mu.Unlock()

	for _, handler := range handlers {
		handler(change)
	}
}

func (m *Manager) setStateLocked(to SessionState) {
	if m.state == to {
		return
	}
	if !canTransitionSession(m.state, to) {
		m.logger.Warn("unexpected session state transition: %s -> %s", m.state, to)
	}
	m.state = to
}

func (m *Manager) cancelTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	// invalidate callbacks that fired but have not run yet
	m.timerGen++
}
