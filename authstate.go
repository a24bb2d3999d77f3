package auth

import (
	"context"
	"sync"
)

// AuthState is the snapshot the UI tree renders from.
type AuthState struct {
	User            *CurrentUser `json:"user"`
	IsAuthenticated bool         `json:"is_authenticated"`
	Loading         bool         `json:"loading"`
	Initializing    bool         `json:"initializing"`
}

// StateTracker mirrors auth-state-change events into application-visible
// state. It subscribes for the lifetime of the mounted consumer and
// unsubscribes on Stop; results arriving after Stop are discarded.
type StateTracker struct {
	auth     Authenticator
	notifier AuthStateNotifier
	logger   Logger
	onChange func(AuthState)

	mu          sync.Mutex
	state       AuthState
	unsubscribe Unsubscribe
	stopped     bool
	gen         uint64
}

// TrackerOption customizes StateTracker construction.
type TrackerOption func(*StateTracker)

// WithTrackerLogger overrides the default logger.
func WithTrackerLogger(logger Logger) TrackerOption {
	return func(t *StateTracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithTrackerOnChange registers a callback invoked with every new snapshot.
func WithTrackerOnChange(fn func(AuthState)) TrackerOption {
	return func(t *StateTracker) {
		t.onChange = fn
	}
}

// NewStateTracker wires an Authenticator and its event source into a
// tracker. Call Start to bootstrap and subscribe.
func NewStateTracker(auth Authenticator, notifier AuthStateNotifier, opts ...TrackerOption) *StateTracker {
	t := &StateTracker{
		auth:     auth,
		notifier: notifier,
		logger:   defLogger{},
		state: AuthState{
			Initializing: true,
			Loading:      true,
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}

	return t
}

// Start subscribes to auth events and performs the first session
// resolution. Initializing stays true until that resolution completes.
func (t *StateTracker) Start(ctx context.Context) {
	t.mu.Lock()
	if t.stopped || t.unsubscribe != nil {
		t.mu.Unlock()
		return
	}
	// subscribe before resolving so no event lands in the gap
	t.unsubscribe = t.notifier.OnAuthStateChange(t.handleEvent)
	t.mu.Unlock()

	t.resolve(ctx)
}

// Stop unsubscribes and freezes the tracker. Idempotent.
func (t *StateTracker) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.gen++
	unsubscribe := t.unsubscribe
	t.unsubscribe = nil
	t.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Snapshot returns the current state.
func (t *StateTracker) Snapshot() AuthState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *StateTracker) handleEvent(change AuthStateChange) {
	if change.Event == AuthEventSignedOut || change.Session == nil {
		// signed out: no profile lookup, drop straight to anonymous
		t.apply(nil)
		return
	}

	t.resolve(context.Background())
}

func (t *StateTracker) resolve(ctx context.Context) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.state.Loading = true
	gen := t.gen
	t.mu.Unlock()

	user := t.auth.CurrentUser(ctx)

	t.mu.Lock()
	if t.stopped || gen != t.gen {
		// a Stop raced the lookup, discard the late result
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	t.apply(user)
}

func (t *StateTracker) apply(user *CurrentUser) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.state = AuthState{
		User:            user,
		IsAuthenticated: user != nil,
	}
	snapshot := t.state
	onChange := t.onChange
	t.mu.Unlock()

	if onChange != nil {
		onChange(snapshot)
	}
}
