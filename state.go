package auth

// SessionState tracks where a Manager instance sits in the session
// lifecycle.
type SessionState string

const (
	// StateIdle means no session is installed.
	StateIdle SessionState = "idle"
	// StateValid means a session is installed and inside its validity
	// window; the proactive refresh timer may be armed.
	StateValid SessionState = "valid"
	// StateRefreshing means a refresh-token exchange is in flight.
	StateRefreshing SessionState = "refreshing"
	// StateInvalid means refresh failed or expiry passed without a
	// successful refresh. The only way forward is a fresh sign-in.
	StateInvalid SessionState = "invalid"
)

// sessionTransitions is the allowed lifecycle graph. Idle is re-entered
// from any state on sign-out, so it is not listed as a target here.
var sessionTransitions = map[SessionState]map[SessionState]struct{}{
	StateIdle: {
		StateValid:      {},
		StateRefreshing: {},
	},
	StateValid: {
		StateRefreshing: {},
		StateInvalid:    {},
	},
	StateRefreshing: {
		StateValid:   {},
		StateInvalid: {},
	},
	StateInvalid: {
		StateValid: {},
	},
}

func canTransitionSession(from, to SessionState) bool {
	if to == StateIdle {
		return true
	}
	if allowed, ok := sessionTransitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

// AuthEventType tags an auth-state-change notification.
type AuthEventType string

const (
	AuthEventSignedIn       AuthEventType = "SIGNED_IN"
	AuthEventSignedOut      AuthEventType = "SIGNED_OUT"
	AuthEventTokenRefreshed AuthEventType = "TOKEN_REFRESHED"
)

// AuthStateChange is delivered to subscribed handlers. Session is nil for
// SIGNED_OUT.
type AuthStateChange struct {
	Event   AuthEventType
	Session *Session
}

// AuthStateHandler receives auth-state-change notifications.
type AuthStateHandler func(change AuthStateChange)

// Unsubscribe removes a previously registered handler. Safe to call more
// than once.
type Unsubscribe func()

// AuthStateNotifier is the subscription side of the session manager,
// consumed by UI-facing state trackers.
type AuthStateNotifier interface {
	OnAuthStateChange(handler AuthStateHandler) Unsubscribe
}
