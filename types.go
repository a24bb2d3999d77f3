package auth

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Provider is the boundary to the hosted auth backend. Implementations map
// the provider's wire shapes into the explicit records below; the rest of the
// module depends only on this interface.
type Provider interface {
	// SignUp creates a new identity. Identities always start unverified;
	// the provider sends the verification email with RedirectTo as the
	// callback target.
	SignUp(ctx context.Context, req SignUpRequest) (*ProviderUser, error)

	// SignInWithPassword exchanges credentials for a session.
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)

	// RefreshSession exchanges a refresh token for a new session.
	RefreshSession(ctx context.Context, refreshToken string) (*Session, error)

	// VerifyToken exchanges an email-verification token for a session.
	// A nil session means the token is unknown or expired.
	VerifyToken(ctx context.Context, token string) (*Session, error)

	// ResendVerification asks the provider to resend the signup
	// verification email.
	ResendVerification(ctx context.Context, email, redirectTo string) error

	// SignOut revokes the session on the provider side.
	SignOut(ctx context.Context, accessToken string) error
}

// SignUpRequest is the identity creation payload sent to the provider.
type SignUpRequest struct {
	Email      string
	Password   string
	RedirectTo string
	// Data is attached as user metadata and round trips through the
	// verification flow (display name, requested role, phone).
	Data map[string]any
}

// ProviderUser is the provider's identity record.
type ProviderUser struct {
	ID             string
	Email          string
	EmailConfirmed bool
	Metadata       map[string]any
}

// Authenticator holds the business-level auth operations consumed by the
// marketplace UI.
type Authenticator interface {
	SignUp(ctx context.Context, payload SignUpPayload) (*SignUpResult, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
	ResendVerification(ctx context.Context, email string) error
	VerifyEmail(ctx context.Context, token string) (*Profile, error)

	// CurrentUser joins the active session to its profile row. It returns
	// nil both when no valid session exists and on transient lookup
	// failures: callers cannot tell the two apart and must treat both as
	// not signed in.
	CurrentUser(ctx context.Context) *CurrentUser
}

// CurrentUser is the profile row joined to the active session identity.
type CurrentUser struct {
	Profile *Profile `json:"profile"`
	Session *Session `json:"session"`
}

// Config holds auth options
type Config interface {
	GetProviderURL() string
	GetAPIKey() string
	GetSiteOrigin() string
	GetCallbackPath() string
}

// CallbackURL joins the running origin with the configured callback path.
// The provider redirects here after email verification.
func CallbackURL(cfg Config) string {
	origin := cfg.GetSiteOrigin()
	path := cfg.GetCallbackPath()
	if path == "" {
		path = "/auth/callback"
	}
	if path[0] != '/' {
		path = "/" + path
	}
	for len(origin) > 0 && origin[len(origin)-1] == '/' {
		origin = origin[:len(origin)-1]
	}
	return origin + path
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
