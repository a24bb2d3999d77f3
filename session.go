package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// SessionValidityBuffer is the safety margin before expiry inside which
	// a session is already considered invalid and must not authorize
	// requests.
	SessionValidityBuffer = 30 * time.Second

	// RefreshLeadTime is how far ahead of expiry the proactive refresh
	// fires.
	RefreshLeadTime = 5 * time.Minute
)

// Session is the access/refresh token pair plus expiry and identity claims
// issued by the provider. Sessions are never mutated in place: a refresh
// produces a new record.
type Session struct {
	AccessToken  string         `json:"access_token,omitempty"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	TokenType    string         `json:"token_type,omitempty"`
	UserID       string         `json:"user_id,omitempty"`
	Email        string         `json:"email,omitempty"`
	IssuedAt     *time.Time     `json:"issued_at,omitempty"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

func (s *Session) GetUserUUID() (uuid.UUID, error) {
	if s == nil {
		return uuid.Nil, ErrSessionExpired
	}
	return uuid.Parse(s.UserID)
}

// ValidAt reports whether the session may authorize a request at the given
// instant. Nil sessions, missing access tokens, missing expiry, elapsed
// expiry, and expiry inside the safety buffer are all invalid.
func (s *Session) ValidAt(now time.Time) bool {
	if s == nil {
		return false
	}
	if s.AccessToken == "" {
		return false
	}
	if s.ExpiresAt == nil {
		return false
	}
	return s.ExpiresAt.Sub(now) >= SessionValidityBuffer
}

// ExpiresIn returns the duration until expiry; zero when expiry is unknown
// or already elapsed.
func (s *Session) ExpiresIn(now time.Time) time.Duration {
	if s == nil || s.ExpiresAt == nil {
		return 0
	}
	d := s.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// RoleClaim returns the role carried in the session's identity claims.
func (s *Session) RoleClaim() (UserRole, bool) {
	if s == nil || s.Data == nil {
		return "", false
	}

	if raw, ok := s.Data["role"]; ok {
		if role, ok := raw.(string); ok {
			if parsed, valid := ParseRole(role); valid {
				return parsed, true
			}
		}
	}

	return "", false
}

// DisplayNameClaim returns the display name carried in the session's
// identity claims.
func (s *Session) DisplayNameClaim() string {
	if s == nil || s.Data == nil {
		return ""
	}

	for _, key := range []string{"name", "display_name", "full_name"} {
		if raw, ok := s.Data[key]; ok {
			if name, ok := raw.(string); ok && name != "" {
				return name
			}
		}
	}

	return ""
}

func (s Session) String() string {
	expiresAt := "<nil>"
	if s.ExpiresAt != nil {
		expiresAt = s.ExpiresAt.Format(time.RFC1123)
	}
	return fmt.Sprintf(
		"user=%s email=%s exp=%s refreshable=%t",
		s.UserID,
		s.Email,
		expiresAt,
		s.RefreshToken != "",
	)
}

// HydrateFromAccessToken backfills identity and expiry fields from the
// access token's JWT claims when the provider response omitted them. The
// token is decoded without signature verification: the session came from the
// provider over an authenticated channel, and authorization checks verify
// signatures separately.
func (s *Session) HydrateFromAccessToken() error {
	if s == nil || s.AccessToken == "" {
		return ErrUnableToParseClaims
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(s.AccessToken, claims); err != nil {
		return ErrUnableToParseClaims
	}

	if s.UserID == "" {
		if sub, err := claims.GetSubject(); err == nil {
			s.UserID = sub
		}
	}

	if s.Email == "" {
		if email, ok := claims["email"].(string); ok {
			s.Email = email
		}
	}

	if s.ExpiresAt == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			t := exp.Time
			s.ExpiresAt = &t
		}
	}

	if s.IssuedAt == nil {
		if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
			t := iat.Time
			s.IssuedAt = &t
		}
	}

	if s.Data == nil {
		s.Data = map[string]any{}
	}
	if meta, ok := claims["user_metadata"].(map[string]any); ok {
		for k, v := range meta {
			if _, exists := s.Data[k]; !exists {
				s.Data[k] = v
			}
		}
	}

	return nil
}
