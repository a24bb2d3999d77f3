package auth

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidEmail        = "invalid_email"
	TextCodeSessionExpired      = "session_expired"
	TextCodeTokenRefreshFailed  = "token_refresh_failed"
	TextCodeProviderUnavailable = "provider_unavailable"
	TextCodeManagerDestroyed    = "session_manager_destroyed"
)

// ErrInvalidEmail is returned for malformed or empty email input.
var ErrInvalidEmail = errors.New("please provide a valid email address", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidEmail).
	WithCode(errors.CodeBadRequest)

// ErrSessionExpired is returned when a verification token resolves to no
// session: the token is unknown, already used, or past its validity window.
var ErrSessionExpired = errors.New("your verification link has expired, request a new one", errors.CategoryAuth).
	WithTextCode(TextCodeSessionExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenRefreshFailed is returned when the provider rejects a refresh-token
// exchange. The caller must re-authenticate.
var ErrTokenRefreshFailed = errors.New("your session could not be renewed, please sign in again", errors.CategoryAuth).
	WithTextCode(TextCodeTokenRefreshFailed).
	WithCode(errors.CodeUnauthorized)

// ErrProviderUnavailable wraps transport-level failures talking to the
// hosted auth backend.
var ErrProviderUnavailable = errors.New("authentication service is unavailable, try again shortly", errors.CategoryOperation).
	WithTextCode(TextCodeProviderUnavailable).
	WithCode(errors.CodeInternal)

// ErrManagerDestroyed is returned when an operation races a torn-down
// session manager.
var ErrManagerDestroyed = errors.New("session manager has been destroyed", errors.CategoryOperation).
	WithTextCode(TextCodeManagerDestroyed).
	WithCode(errors.CodeInternal)

// ErrUnableToParseClaims means the access token payload could not be
// decoded into identity claims.
var ErrUnableToParseClaims = errors.New("unable to parse session claims", errors.CategoryInternal).
	WithCode(errors.CodeInternal)

// IsInvalidEmailError checks for the invalid_email outcome.
func IsInvalidEmailError(err error) bool {
	return hasTextCode(err, TextCodeInvalidEmail)
}

// IsSessionExpiredError checks for the session_expired outcome.
func IsSessionExpiredError(err error) bool {
	return hasTextCode(err, TextCodeSessionExpired)
}

// IsTokenRefreshFailedError checks for the token_refresh_failed outcome.
func IsTokenRefreshFailedError(err error) bool {
	return hasTextCode(err, TextCodeTokenRefreshFailed)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == code
	}

	return false
}

// UserMessage extracts the user-displayable message for an auth outcome.
// Non-structured errors degrade to a generic message so provider internals
// never leak to the UI.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.Message != "" {
		return richErr.Message
	}

	return "something went wrong, please try again"
}

// IsRefreshTokenRejection reports whether a provider error message indicates
// the refresh token itself was rejected rather than a transport failure.
func IsRefreshTokenRejection(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "refresh token") ||
		strings.Contains(msg, "invalid_grant")
}
