package agrobase

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	auth "github.com/elpresidentey/agroallied-sub002"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenValidator verifies access tokens issued by the hosted auth API.
// Projects sign tokens either symmetrically with the project JWT secret
// (HS256) or asymmetrically via a published JWK Set.
type TokenValidator struct {
	config  Config
	parser  *jwt.Parser
	keyFunc jwt.Keyfunc
	jwks    *keyfunc.JWKS
}

// NewTokenValidator creates a validator from the config. JWKSEndpoint takes
// precedence over JWTSecret.
func NewTokenValidator(cfg Config) (*TokenValidator, error) {
	v := &TokenValidator{config: cfg}

	switch {
	case cfg.JWKSEndpoint != "":
		jwks, err := keyfunc.Get(cfg.JWKSEndpoint, keyfunc.Options{
			RefreshInterval:   time.Hour,
			RefreshRateLimit:  time.Minute * 5,
			RefreshTimeout:    time.Second * 10,
			RefreshUnknownKID: true,
			RefreshErrorHandler: func(err error) {
				cfg.logger().Warn("background JWK set refresh failed: %v", err)
			},
		})
		if err != nil {
			return nil, fmt.Errorf("agrobase: failed to get JWK set: %w", err)
		}
		v.jwks = jwks
		v.keyFunc = jwks.Keyfunc
		v.parser = jwt.NewParser(
			jwt.WithValidMethods([]string{"RS256", "ES256"}),
			jwt.WithIssuer(cfg.issuerURL()),
		)
	case cfg.JWTSecret != "":
		secret := []byte(cfg.JWTSecret)
		v.keyFunc = func(t *jwt.Token) (any, error) {
			return secret, nil
		}
		v.parser = jwt.NewParser(
			jwt.WithValidMethods([]string{"HS256"}),
			jwt.WithIssuer(cfg.issuerURL()),
		)
	default:
		return nil, fmt.Errorf("agrobase: JWT secret or JWKS endpoint is required")
	}

	return v, nil
}

// Validate parses and verifies the raw access token, returning its claims.
func (v *TokenValidator) Validate(tokenString string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(tokenString, claims, v.keyFunc)
	if err != nil {
		return nil, normalizeValidationError(err)
	}
	return claims, nil
}

// Close releases the background JWK-set refresh goroutine, if any.
func (v *TokenValidator) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

func normalizeValidationError(err error) error {
	if err == nil {
		return nil
	}

	if stderrors.Is(err, jwt.ErrTokenExpired) {
		clone := auth.ErrSessionExpired.Clone()
		clone.Source = err
		return clone.WithMetadata(map[string]any{
			"cause": err.Error(),
		})
	}

	return goerrors.Wrap(err, goerrors.CategoryAuth, "invalid access token").
		WithCode(goerrors.CodeUnauthorized)
}
