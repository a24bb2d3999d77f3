package agrobase

import (
	"net/http"
	"strings"
	"time"

	auth "github.com/elpresidentey/agroallied-sub002"
)

// Config configures the hosted-provider client.
type Config struct {
	// ProjectURL is the base URL of the hosted project,
	// e.g. https://xyzcompany.agrobase.co
	ProjectURL string

	// APIKey is the public (anon) API key sent with every request.
	APIKey string

	// HTTPClient overrides the default client.
	HTTPClient *http.Client

	// RequestTimeout applies when HTTPClient is nil (default 10s).
	RequestTimeout time.Duration

	// JWTSecret verifies HS256-signed access tokens (the project secret).
	JWTSecret string

	// JWKSEndpoint verifies asymmetrically signed access tokens via a
	// JWK Set; takes precedence over JWTSecret when set.
	JWKSEndpoint string

	// Issuer expected in access tokens (defaults to ProjectURL/auth/v1).
	Issuer string

	// Audience expected in access tokens.
	Audience []string

	// Logger overrides the default logger.
	Logger auth.Logger
}

func (c Config) authURL() string {
	base := strings.TrimRight(strings.TrimSpace(c.ProjectURL), "/")
	return base + "/auth/v1"
}

func (c Config) issuerURL() string {
	if c.Issuer != "" {
		return c.Issuer
	}
	return c.authURL()
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}

	timeout := c.RequestTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &http.Client{Timeout: timeout}
}

func (c Config) logger() auth.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return noopLogger{}
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
