package auth_test

import (
	"context"
	"testing"
	"time"

	auth "github.com/elpresidentey/agroallied-sub002"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProvider implements auth.Provider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) SignUp(ctx context.Context, req auth.SignUpRequest) (*auth.ProviderUser, error) {
	args := m.Called(ctx, req)
	user, _ := args.Get(0).(*auth.ProviderUser)
	return user, args.Error(1)
}

func (m *MockProvider) SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error) {
	args := m.Called(ctx, email, password)
	session, _ := args.Get(0).(*auth.Session)
	return session, args.Error(1)
}

func (m *MockProvider) RefreshSession(ctx context.Context, refreshToken string) (*auth.Session, error) {
	args := m.Called(ctx, refreshToken)
	session, _ := args.Get(0).(*auth.Session)
	return session, args.Error(1)
}

func (m *MockProvider) VerifyToken(ctx context.Context, token string) (*auth.Session, error) {
	args := m.Called(ctx, token)
	session, _ := args.Get(0).(*auth.Session)
	return session, args.Error(1)
}

func (m *MockProvider) ResendVerification(ctx context.Context, email, redirectTo string) error {
	args := m.Called(ctx, email, redirectTo)
	return args.Error(0)
}

func (m *MockProvider) SignOut(ctx context.Context, accessToken string) error {
	args := m.Called(ctx, accessToken)
	return args.Error(0)
}

// mockConfig implements auth.Config
type mockConfig struct {
	providerURL  string
	apiKey       string
	siteOrigin   string
	callbackPath string
}

func newMockConfig() mockConfig {
	return mockConfig{
		providerURL:  "https://project.agrobase.test",
		apiKey:       "anon-key",
		siteOrigin:   "https://app.agrolink.test",
		callbackPath: "/auth/callback",
	}
}

func (c mockConfig) GetProviderURL() string  { return c.providerURL }
func (c mockConfig) GetAPIKey() string       { return c.apiKey }
func (c mockConfig) GetSiteOrigin() string   { return c.siteOrigin }
func (c mockConfig) GetCallbackPath() string { return c.callbackPath }

// testLogger discards output so tests stay quiet.
type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

// makeAccessToken builds a signed token carrying the claims the hydration
// path reads. Signature verification is not exercised here, only decoding.
func makeAccessToken(t *testing.T, sub, email string, expiresAt time.Time, metadata map[string]any) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"exp":   expiresAt.Unix(),
		"iat":   time.Now().Unix(),
	}
	if metadata != nil {
		claims["user_metadata"] = metadata
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	return signed
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func testSession(expiresAt time.Time) *auth.Session {
	return &auth.Session{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		TokenType:    "bearer",
		UserID:       "8f14e45f-ea11-4c3c-9c5e-000000000001",
		Email:        "person@example.com",
		ExpiresAt:    timePtr(expiresAt),
	}
}
