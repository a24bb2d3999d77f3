package agrobase_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	auth "github.com/elpresidentey/agroallied-sub002"
	"github.com/elpresidentey/agroallied-sub002/provider/agrobase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	path   string
	query  map[string]string
	apiKey string
	bearer string
	body   map[string]any
}

func newTestServer(t *testing.T, status int, response string) (*httptest.Server, *recordedRequest) {
	t.Helper()

	recorded := &recordedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorded.path = r.URL.Path
		recorded.query = map[string]string{}
		for key, values := range r.URL.Query() {
			recorded.query[key] = values[0]
		}
		recorded.apiKey = r.Header.Get("apikey")
		recorded.bearer = r.Header.Get("Authorization")

		recorded.body = map[string]any{}
		_ = json.NewDecoder(r.Body).Decode(&recorded.body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)

	return server, recorded
}

func newTestClient(t *testing.T, server *httptest.Server) *agrobase.Client {
	t.Helper()

	client, err := agrobase.NewClient(agrobase.Config{
		ProjectURL: server.URL,
		APIKey:     "anon-key",
	})
	require.NoError(t, err)

	return client
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := agrobase.NewClient(agrobase.Config{APIKey: "k"})
	require.Error(t, err)

	_, err = agrobase.NewClient(agrobase.Config{ProjectURL: "https://x.test"})
	require.Error(t, err)
}

func TestSignUpSendsMetadataAndRedirect(t *testing.T) {
	server, recorded := newTestServer(t, http.StatusOK, `{
		"id": "8f14e45f-ea11-4c3c-9c5e-000000000001",
		"email": "person@example.com",
		"user_metadata": {"name": "Ada Obi"}
	}`)
	client := newTestClient(t, server)

	user, err := client.SignUp(context.Background(), auth.SignUpRequest{
		Email:      "person@example.com",
		Password:   "secret123",
		RedirectTo: "https://app.test/auth/callback",
		Data:       map[string]any{"role": "buyer"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/auth/v1/signup", recorded.path)
	assert.Equal(t, "https://app.test/auth/callback", recorded.query["redirect_to"])
	assert.Equal(t, "anon-key", recorded.apiKey)
	assert.Equal(t, "person@example.com", recorded.body["email"])
	assert.Equal(t, map[string]any{"role": "buyer"}, recorded.body["data"])

	assert.Equal(t, "8f14e45f-ea11-4c3c-9c5e-000000000001", user.ID)
	assert.False(t, user.EmailConfirmed)
	assert.Equal(t, "Ada Obi", user.Metadata["name"])
}

func TestSignInWithPassword(t *testing.T) {
	server, recorded := newTestServer(t, http.StatusOK, `{
		"access_token": "at",
		"refresh_token": "rt",
		"token_type": "bearer",
		"expires_in": 3600,
		"user": {"id": "u1", "email": "person@example.com"}
	}`)
	client := newTestClient(t, server)

	session, err := client.SignInWithPassword(context.Background(), "person@example.com", "secret123")
	require.NoError(t, err)

	assert.Equal(t, "/auth/v1/token", recorded.path)
	assert.Equal(t, "password", recorded.query["grant_type"])

	assert.Equal(t, "at", session.AccessToken)
	assert.Equal(t, "rt", session.RefreshToken)
	assert.Equal(t, "u1", session.UserID)
	require.NotNil(t, session.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *session.ExpiresAt, time.Minute)
}

func TestRefreshSessionMapsRejectionToRefreshFailed(t *testing.T) {
	server, recorded := newTestServer(t, http.StatusBadRequest, `{
		"error": "invalid_grant",
		"error_description": "Invalid Refresh Token: Already Used"
	}`)
	client := newTestClient(t, server)

	session, err := client.RefreshSession(context.Background(), "stale-rt")
	require.Error(t, err)
	assert.Nil(t, session)
	assert.True(t, auth.IsTokenRefreshFailedError(err))

	assert.Equal(t, "refresh_token", recorded.query["grant_type"])
	assert.Equal(t, "stale-rt", recorded.body["refresh_token"])
}

func TestRefreshSessionTransportFailure(t *testing.T) {
	server, _ := newTestServer(t, http.StatusOK, `{}`)
	client := newTestClient(t, server)
	server.Close()

	_, err := client.RefreshSession(context.Background(), "rt")
	require.Error(t, err)
	assert.False(t, auth.IsTokenRefreshFailedError(err))
}

func TestVerifyTokenExpired(t *testing.T) {
	server, _ := newTestServer(t, http.StatusUnauthorized, `{
		"code": 401,
		"msg": "Token has expired or is invalid"
	}`)
	client := newTestClient(t, server)

	session, err := client.VerifyToken(context.Background(), "stale")
	require.Error(t, err)
	assert.Nil(t, session)
	assert.True(t, auth.IsSessionExpiredError(err))
}

func TestVerifyTokenExchangesSession(t *testing.T) {
	server, recorded := newTestServer(t, http.StatusOK, `{
		"access_token": "at",
		"refresh_token": "rt",
		"expires_in": 3600
	}`)
	client := newTestClient(t, server)

	session, err := client.VerifyToken(context.Background(), "verify-me")
	require.NoError(t, err)

	assert.Equal(t, "/auth/v1/verify", recorded.path)
	assert.Equal(t, "signup", recorded.body["type"])
	assert.Equal(t, "verify-me", recorded.body["token"])
	assert.Equal(t, "at", session.AccessToken)
}

func TestResendVerification(t *testing.T) {
	server, recorded := newTestServer(t, http.StatusOK, `{}`)
	client := newTestClient(t, server)

	err := client.ResendVerification(context.Background(), "person@example.com", "https://app.test/cb")
	require.NoError(t, err)

	assert.Equal(t, "/auth/v1/resend", recorded.path)
	assert.Equal(t, "signup", recorded.body["type"])
	assert.Equal(t, "person@example.com", recorded.body["email"])
	assert.Equal(t, "https://app.test/cb", recorded.query["redirect_to"])
}

func TestSignOutSendsBearer(t *testing.T) {
	server, recorded := newTestServer(t, http.StatusNoContent, ``)
	client := newTestClient(t, server)

	require.NoError(t, client.SignOut(context.Background(), "access-token"))

	assert.Equal(t, "/auth/v1/logout", recorded.path)
	assert.Equal(t, "Bearer access-token", recorded.bearer)
}
