package agrobase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	auth "github.com/elpresidentey/agroallied-sub002"
	goerrors "github.com/goliatone/go-errors"
)

// Client is the REST client for the hosted auth API.
type Client struct {
	config Config
	http   *http.Client
	logger auth.Logger
	now    func() time.Time
}

var _ auth.Provider = (*Client)(nil)

// NewClient creates a provider client from the given config.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.ProjectURL) == "" {
		return nil, fmt.Errorf("agrobase: project URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("agrobase: API key is required")
	}

	return &Client{
		config: cfg,
		http:   cfg.httpClient(),
		logger: cfg.logger(),
		now:    time.Now,
	}, nil
}

// SignUp implements auth.Provider. Identities are created unverified; the
// provider emails the verification link with redirect_to as its target.
func (c *Client) SignUp(ctx context.Context, req auth.SignUpRequest) (*auth.ProviderUser, error) {
	endpoint := c.endpoint("/signup", url.Values{
		"redirect_to": []string{req.RedirectTo},
	})

	body := map[string]any{
		"email":    req.Email,
		"password": req.Password,
	}
	if len(req.Data) > 0 {
		body["data"] = req.Data
	}

	var out userResponse
	if err := c.post(ctx, endpoint, body, "", &out); err != nil {
		return nil, err
	}

	return out.toProviderUser(), nil
}

// SignInWithPassword implements auth.Provider.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error) {
	endpoint := c.endpoint("/token", url.Values{
		"grant_type": []string{"password"},
	})

	var out tokenResponse
	err := c.post(ctx, endpoint, map[string]any{
		"email":    email,
		"password": password,
	}, "", &out)
	if err != nil {
		return nil, err
	}

	return out.toSession(c.now()), nil
}

// RefreshSession implements auth.Provider.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*auth.Session, error) {
	endpoint := c.endpoint("/token", url.Values{
		"grant_type": []string{"refresh_token"},
	})

	var out tokenResponse
	err := c.post(ctx, endpoint, map[string]any{
		"refresh_token": refreshToken,
	}, "", &out)
	if err != nil {
		if isRejectedExchange(err) {
			return nil, auth.ErrTokenRefreshFailed
		}
		return nil, err
	}

	return out.toSession(c.now()), nil
}

// VerifyToken implements auth.Provider. An unknown or expired token maps to
// the session_expired outcome; no session is ever fabricated.
func (c *Client) VerifyToken(ctx context.Context, token string) (*auth.Session, error) {
	endpoint := c.endpoint("/verify", nil)

	var out tokenResponse
	err := c.post(ctx, endpoint, map[string]any{
		"type":  "signup",
		"token": token,
	}, "", &out)
	if err != nil {
		if isRejectedExchange(err) {
			return nil, auth.ErrSessionExpired
		}
		return nil, err
	}

	if out.AccessToken == "" {
		return nil, auth.ErrSessionExpired
	}

	return out.toSession(c.now()), nil
}

// ResendVerification implements auth.Provider.
func (c *Client) ResendVerification(ctx context.Context, email, redirectTo string) error {
	endpoint := c.endpoint("/resend", url.Values{
		"redirect_to": []string{redirectTo},
	})

	return c.post(ctx, endpoint, map[string]any{
		"type":  "signup",
		"email": email,
	}, "", nil)
}

// SignOut implements auth.Provider.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	endpoint := c.endpoint("/logout", nil)
	return c.post(ctx, endpoint, nil, accessToken, nil)
}

func (c *Client) endpoint(path string, query url.Values) string {
	endpoint := c.config.authURL() + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return endpoint
}

func (c *Client) post(ctx context.Context, endpoint string, body map[string]any, bearer string, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode provider request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, reader)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build provider request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.config.APIKey)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	res, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("provider request failed: %v", err)
		return auth.ErrProviderUnavailable.WithMetadata(map[string]any{
			"cause": err.Error(),
		})
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return auth.ErrProviderUnavailable.WithMetadata(map[string]any{
			"cause": err.Error(),
		})
	}

	if res.StatusCode >= 400 {
		return c.apiError(res.StatusCode, payload)
	}

	if out == nil || len(payload) == 0 {
		return nil
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode provider response")
	}

	return nil
}

// apiError maps a provider error payload into the shared taxonomy. The
// hosted API reports either {error, error_description} or {code, msg}.
func (c *Client) apiError(status int, payload []byte) error {
	var body struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		Code             any    `json:"code"`
		Msg              string `json:"msg"`
	}
	_ = json.Unmarshal(payload, &body)

	message := body.ErrorDescription
	if message == "" {
		message = body.Msg
	}
	if message == "" {
		message = body.Error
	}
	if message == "" {
		message = http.StatusText(status)
	}

	category := goerrors.CategoryOperation
	code := goerrors.CodeInternal
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		category = goerrors.CategoryAuth
		code = goerrors.CodeUnauthorized
	case status == http.StatusNotFound:
		category = goerrors.CategoryNotFound
		code = goerrors.CodeNotFound
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest:
		category = goerrors.CategoryBadInput
		code = goerrors.CodeBadRequest
	case status == http.StatusTooManyRequests:
		category = goerrors.CategoryRateLimit
		code = goerrors.CodeBadRequest
	}

	return goerrors.New(message, category).
		WithCode(code).
		WithMetadata(map[string]any{
			"status":         status,
			"provider_error": body.Error,
		})
}

// isRejectedExchange distinguishes a provider-side rejection (bad token,
// expired grant) from a transport failure.
func isRejectedExchange(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}

	if richErr.TextCode == auth.TextCodeProviderUnavailable {
		return false
	}

	switch richErr.Category {
	case goerrors.CategoryAuth, goerrors.CategoryBadInput, goerrors.CategoryNotFound:
		return true
	default:
		return false
	}
}

type userResponse struct {
	ID             string         `json:"id"`
	Email          string         `json:"email"`
	ConfirmedAt    string         `json:"confirmed_at"`
	EmailConfirmed string         `json:"email_confirmed_at"`
	UserMetadata   map[string]any `json:"user_metadata"`
}

func (u userResponse) toProviderUser() *auth.ProviderUser {
	return &auth.ProviderUser{
		ID:             u.ID,
		Email:          u.Email,
		EmailConfirmed: u.ConfirmedAt != "" || u.EmailConfirmed != "",
		Metadata:       u.UserMetadata,
	}
}

type tokenResponse struct {
	AccessToken  string        `json:"access_token"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    int64         `json:"expires_in"`
	ExpiresAt    int64         `json:"expires_at"`
	RefreshToken string        `json:"refresh_token"`
	User         *userResponse `json:"user"`
}

func (t tokenResponse) toSession(now time.Time) *auth.Session {
	session := &auth.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		IssuedAt:     &now,
	}

	switch {
	case t.ExpiresAt > 0:
		expiresAt := time.Unix(t.ExpiresAt, 0)
		session.ExpiresAt = &expiresAt
	case t.ExpiresIn > 0:
		expiresAt := now.Add(time.Duration(t.ExpiresIn) * time.Second)
		session.ExpiresAt = &expiresAt
	}

	if t.User != nil {
		session.UserID = t.User.ID
		session.Email = t.User.Email
		if len(t.User.UserMetadata) > 0 {
			session.Data = map[string]any{}
			for k, v := range t.User.UserMetadata {
				session.Data[k] = v
			}
		}
	}

	return session
}
