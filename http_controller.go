package auth

import (
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// HTTPConfig configures the HTTP controller.
type HTTPConfig struct {
	// PathPrefix for routes (default: "/auth")
	PathPrefix string

	// CallbackPath is the route the provider redirects to after email
	// verification (default: "/callback", relative to PathPrefix)
	CallbackPath string

	// Debug dumps request payloads to stdout
	Debug bool

	// Logger overrides the default logger
	Logger Logger
}

// HTTPController exposes the auth operations as a JSON API for the
// client-rendered apps.
type HTTPController struct {
	auth   *Auther
	config HTTPConfig
	logger Logger
}

// NewHTTPController creates a new auth HTTP controller.
func NewHTTPController(auther *Auther, cfg HTTPConfig) *HTTPController {
	if cfg.PathPrefix == "" {
		cfg.PathPrefix = "/auth"
	}
	if cfg.CallbackPath == "" {
		cfg.CallbackPath = "/callback"
	}

	logger := cfg.Logger
	if logger == nil {
		logger = defLogger{}
	}

	return &HTTPController{
		auth:   auther,
		config: cfg,
		logger: logger,
	}
}

// RegisterRoutes registers the auth routes.
func (c *HTTPController) RegisterRoutes(group RouteRegistrar) {
	group.Post("/signup", c.SignUp)
	group.Post("/login", c.Login)
	group.Post("/logout", c.Logout)
	group.Post("/resend", c.ResendVerification)
	group.Get(c.config.CallbackPath, c.VerifyCallback)
	group.Get("/me", c.Me)
}

// SignUp registers a new identity; the response always asks the client to
// complete email verification.
func (c *HTTPController) SignUp(ctx router.Context) error {
	payload := SignUpPayload{}
	if err := ctx.Bind(&payload); err != nil {
		return c.errorJSON(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid sign up payload").
			WithCode(goerrors.CodeBadRequest))
	}

	if c.config.Debug {
		fmt.Println("======= AUTH SIGNUP ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("==========================")
	}

	result, err := c.auth.SignUp(ctx.Context(), payload)
	if err != nil {
		return c.errorJSON(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, result)
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Login exchanges credentials for a session.
func (c *HTTPController) Login(ctx router.Context) error {
	payload := LoginRequest{}
	if err := ctx.Bind(&payload); err != nil {
		return c.errorJSON(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid login payload").
			WithCode(goerrors.CodeBadRequest))
	}

	session, err := c.auth.SignIn(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return c.errorJSON(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"session": session,
	})
}

// Logout clears the session. Always succeeds from the client's point of
// view.
func (c *HTTPController) Logout(ctx router.Context) error {
	_ = c.auth.SignOut(ctx.Context())
	return ctx.JSON(router.StatusOK, map[string]any{
		"signed_out": true,
	})
}

// ResendRequest payload
type ResendRequest struct {
	Email string `form:"email" json:"email"`
}

// ResendVerification re-sends the signup verification email.
func (c *HTTPController) ResendVerification(ctx router.Context) error {
	payload := ResendRequest{}
	if err := ctx.Bind(&payload); err != nil {
		return c.errorJSON(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid resend payload").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := c.auth.ResendVerification(ctx.Context(), payload.Email); err != nil {
		return c.errorJSON(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"sent": true,
	})
}

// VerifyCallback is the provider's email-verification redirect target. It
// exchanges the token, provisions the profile, and returns it.
func (c *HTTPController) VerifyCallback(ctx router.Context) error {
	token := ctx.Query("token")
	if token == "" {
		token = ctx.Query("token_hash")
	}

	profile, err := c.auth.VerifyEmail(ctx.Context(), token)
	if err != nil {
		return c.errorJSON(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"profile": profile,
	})
}

// Me resolves the current user. Anonymous visitors get a 200 with a nil
// user: not being signed in is not an error.
func (c *HTTPController) Me(ctx router.Context) error {
	current := c.auth.CurrentUser(ctx.Context())
	return ctx.JSON(router.StatusOK, map[string]any{
		"user":             current,
		"is_authenticated": current != nil,
	})
}

func (c *HTTPController) errorJSON(ctx router.Context, err error) error {
	c.logger.Error("auth controller error: %v", err)

	status := router.StatusInternalServerError
	code := "internal_error"

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if richErr.TextCode != "" {
			code = richErr.TextCode
		}
		status = statusForCategory(richErr.Category)
	}

	return ctx.JSON(status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": UserMessage(err),
		},
	})
}

func statusForCategory(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return router.StatusBadRequest
	case goerrors.CategoryAuth:
		return router.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return router.StatusForbidden
	case goerrors.CategoryNotFound:
		return router.StatusNotFound
	case goerrors.CategoryConflict:
		return router.StatusConflict
	default:
		return router.StatusInternalServerError
	}
}
