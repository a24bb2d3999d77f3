package auth

import (
	"context"
	stderrors "errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is used to parse contact numbers entered without a
// country prefix.
var DefaultPhoneRegion = "NG"

// SignUpPayload is the self-service registration payload.
type SignUpPayload struct {
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Name     string   `json:"name"`
	Phone    string   `json:"phone,omitempty"`
	Role     UserRole `json:"role"`
}

// Validate will run validation rules
func (p SignUpPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&p.Password, validation.Required, validation.Length(8, 72)),
		validation.Field(&p.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Role, validation.Required, validation.By(validateSelfServiceRole)),
		validation.Field(&p.Phone, validation.By(validatePhone)),
	)
}

func validateSelfServiceRole(value any) error {
	raw, _ := value.(string)
	role, ok := ParseRole(raw)
	if !ok || !IsSelfServiceRole(role) {
		return stderrors.New("must be buyer or seller")
	}
	return nil
}

func validatePhone(value any) error {
	raw, _ := value.(string)
	if raw == "" {
		return nil
	}

	num, err := phonenumbers.Parse(raw, DefaultPhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return stderrors.New("must be a valid phone number")
	}

	return nil
}

// SignUpResult reports a successful registration. The identity exists on
// the provider side but is unverified: no profile row and no user object
// until the verification callback completes.
type SignUpResult struct {
	NeedsVerification bool   `json:"needs_verification"`
	Email             string `json:"email"`
}

// Auther is the business-level façade over the provider and the session
// Manager.
type Auther struct {
	provider    Provider
	sessions    *Manager
	repo        RepositoryManager
	provision   *ProvisionProfileHandler
	callbackURL string
	logger      Logger
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider Provider, sessions *Manager, repo RepositoryManager, cfg Config) *Auther {
	return &Auther{
		provider:    provider,
		sessions:    sessions,
		repo:        repo,
		provision:   NewProvisionProfileHandler(repo),
		callbackURL: CallbackURL(cfg),
		logger:      defLogger{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Sessions exposes the session Manager for consumers that need event
// subscriptions or teardown.
func (s *Auther) Sessions() *Manager {
	return s.sessions
}

// SignUp registers a new identity. The identity is always created
// unverified regardless of role; profile creation is deferred to
// VerifyEmail.
func (s *Auther) SignUp(ctx context.Context, payload SignUpPayload) (*SignUpResult, error) {
	payload.Email = strings.TrimSpace(payload.Email)
	if payload.Role == "" {
		payload.Role = RoleBuyer
	}

	if err := payload.Validate(); err != nil {
		if isEmailValidationError(err) {
			return nil, ErrInvalidEmail
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "please review your sign up details").
			WithCode(goerrors.CodeBadRequest)
	}

	_, err := s.provider.SignUp(ctx, SignUpRequest{
		Email:      payload.Email,
		Password:   payload.Password,
		RedirectTo: s.callbackURL,
		Data: map[string]any{
			"name":  payload.Name,
			"role":  payload.Role,
			"phone": payload.Phone,
		},
	})
	if err != nil {
		s.logger.Error("sign up rejected: %v", err)
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "we could not create your account").
			WithCode(goerrors.CodeBadRequest)
	}

	return &SignUpResult{
		NeedsVerification: true,
		Email:             payload.Email,
	}, nil
}

// ResendVerification asks the provider to resend the signup verification
// email, pointing its redirect at the application callback route.
func (s *Auther) ResendVerification(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)

	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return ErrInvalidEmail
	}

	if err := s.provider.ResendVerification(ctx, email, s.callbackURL); err != nil {
		s.logger.Error("resend verification failed: %v", err)
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryOperation, "we could not resend the verification email")
	}

	return nil
}

// VerifyEmail exchanges a verification token for a session, provisions the
// profile row (buyers approved, sellers pending review), and installs the
// session. An unknown or expired token fails with session_expired and never
// creates a profile row.
func (s *Auther) VerifyEmail(ctx context.Context, token string) (*Profile, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrSessionExpired
	}

	session, err := s.provider.VerifyToken(ctx, token)
	if err != nil {
		s.logger.Error("verification token exchange failed: %v", err)
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, ErrSessionExpired
	}

	if session == nil || session.AccessToken == "" {
		return nil, ErrSessionExpired
	}

	if err := session.HydrateFromAccessToken(); err != nil {
		s.logger.Warn("verified session claims: %v", err)
	}

	role, _ := session.RoleClaim()
	profile, err := s.provision.Execute(ctx, ProvisionProfileMessage{
		IdentityID:  session.UserID,
		Email:       session.Email,
		DisplayName: session.DisplayNameClaim(),
		Phone:       phoneClaim(session),
		Role:        role,
	})
	if err != nil {
		return nil, err
	}

	s.sessions.SetSession(session)

	return profile, nil
}

// SignIn delegates to the session Manager.
func (s *Auther) SignIn(ctx context.Context, email, password string) (*Session, error) {
	return s.sessions.SignIn(ctx, email, password)
}

// SignOut clears the session. Local teardown is unconditional, so sign-out
// never reports an error even when the remote call fails.
func (s *Auther) SignOut(ctx context.Context) error {
	s.sessions.ClearSession(ctx)
	return nil
}

// CurrentUser returns the profile row joined to the active session, or nil
// when no valid session exists. Transient lookup failures degrade to nil:
// the caller cannot distinguish them from "not signed in" and must treat
// both the same.
func (s *Auther) CurrentUser(ctx context.Context) *CurrentUser {
	session := s.sessions.GetSession(ctx)
	if !s.sessions.IsSessionValid(session) {
		return nil
	}

	profile, err := s.repo.Profiles().GetByIdentityID(ctx, session.UserID)
	if err != nil {
		s.logger.Warn("current user profile lookup failed: %v", err)
		return nil
	}

	return &CurrentUser{
		Profile: profile,
		Session: session,
	}
}

// ApproveSeller unlocks a pending seller. The caller must hold an admin
// session.
func (s *Auther) ApproveSeller(ctx context.Context, sellerID uuid.UUID) error {
	current := s.CurrentUser(ctx)
	if current == nil || current.Profile == nil || !CanModerate(current.Profile.Role) {
		return goerrors.New("only admins can approve sellers", goerrors.CategoryAuthz).
			WithCode(goerrors.CodeForbidden)
	}

	return s.repo.Profiles().ApproveSeller(ctx, sellerID)
}

func isEmailValidationError(err error) bool {
	var ve validation.Errors
	if !stderrors.As(err, &ve) {
		return false
	}

	for key := range ve {
		if strings.EqualFold(key, "email") {
			return true
		}
	}

	return false
}

func phoneClaim(session *Session) string {
	if session == nil || session.Data == nil {
		return ""
	}
	if raw, ok := session.Data["phone"]; ok {
		if phone, ok := raw.(string); ok {
			return phone
		}
	}
	return ""
}
