package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ProvisionProfileMessage carries the verified identity attributes that
// become the profile row. It is only ever built from a session the provider
// issued after email verification; sign-up alone never produces one.
type ProvisionProfileMessage struct {
	IdentityID  string `json:"identity_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Phone       string `json:"phone"`
	Role        string `json:"role"`
}

func (e ProvisionProfileMessage) Type() string { return "profile.provision" }

type ProvisionProfileHandler struct {
	repo RepositoryManager
}

func NewProvisionProfileHandler(repo RepositoryManager) *ProvisionProfileHandler {
	return &ProvisionProfileHandler{repo: repo}
}

func (h *ProvisionProfileHandler) Execute(ctx context.Context, event ProvisionProfileMessage) (*Profile, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during profile provisioning",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ProvisionProfileHandler) execute(ctx context.Context, event ProvisionProfileMessage) (*Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	identityID, err := uuid.Parse(event.IdentityID)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid identity id").
			WithCode(goerrors.CodeBadRequest)
	}

	role := RoleBuyer
	if parsed, ok := ParseRole(event.Role); ok && IsSelfServiceRole(parsed) {
		role = parsed
	}

	profile := &Profile{
		ID:          identityID,
		Email:       event.Email,
		DisplayName: event.DisplayName,
		Phone:       event.Phone,
		Role:        role,
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var txErr error
		if profile, txErr = h.repo.Profiles().ProvisionTx(ctx, tx, profile); txErr != nil {
			return goerrors.Wrap(txErr, goerrors.CategoryConflict, "could not provision profile")
		}
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "profile provisioning transaction failed")
	}

	return profile, nil
}
