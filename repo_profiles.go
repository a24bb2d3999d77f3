package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ErrProfileNotProvisioned is returned when an operation expects a profile
// row that email verification has not created yet.
var ErrProfileNotProvisioned = goerrors.New("profile has not been provisioned", goerrors.CategoryNotFound).
	WithTextCode("profile_not_provisioned").
	WithCode(goerrors.CodeNotFound)

// ErrVerificationNotPending is returned when approving a seller whose
// verification is not pending review; approved is a terminal status.
var ErrVerificationNotPending = goerrors.New("seller verification is not pending review", goerrors.CategoryConflict).
	WithTextCode("verification_not_pending").
	WithCode(goerrors.CodeConflict)

var ApproveSellerSQL = `UPDATE "profiles" AS "prf"
SET
	"verification_status" = 'approved',
	"approved_at" = ?
WHERE
	"prf"."deleted_at" IS NULL
AND "prf"."verification_status" = 'pending'
AND "prf"."user_role" = 'seller'
AND (
	"prf"."id" = ?
) RETURNING *;`

type Profiles interface {
	repository.Repository[*Profile]

	GetByIdentityID(ctx context.Context, identityID string) (*Profile, error)
	GetByIdentityIDTx(ctx context.Context, tx bun.IDB, identityID string) (*Profile, error)

	Provision(ctx context.Context, record *Profile) (*Profile, error)
	ProvisionTx(ctx context.Context, tx bun.IDB, record *Profile) (*Profile, error)

	ApproveSeller(ctx context.Context, id uuid.UUID) error
	ApproveSellerTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type profiles struct {
	repository.Repository[*Profile]
	db *bun.DB
}

var (
	_ Profiles                        = (*profiles)(nil)
	_ repository.Repository[*Profile] = (*profiles)(nil)
)

func NewProfilesRepository(db *bun.DB) Profiles {
	repo := repository.NewRepository[*Profile](db, repository.ModelHandlers[*Profile]{
		NewRecord: func() *Profile { return &Profile{} },
		GetID: func(p *Profile) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Profile, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &profiles{
		Repository: repo,
		db:         db,
	}
}

func (a *profiles) GetByIdentityID(ctx context.Context, identityID string) (*Profile, error) {
	return a.GetByIdentityIDTx(ctx, a.db, identityID)
}

func (a *profiles) GetByIdentityIDTx(ctx context.Context, tx bun.IDB, identityID string) (*Profile, error) {
	id, err := uuid.Parse(identityID)
	if err != nil {
		return nil, ErrProfileNotProvisioned.WithMetadata(map[string]any{
			"identity_id": identityID,
		})
	}

	record := &Profile{}
	err = tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().WithMetadata(map[string]any{
				"identity_id": identityID,
			})
		}
		return nil, err
	}

	return record, nil
}

func (a *profiles) Provision(ctx context.Context, record *Profile) (*Profile, error) {
	return a.ProvisionTx(ctx, a.db, record)
}

// ProvisionTx creates the profile row for a verified identity. A re-delivered
// verification callback finds the existing row and updates it instead of
// duplicating, so provisioning is idempotent.
func (a *profiles) ProvisionTx(ctx context.Context, tx bun.IDB, record *Profile) (*Profile, error) {
	if record == nil || record.ID == uuid.Nil {
		return nil, goerrors.New("profile requires the provider identity id", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	prepareProfileDefaults(record)

	existing, err := a.GetByIdentityIDTx(ctx, tx, record.ID.String())
	if err == nil {
		// keep the reviewed status, refresh the rest
		record.VerificationStatus = existing.VerificationStatus
		record.ApprovedAt = existing.ApprovedAt
		return a.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(record.ID.String()))
	}

	if !repository.IsRecordNotFound(err) && !goerrors.IsNotFound(err) {
		return nil, err
	}

	return a.Repository.CreateTx(ctx, tx, record)
}

func (a *profiles) ApproveSeller(ctx context.Context, id uuid.UUID) error {
	return a.ApproveSellerTx(ctx, a.db, id)
}

// ApproveSellerTx moves a pending seller to approved. The guard in the SQL
// enforces the only legal verification transition (pending -> approved);
// anything else reports ErrVerificationNotPending.
func (a *profiles) ApproveSellerTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	now := time.Now()
	res, err := a.Repository.RawTx(ctx, tx, ApproveSellerSQL, now, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return ErrVerificationNotPending.WithMetadata(map[string]any{
			"id": id.String(),
		})
	}

	return nil
}

func prepareProfileDefaults(record *Profile) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleBuyer
	}

	record.EnsureStatus()
}
