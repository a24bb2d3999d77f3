package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// VerificationStatus gates marketplace actions after email verification.
type VerificationStatus = string

const (
	// VerificationPending means the profile awaits manual review
	// (sellers only).
	VerificationPending VerificationStatus = "pending"
	// VerificationApproved unlocks the role's marketplace actions.
	VerificationApproved VerificationStatus = "approved"
)

// Profile is the application-owned record for an auth identity. It is keyed
// by the provider's identity id and exists only after email verification
// completes; the provider owns the credential side.
type Profile struct {
	bun.BaseModel      `bun:"table:profiles,alias:prf"`
	ID                 uuid.UUID          `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email              string             `bun:"email,notnull,unique" json:"email,omitempty"`
	DisplayName        string             `bun:"display_name,notnull" json:"display_name,omitempty"`
	Phone              string             `bun:"phone_number" json:"phone_number,omitempty"`
	Role               UserRole           `bun:"user_role,notnull" json:"user_role,omitempty"`
	VerificationStatus VerificationStatus `bun:"verification_status,notnull" json:"verification_status,omitempty"`
	Metadata           map[string]any     `bun:"metadata" json:"metadata,omitempty"`
	ApprovedAt         *time.Time         `bun:"approved_at,nullzero" json:"approved_at,omitempty"`
	CreatedAt          *time.Time         `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt          *time.Time         `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt          *time.Time         `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// AddMetadata will append information to a metadata attribute
func (p *Profile) AddMetadata(key string, val any) *Profile {
	if p.Metadata == nil {
		p.Metadata = make(map[string]any)
	}
	p.Metadata[key] = val
	return p
}

// EnsureStatus applies the role-dependent default verification status:
// buyers auto-approve, sellers stay pending until reviewed.
func (p *Profile) EnsureStatus() {
	if p.VerificationStatus != "" {
		return
	}
	p.VerificationStatus = DefaultVerificationStatus(p.Role)
}

// Approved reports whether the profile's marketplace actions are unlocked.
func (p *Profile) Approved() bool {
	return p != nil && p.VerificationStatus == VerificationApproved
}

// DefaultVerificationStatus maps a role to its post-verification status.
func DefaultVerificationStatus(role UserRole) VerificationStatus {
	if role == RoleSeller {
		return VerificationPending
	}
	return VerificationApproved
}
