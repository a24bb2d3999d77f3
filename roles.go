package auth

// UserRole is the user's role
type UserRole = string

const (
	// RoleBuyer browses listings and places orders.
	RoleBuyer UserRole = "buyer"
	// RoleSeller publishes livestock listings (once approved).
	RoleSeller UserRole = "seller"
	// RoleAdmin reviews sellers and moderates the marketplace.
	RoleAdmin UserRole = "admin"
)

var roleRank = map[UserRole]int{
	RoleBuyer:  1,
	RoleSeller: 2,
	RoleAdmin:  3,
}

// ParseRole validates and normalizes a raw role string.
func ParseRole(raw string) (UserRole, bool) {
	switch raw {
	case RoleBuyer, RoleSeller, RoleAdmin:
		return raw, true
	default:
		return "", false
	}
}

// IsValidRole checks if the role is one of the predefined valid roles
func IsValidRole(r UserRole) bool {
	_, ok := roleRank[r]
	return ok
}

// IsSelfServiceRole reports whether the role may be requested at sign-up.
// Admin accounts are provisioned out of band.
func IsSelfServiceRole(r UserRole) bool {
	return r == RoleBuyer || r == RoleSeller
}

// CanPurchase checks if this role can place orders
func CanPurchase(r UserRole) bool {
	return IsValidRole(r)
}

// CanPublishListings checks if this role can create listings
func CanPublishListings(r UserRole) bool {
	return r == RoleSeller || r == RoleAdmin
}

// CanModerate checks if this role can review sellers and listings
func CanModerate(r UserRole) bool {
	return r == RoleAdmin
}

// RoleAtLeast checks if role is at least the minimum required role
func RoleAtLeast(r, min UserRole) bool {
	rank, ok := roleRank[r]
	if !ok {
		return false
	}
	minRank, ok := roleRank[min]
	if !ok {
		return false
	}
	return rank >= minRank
}
