package domain

// RoleName enumerates the fixed role catalog. The definitions behind these
// names are seeded by migrations and must exist before any registration
// can succeed.
type RoleName string

const (
	RoleBuyerUser   RoleName = "ROLE_BUYER_USER"
	RoleSellerAdmin RoleName = "ROLE_SELLER_ADMIN"
)

// Role is a named capability grantable to a user account.
type Role struct {
	ID   int32
	Name RoleName
}

// DefaultRoleNames returns the role set every new account receives.
func DefaultRoleNames() []RoleName {
	return []RoleName{RoleBuyerUser, RoleSellerAdmin}
}
