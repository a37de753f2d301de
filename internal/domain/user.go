package domain

import "time"

// User is the identity record behind every issued token.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	DisplayName  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Roles        []Role
}

// RoleNames returns the names of the roles attached to the user.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, role := range u.Roles {
		names = append(names, string(role.Name))
	}
	return names
}
