package domain

import "strings"

type Role string

const (
	RoleClient          Role = "client"
	RoleServiceProvider Role = "service_provider"
	RolePropertyOwner   Role = "property_owner"
	RoleSupport         Role = "support"
	RoleAdmin           Role = "admin"
)

func ParseRole(s string) Role {
	return Role(strings.ToLower(strings.TrimSpace(s)))
}

// Identity - то, что сессионный слой отдаёт до admit.
type Identity struct {
	UserID string
	Role   Role
}
