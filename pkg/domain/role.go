package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Role scopes what a dashboard user may do. It travels in the signed role
// cookie and is resolved once per request by the auth middleware.
type Role string

const (
	RoleViewer   Role = "viewer"
	RolePlanner  Role = "planner"
	RoleApprover Role = "approver"
	RoleAdmin    Role = "admin"
)

// DefaultRole is assumed when a request carries no valid role cookie.
const DefaultRole = RoleViewer

var knownRoles = []Role{RoleViewer, RolePlanner, RoleApprover, RoleAdmin}

// Roles returns every known role in ascending privilege order.
func Roles() []Role {
	return slices.Clone(knownRoles)
}

// ParseRole normalizes and validates a role string.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return slices.Contains(knownRoles, r)
}

// In reports whether r is one of allowed. Admin is always allowed.
func (r Role) In(allowed ...Role) bool {
	if r == RoleAdmin {
		return true
	}
	return slices.Contains(allowed, r)
}

func (r Role) String() string { return string(r) }
