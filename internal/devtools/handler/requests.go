package handler

import (
	"strings"

	"supplydash/pkg/domain"
	dErrors "supplydash/pkg/domain-errors"
)

const maxReasonLen = 500

// SimulateRoleRequest is the body for POST /dev/role.
type SimulateRoleRequest struct {
	Role   string `json:"role"`
	Reason string `json:"reason"`

	parsedRole domain.Role
}

func (r *SimulateRoleRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Reason = strings.TrimSpace(r.Reason)
	if len(r.Reason) > maxReasonLen {
		return dErrors.New(dErrors.CodeValidation, "reason must be at most 500 characters")
	}
	role, err := domain.ParseRole(r.Role)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "unknown role").
			WithDetails(map[string]any{"allowed": domain.Roles()})
	}
	r.parsedRole = role
	return nil
}

func (r *SimulateRoleRequest) ParsedRole() domain.Role {
	return r.parsedRole
}
