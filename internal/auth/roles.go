package auth

import (
	"github.com/helpdesk-labs/support-rewards/internal/domain"
	apperrors "github.com/helpdesk-labs/support-rewards/pkg/util"
)

// Principal is the caller identity handed over by the authentication layer.
type Principal struct {
	ID   string
	Role domain.Role
}

// Customer builds a customer principal.
func Customer(id string) Principal { return Principal{ID: id, Role: domain.RoleCustomer} }

// Staff builds a staff principal.
func Staff(id string) Principal { return Principal{ID: id, Role: domain.RoleStaff} }

// Admin builds an admin principal.
func Admin(id string) Principal { return Principal{ID: id, Role: domain.RoleAdmin} }

// RequireRole ensures the principal holds one of the allowed roles.
func RequireRole(p Principal, allowed ...domain.Role) error {
	if p.ID == "" {
		return apperrors.NewForbidden("authentication required")
	}
	if len(allowed) == 0 {
		return nil
	}
	for _, role := range allowed {
		if p.Role == role {
			return nil
		}
	}
	return apperrors.NewForbidden("insufficient role")
}

// RequireStaff ensures the principal is staff or admin.
func RequireStaff(p Principal) error {
	return RequireRole(p, domain.RoleStaff, domain.RoleAdmin)
}

// RequireAdmin ensures the principal is an admin.
func RequireAdmin(p Principal) error {
	return RequireRole(p, domain.RoleAdmin)
}

// RequireSelfOrAdmin ensures a staff principal acts on its own record unless
// it is an admin.
func RequireSelfOrAdmin(p Principal, staffID string) error {
	if err := RequireStaff(p); err != nil {
		return err
	}
	if p.Role != domain.RoleAdmin && p.ID != staffID {
		return apperrors.NewForbidden("staff may only access their own record")
	}
	return nil
}
