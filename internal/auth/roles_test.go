package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/helpdesk-labs/support-rewards/internal/domain"
	apperrors "github.com/helpdesk-labs/support-rewards/pkg/util"
)

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name    string
		p       Principal
		allowed []domain.Role
		wantErr bool
	}{
		{name: "anonymous", p: Principal{}, allowed: nil, wantErr: true},
		{name: "any role", p: Customer("c1"), allowed: nil},
		{name: "customer on staff op", p: Customer("c1"), allowed: []domain.Role{domain.RoleStaff, domain.RoleAdmin}, wantErr: true},
		{name: "staff on staff op", p: Staff("s1"), allowed: []domain.Role{domain.RoleStaff, domain.RoleAdmin}},
		{name: "staff on admin op", p: Staff("s1"), allowed: []domain.Role{domain.RoleAdmin}, wantErr: true},
		{name: "admin on admin op", p: Admin("a1"), allowed: []domain.Role{domain.RoleAdmin}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RequireRole(tt.p, tt.allowed...)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrForbidden)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRequireSelfOrAdmin(t *testing.T) {
	assert.NoError(t, RequireSelfOrAdmin(Staff("s1"), "s1"))
	assert.NoError(t, RequireSelfOrAdmin(Admin("a1"), "s1"))
	assert.ErrorIs(t, RequireSelfOrAdmin(Staff("s2"), "s1"), apperrors.ErrForbidden)
	assert.ErrorIs(t, RequireSelfOrAdmin(Customer("s1"), "s1"), apperrors.ErrForbidden)
}
