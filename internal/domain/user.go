package domain

import "time"

// Role enumerates caller roles supplied by the authentication layer.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

// IsStaff reports whether the role participates in gamification.
func (r Role) IsStaff() bool {
	return r == RoleStaff || r == RoleAdmin
}

// User is the persisted account record shared by customers and staff.
type User struct {
	ID        string
	Name      string
	Email     string
	Role      Role
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
