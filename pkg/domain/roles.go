package domain

import "strings"

// Role is the back-office or customer role attached to an account.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleAccount     Role = "account"
	RolePacker      Role = "packer"
	RoleDeliveryman Role = "deliveryman"
	RoleUser        Role = "user"
)

// Roles lists every role in display order.
var Roles = []Role{RoleAdmin, RoleAccount, RolePacker, RoleDeliveryman, RoleUser}

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleAccount, RolePacker, RoleDeliveryman, RoleUser:
		return true
	}
	return false
}

// IsStaff reports whether the role belongs to the back office.
func (r Role) IsStaff() bool {
	return r.IsValid() && r != RoleUser
}

func (r Role) String() string { return string(r) }

// ParseRole normalizes and validates a role name.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.IsValid()
}
