package models

// Role is the account type. It is fixed when the account is created.
type Role string

const (
	RoleDonor Role = "donor"
	RoleNGO   Role = "ngo"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleDonor, RoleNGO, RoleAdmin:
		return true
	}
	return false
}

// DefaultVerified is the verified flag a new account of this role starts with.
// NGOs wait for an admin; everyone else is verified on creation.
func (r Role) DefaultVerified() bool {
	return r != RoleNGO
}
