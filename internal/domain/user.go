package domain

// Role identifies what a user account is allowed to do.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleDriver   Role = "driver"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleDriver, RoleAdmin:
		return true
	}
	return false
}

// User represents an account in the system. Drivers are users with RoleDriver.
type User struct {
	ID       int64
	Username string
	Password string
	Role     Role
	Name     string
	Address  string
	Phone    string
	Email    string
}

// IsDriver reports whether the user can be assigned to bookings.
func (u *User) IsDriver() bool {
	return u != nil && u.Role == RoleDriver
}
