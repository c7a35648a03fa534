package types

import "time"

// RoleAdmin is the privileged operator role.
const RoleAdmin = "admin"

// User represents a back-office operator.
// It contains identity, contact address, role and credential metadata.
type User struct {
	// ID is the numeric identifier of the operator.
	ID int64 `json:"id" db:"id"`

	// Username is the unique login name of the operator.
	Username string `json:"username" db:"username"`

	// Email is the address one-time codes are delivered to.
	Email string `json:"email" db:"email"`

	// Role indicates the authorization level, e.g. "admin" or "agent".
	Role string `json:"role" db:"role"`

	// Active is false for disabled operators, who cannot log in.
	Active bool `json:"active" db:"is_active"`

	// PasswordHash stores the bcrypt digest of the operator's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// LastLogin is the time of the last completed two-factor login.
	LastLogin *time.Time `json:"last_login,omitempty" db:"last_login"`
}

// IsAdmin reports whether the user holds the privileged role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
