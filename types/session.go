package types

import "time"

// Session is the capability granted after a completed two-factor login.
// Privileged operations take it explicitly instead of reading ambient state.
type Session struct {
	ID        string    `json:"-"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsAdmin reports whether the session carries the privileged role.
func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == RoleAdmin
}
