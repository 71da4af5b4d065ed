package core

import "time"

// Session keys written by the authentication layer
const (
	SessionMemberIDKey      = "logged-in-member-id"
	SessionSecurityTokenKey = "security-id"
)

// Credentials represents the data submitted to an authenticator
type Credentials struct {
	Identifier string // Unique identifier of the member, the email address
	Password   string // Plain text password as submitted
}

// Member represents a user able to log in to the admin panel
type Member struct {
	ID             string     // Unique member identifier
	Email          string     // Unique login identifier
	FirstName      string     // Given name
	Surname        string     // Family name
	PasswordHash   string     // bcrypt or crypt(3) encoded password hash
	Admin          bool       // Whether the member may edit other members
	PasswordExpiry *time.Time // When the password stops being accepted without a change
}

// IsPasswordExpired reports whether the password expiry has been reached at now.
func (m *Member) IsPasswordExpired(now time.Time) bool {
	if m.PasswordExpiry == nil {
		return false
	}
	return !m.PasswordExpiry.After(now)
}

// Clone returns a copy of the member that shares no pointers with m.
func (m *Member) Clone() *Member {
	c := *m
	if m.PasswordExpiry != nil {
		expiry := *m.PasswordExpiry
		c.PasswordExpiry = &expiry
	}
	return &c
}
