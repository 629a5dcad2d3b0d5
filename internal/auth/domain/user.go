package domain

import "time"

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Authority is the claim value for a role, e.g. "ROLE_USER".
func (r Role) Authority() string { return "ROLE_" + string(r) }

func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

// User is the account record passed between the store and the services.
// It is a plain value, copy it freely.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string // argon2id PHC string, or bcrypt for imported accounts
	Role         Role
	Active       bool
	Locked       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  *time.Time
}

// Authorities lists the role claims embedded in this user's access tokens.
func (u User) Authorities() []string {
	if u.Role == "" {
		return nil
	}
	return []string{u.Role.Authority()}
}
