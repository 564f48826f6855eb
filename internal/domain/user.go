package domain

import "time"

// Provider identifies how a user authenticates with the platform
type Provider string

const (
	ProviderGoogle Provider = "GOOGLE"
	ProviderApple  Provider = "APPLE"
	ProviderEmail  Provider = "EMAIL"
	ProviderGuest  Provider = "GUEST"
)

// Role determines the permission set embedded in issued tokens
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
	RoleGuest Role = "guest"
)

// rolePermissions is the static role -> permissions lookup used when issuing tokens
var rolePermissions = map[Role][]string{
	RoleUser:  {"events:read", "events:write", "budget:read", "budget:write", "chat:read", "chat:write", "profile:write"},
	RoleAdmin: {"events:read", "events:write", "budget:read", "budget:write", "chat:read", "chat:write", "profile:write", "admin:all"},
	RoleGuest: {"events:read", "budget:read"},
}

// Permissions resolves the permission set for a role. Unknown roles get no permissions.
func (r Role) Permissions() []string {
	perms, ok := rolePermissions[r]
	if !ok {
		return []string{}
	}
	return perms
}

// User represents an identity record in the system. Email is empty for guests.
type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email,omitempty"`
	Name       string    `json:"name"`
	AvatarURL  string    `json:"avatar_url,omitempty"`
	Provider   Provider  `json:"provider"`
	ProviderID string    `json:"-"`
	Role       Role      `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IsGuest reports whether the user holds an ephemeral guest identity
func (u *User) IsGuest() bool {
	return u.Provider == ProviderGuest
}
