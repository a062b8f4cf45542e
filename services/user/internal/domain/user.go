package domain

import (
	"time"

	"github.com/Lv-up-Planner/initRepo/pkg/credential"
)

// User is the public projection of a stored identity. It is what the service
// returns and what the cache holds; it never carries the password hash.
type User struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// FromCredential projects a stored credential to its public view.
func FromCredential(u *credential.User) *User {
	if u == nil {
		return nil
	}
	return &User{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

// Stats is the response of the stats endpoint.
type Stats struct {
	Users credential.Stats `json:"users"`
	Cache any              `json:"cache"`
}
