package domain

import (
	"time"

	"github.com/Lv-up-Planner/initRepo/pkg/credential"
)

// NewAccount is the registration input: credentials plus the initial
// profile fields.
type NewAccount struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
	Gender      string
}

// Credentials returns the credential part of the registration.
func (a NewAccount) Credentials() credential.NewUser {
	return credential.NewUser{Username: a.Username, Email: a.Email, Password: a.Password}
}

// Account is a registered user together with their profile.
type Account struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Profile   *Profile  `json:"profile"`
}
