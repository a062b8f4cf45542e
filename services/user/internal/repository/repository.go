package repository

import (
	"context"

	"github.com/Lv-up-Planner/initRepo/pkg/credential"
)

// UserStore is the credential persistence surface the user service needs.
// *credential.Store implements it.
type UserStore interface {
	// Create inserts a new user; a duplicate username or email is a conflict.
	Create(ctx context.Context, in credential.NewUser) (*credential.User, error)

	// Verify checks a secret against the stored hash.
	Verify(ctx context.Context, identity, secret string) (*credential.User, error)

	// GetByID retrieves a user by identifier.
	GetByID(ctx context.Context, id string) (*credential.User, error)

	// GetByIdentity retrieves a user by username or email.
	GetByIdentity(ctx context.Context, identity string) (*credential.User, error)

	// TouchLastLogin records a successful login.
	TouchLastLogin(ctx context.Context, id string) error

	// ChangePassword replaces the hash after checking the current secret.
	ChangePassword(ctx context.Context, id, current, next string) error

	// Stats summarizes the users table.
	Stats(ctx context.Context) (*credential.Stats, error)
}

var _ UserStore = (*credential.Store)(nil)
