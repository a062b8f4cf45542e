package repository

import (
	"context"
	"time"

	"github.com/Lv-up-Planner/initRepo/pkg/credential"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/domain"
)

// AccountRepository creates accounts. Credentials and profile are written in
// one transaction: a duplicate username, email or display name leaves no row
// behind.
type AccountRepository interface {
	Register(ctx context.Context, in domain.NewAccount, start domain.Progress) (*domain.Account, error)
}

// CredentialRepository verifies logins against the users table.
type CredentialRepository interface {
	Verify(ctx context.Context, identity, secret string) (*credential.User, error)
	TouchLastLogin(ctx context.Context, id string) error
}

// ProfileRepository reads and edits profiles. Level fields are written only
// by the Ledger.
type ProfileRepository interface {
	// GetByUserID returns the profile of userID joined with the username.
	GetByUserID(ctx context.Context, userID string) (*domain.Profile, error)

	// Update applies the non-nil fields of upd.
	Update(ctx context.Context, userID string, upd domain.ProfileUpdate) error

	// Leaderboard returns the top limit profiles, ranked from 1.
	Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

// TodoRepository persists reward items.
type TodoRepository interface {
	// Create inserts a new pending todo.
	Create(ctx context.Context, todo *domain.Todo) error

	// GetByID returns a todo that has not been soft-deleted.
	GetByID(ctx context.Context, id string) (*domain.Todo, error)

	// ListByUser returns the user's todos, newest first, excluding deleted ones.
	ListByUser(ctx context.Context, userID string) ([]domain.Todo, error)

	// SoftDelete marks a pending todo owned by userID as deleted.
	SoftDelete(ctx context.Context, userID, todoID string, at time.Time) error
}

// Ledger applies reward transactions.
type Ledger interface {
	// CompleteTodo marks the todo completed and awards its XP to the owner in
	// one transaction. Completing an already completed todo is a no-op that
	// returns AlreadyCompleted.
	CompleteTodo(ctx context.Context, userID, todoID string) (*domain.Completion, error)
}

// PostRepository persists blog posts.
type PostRepository interface {
	Create(ctx context.Context, post *domain.Post) error
	GetByID(ctx context.Context, id string) (*domain.Post, error)
	List(ctx context.Context, limit, offset int) ([]domain.Post, int, error)

	// Update and Delete only touch rows written by authorID.
	Update(ctx context.Context, id, authorID string, upd domain.PostUpdate, at time.Time) error
	Delete(ctx context.Context, id, authorID string) error
}
