package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/Lv-up-Planner/initRepo/pkg/errors"
)

// TodoStatus is the lifecycle state of a todo. Pending moves to Completed or
// Deleted; neither of those ever changes again.
type TodoStatus string

const (
	TodoStatusPending   TodoStatus = "pending"
	TodoStatusCompleted TodoStatus = "completed"
	TodoStatusDeleted   TodoStatus = "deleted"
)

// Todo limits.
const (
	MaxTodoTitleLength = 200
	DefaultTodoXP      = 10
	MaxTodoXP          = 1000
)

var (
	// ErrTodoCompleted is returned when a completed todo is completed or
	// deleted again.
	ErrTodoCompleted = errors.New("todo already completed")
	// ErrTodoDeleted is returned when a soft-deleted todo is touched.
	ErrTodoDeleted = errors.New("todo deleted")
)

// Todo is a reward item. Completing it awards XPReward to its owner.
type Todo struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	XPReward    int        `json:"xp_reward"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DeletedAt   *time.Time `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Status derives the lifecycle state.
func (t *Todo) Status() TodoStatus {
	switch {
	case t.DeletedAt != nil:
		return TodoStatusDeleted
	case t.Completed:
		return TodoStatusCompleted
	default:
		return TodoStatusPending
	}
}

// Complete moves a pending todo to Completed.
func (t *Todo) Complete(at time.Time) error {
	switch t.Status() {
	case TodoStatusDeleted:
		return ErrTodoDeleted
	case TodoStatusCompleted:
		return ErrTodoCompleted
	}
	t.Completed = true
	t.CompletedAt = &at
	return nil
}

// SoftDelete moves a pending todo to Deleted.
func (t *Todo) SoftDelete(at time.Time) error {
	switch t.Status() {
	case TodoStatusDeleted:
		return ErrTodoDeleted
	case TodoStatusCompleted:
		return ErrTodoCompleted
	}
	t.DeletedAt = &at
	return nil
}

// NewTodo validates the input and builds a pending todo. A zero reward
// selects DefaultTodoXP.
func NewTodo(userID, title string, xp int) (*Todo, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperrors.InvalidInput("title is required")
	}
	if utf8.RuneCountInString(title) > MaxTodoTitleLength {
		return nil, apperrors.InvalidInput("title must be at most 200 characters")
	}
	if xp == 0 {
		xp = DefaultTodoXP
	}
	if xp < 1 || xp > MaxTodoXP {
		return nil, apperrors.InvalidInput("xp_reward must be between 1 and 1000")
	}
	return &Todo{UserID: userID, Title: title, XPReward: xp}, nil
}

// Completion is the result of completing a todo. AlreadyCompleted marks a
// no-op: the todo had been completed before and no XP was applied.
type Completion struct {
	Todo             *Todo    `json:"todo"`
	XPGained         int      `json:"xp_gained"`
	Progress         Progress `json:"-"`
	LevelsGained     int      `json:"levels_gained"`
	AlreadyCompleted bool     `json:"already_completed"`
}

// LeveledUp reports whether the completion crossed a level threshold.
func (c *Completion) LeveledUp() bool {
	return c.LevelsGained > 0
}
