package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Lv-up-Planner/initRepo/pkg/errors"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/domain"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/event"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/repository"
)

// ProfileInvalidator drops a cached profile after its level fields changed.
type ProfileInvalidator interface {
	Invalidate(ctx context.Context, userID string)
}

// CompletionResult is the outcome of completing a todo as reported to the
// client.
type CompletionResult struct {
	Todo               *domain.Todo `json:"todo"`
	XPGained           int          `json:"xp_gained"`
	NewLevel           int          `json:"new_level"`
	NewXP              int          `json:"new_xp"`
	NextLevelThreshold int          `json:"next_level_threshold"`
	LevelsGained       int          `json:"levels_gained"`
	LeveledUp          bool         `json:"leveled_up"`
	AlreadyCompleted   bool         `json:"already_completed"`
}

func newCompletionResult(c *domain.Completion) *CompletionResult {
	return &CompletionResult{
		Todo:               c.Todo,
		XPGained:           c.XPGained,
		NewLevel:           c.Progress.Level,
		NewXP:              c.Progress.CurrentXP,
		NextLevelThreshold: c.Progress.NextLevelXP,
		LevelsGained:       c.LevelsGained,
		LeveledUp:          c.LeveledUp(),
		AlreadyCompleted:   c.AlreadyCompleted,
	}
}

// TodoService manages todos and their XP rewards.
type TodoService struct {
	todos    repository.TodoRepository
	ledger   repository.Ledger
	profiles ProfileInvalidator
	producer *event.Producer
	logger   *slog.Logger
	now      func() time.Time
}

// NewTodoService creates a new todo service.
func NewTodoService(
	todos repository.TodoRepository,
	ledger repository.Ledger,
	profiles ProfileInvalidator,
	producer *event.Producer,
	logger *slog.Logger,
) *TodoService {
	return &TodoService{
		todos:    todos,
		ledger:   ledger,
		profiles: profiles,
		producer: producer,
		logger:   logger,
		now:      time.Now,
	}
}

// Create adds a pending todo for userID. A zero xp selects the default
// reward.
func (s *TodoService) Create(ctx context.Context, userID, title string, xp int) (*domain.Todo, error) {
	todo, err := domain.NewTodo(userID, title, xp)
	if err != nil {
		return nil, err
	}
	todo.ID = uuid.New().String()
	todo.CreatedAt = s.now().UTC()
	if err := s.todos.Create(ctx, todo); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "todo created",
		slog.String("todo_id", todo.ID),
		slog.Int("xp_reward", todo.XPReward),
	)
	return todo, nil
}

// List returns the todos of userID, newest first.
func (s *TodoService) List(ctx context.Context, userID string) ([]domain.Todo, error) {
	return s.todos.ListByUser(ctx, userID)
}

// Get returns a todo of userID. Todos of other users read as missing.
func (s *TodoService) Get(ctx context.Context, userID, todoID string) (*domain.Todo, error) {
	todo, err := s.todos.GetByID(ctx, todoID)
	if err != nil {
		return nil, err
	}
	if todo.UserID != userID {
		return nil, apperrors.NotFound("todo", todoID)
	}
	return todo, nil
}

// Delete soft-deletes a pending todo of userID.
func (s *TodoService) Delete(ctx context.Context, userID, todoID string) error {
	if err := s.todos.SoftDelete(ctx, userID, todoID, s.now().UTC()); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "todo deleted", slog.String("todo_id", todoID))
	return nil
}

// Complete marks the todo done and awards its XP in one transaction.
// Completing it again returns the current progress with AlreadyCompleted set
// and awards nothing.
func (s *TodoService) Complete(ctx context.Context, userID, todoID string) (*CompletionResult, error) {
	c, err := s.ledger.CompleteTodo(ctx, userID, todoID)
	if err != nil {
		todoCompletions.WithLabelValues("error").Inc()
		return nil, err
	}
	if c.AlreadyCompleted {
		todoCompletions.WithLabelValues("noop").Inc()
		return newCompletionResult(c), nil
	}

	s.profiles.Invalidate(ctx, userID)

	todoCompletions.WithLabelValues("awarded").Inc()
	xpAwarded.Add(float64(c.XPGained))
	levelUps.Add(float64(c.LevelsGained))

	s.logger.InfoContext(ctx, "todo completed",
		slog.String("todo_id", todoID),
		slog.Int("xp_gained", c.XPGained),
		slog.Int("level", c.Progress.Level),
		slog.Int("levels_gained", c.LevelsGained),
	)

	if err := s.producer.PublishTodoCompleted(ctx, c); err != nil {
		s.logger.WarnContext(ctx, "failed to publish todo completed event",
			slog.String("todo_id", todoID),
			slog.String("error", err.Error()),
		)
	}
	if c.LeveledUp() {
		if err := s.producer.PublishLeveledUp(ctx, userID, c); err != nil {
			s.logger.WarnContext(ctx, "failed to publish level up event",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}
	return newCompletionResult(c), nil
}
