package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Lv-up-Planner/initRepo/pkg/database"
	apperrors "github.com/Lv-up-Planner/initRepo/pkg/errors"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/domain"
)

const todoColumns = `id, user_id, title, xp_reward, completed, completed_at, deleted_at, created_at`

// TodoRepository implements repository.TodoRepository using PostgreSQL.
type TodoRepository struct {
	pool database.Pool
}

// NewTodoRepository creates a new PostgreSQL-backed todo repository.
func NewTodoRepository(pool database.Pool) *TodoRepository {
	return &TodoRepository{pool: pool}
}

// Create inserts a new pending todo.
func (r *TodoRepository) Create(ctx context.Context, t *domain.Todo) (err error) {
	query := `
		INSERT INTO todos (id, user_id, title, xp_reward, completed, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)`

	ctx, end := database.TraceQuery(ctx, "CreateTodo", query)
	defer func() { end(err) }()

	if _, err = r.pool.Exec(ctx, query, t.ID, t.UserID, t.Title, t.XPReward, t.CreatedAt); err != nil {
		return database.MapError(err, "insert todo")
	}
	return nil
}

// GetByID returns a todo that has not been soft-deleted.
func (r *TodoRepository) GetByID(ctx context.Context, id string) (_ *domain.Todo, err error) {
	query := `SELECT ` + todoColumns + ` FROM todos WHERE id = $1 AND deleted_at IS NULL`

	ctx, end := database.TraceQuery(ctx, "GetTodo", query)
	defer func() { end(err) }()

	t, err := scanTodo(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("todo", id)
		}
		return nil, database.MapError(err, "get todo")
	}
	return t, nil
}

// ListByUser returns the user's todos, newest first, excluding deleted ones.
func (r *TodoRepository) ListByUser(ctx context.Context, userID string) (_ []domain.Todo, err error) {
	query := `
		SELECT ` + todoColumns + `
		FROM todos
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC, id ASC`

	ctx, end := database.TraceQuery(ctx, "ListTodos", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, database.MapError(err, "list todos")
	}
	defer rows.Close()

	todos := make([]domain.Todo, 0)
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan todo row: %w", err)
		}
		todos = append(todos, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, database.MapError(err, "iterate todos")
	}
	return todos, nil
}

// SoftDelete marks a pending todo as deleted. Completed todos stay, since
// their XP has already been applied.
func (r *TodoRepository) SoftDelete(ctx context.Context, userID, todoID string, at time.Time) error {
	return database.WithTx(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		t, err := lockTodo(ctx, tx, todoID)
		if err != nil {
			return err
		}
		if t.UserID != userID {
			return apperrors.NotFound("todo", todoID)
		}
		if err := t.SoftDelete(at); err != nil {
			if errors.Is(err, domain.ErrTodoCompleted) {
				return apperrors.Conflict("completed todos cannot be deleted")
			}
			return apperrors.NotFound("todo", todoID)
		}

		if _, err := tx.Exec(ctx, `UPDATE todos SET deleted_at = $1 WHERE id = $2`, at, todoID); err != nil {
			return database.MapError(err, "soft delete todo")
		}
		return nil
	})
}

// lockTodo reads a todo, deleted or not, and holds a row lock on it until tx
// ends.
func lockTodo(ctx context.Context, tx pgx.Tx, id string) (*domain.Todo, error) {
	t, err := scanTodo(tx.QueryRow(ctx, `SELECT `+todoColumns+` FROM todos WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("todo", id)
		}
		return nil, database.MapError(err, "lock todo")
	}
	return t, nil
}

func scanTodo(row pgx.Row) (*domain.Todo, error) {
	var t domain.Todo
	if err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Title,
		&t.XPReward,
		&t.Completed,
		&t.CompletedAt,
		&t.DeletedAt,
		&t.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}
