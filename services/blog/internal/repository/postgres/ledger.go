package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Lv-up-Planner/initRepo/pkg/database"
	apperrors "github.com/Lv-up-Planner/initRepo/pkg/errors"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/domain"
)

// Ledger implements repository.Ledger. Each reward transaction locks the
// todo, then the owner's profile, so concurrent completions for one user
// apply their XP one after another.
type Ledger struct {
	pool        database.Pool
	progression domain.Progression
	now         func() time.Time
}

// NewLedger creates a ledger that levels profiles along progression.
func NewLedger(pool database.Pool, progression domain.Progression) *Ledger {
	return &Ledger{pool: pool, progression: progression, now: time.Now}
}

// CompleteTodo marks the todo completed and applies its XP to the owner's
// profile. Both writes commit together or not at all. A todo that is already
// completed yields a no-op Completion carrying the current progress.
func (l *Ledger) CompleteTodo(ctx context.Context, userID, todoID string) (_ *domain.Completion, err error) {
	ctx, end := database.TraceQuery(ctx, "CompleteTodo", "todo completion transaction")
	defer func() { end(err) }()

	var out *domain.Completion
	err = database.WithTx(ctx, l.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		todo, err := lockTodo(ctx, tx, todoID)
		if err != nil {
			return err
		}
		// Another user's todo reads as missing, deleted or not.
		if todo.UserID != userID {
			return apperrors.NotFound("todo", todoID)
		}

		now := l.now().UTC()
		if err := todo.Complete(now); err != nil {
			if !errors.Is(err, domain.ErrTodoCompleted) {
				return apperrors.NotFound("todo", todoID)
			}
			progress, err := readProgress(ctx, tx, userID)
			if err != nil {
				return err
			}
			out = &domain.Completion{Todo: todo, Progress: progress, AlreadyCompleted: true}
			return nil
		}

		before, err := lockProgress(ctx, tx, userID)
		if err != nil {
			return err
		}
		award, err := l.progression.Apply(before, todo.XPReward)
		if err != nil {
			return err
		}
		if err := saveProgress(ctx, tx, userID, award.After, now); err != nil {
			return err
		}

		ct, err := tx.Exec(ctx, `
			UPDATE todos SET completed = TRUE, completed_at = $1
			WHERE id = $2 AND completed = FALSE AND deleted_at IS NULL`, now, todoID)
		if err != nil {
			return database.MapError(err, "mark todo completed")
		}
		if ct.RowsAffected() != 1 {
			return apperrors.Invariant("todo changed while locked: " + todoID)
		}

		out = &domain.Completion{
			Todo:         todo,
			XPGained:     award.XPGained,
			Progress:     award.After,
			LevelsGained: award.LevelsGained,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
