package postgres

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/Lv-up-Planner/initRepo/services/blog/internal/domain"
)

const (
	testUserID  = "6a3f0c1e-1d1b-4e44-9b51-1f3c2a4d5e60"
	otherUserID = "9d8c7b6a-5f4e-4d3c-8b2a-1f0e9d8c7b6a"
	testTodoID  = "1c2d3e4f-5a6b-4c7d-8e9f-0a1b2c3d4e5f"
)

var readCommitted = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func todoRows(todos ...domain.Todo) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{
		"id", "user_id", "title", "xp_reward", "completed", "completed_at", "deleted_at", "created_at",
	})
	for _, t := range todos {
		rows.AddRow(t.ID, t.UserID, t.Title, t.XPReward, t.Completed, t.CompletedAt, t.DeletedAt, t.CreatedAt)
	}
	return rows
}

func progressRows(p domain.Progress) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"level", "current_xp", "next_level_xp"}).
		AddRow(p.Level, p.CurrentXP, p.NextLevelXP)
}

func pendingTodo(xp int) domain.Todo {
	return domain.Todo{
		ID:        testTodoID,
		UserID:    testUserID,
		Title:     "ship it",
		XPReward:  xp,
		CreatedAt: fixedNow.Add(-time.Hour),
	}
}
