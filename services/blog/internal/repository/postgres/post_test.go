package postgres

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Lv-up-Planner/initRepo/pkg/errors"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/domain"
)

const testPostID = "7f6e5d4c-3b2a-4190-8f7e-6d5c4b3a2918"

var testPostColumns = []string{"id", "author_id", "username", "title", "content", "created_at", "updated_at"}

func TestPostRepository_Create(t *testing.T) {
	mock := newMock(t)
	repo := NewPostRepository(mock)
	p := &domain.Post{ID: testPostID, AuthorID: testUserID, Title: "Hi", Content: "Body", CreatedAt: fixedNow, UpdatedAt: fixedNow}

	mock.ExpectExec("INSERT INTO posts").
		WithArgs(p.ID, p.AuthorID, p.Title, p.Content, p.CreatedAt, p.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_GetByID(t *testing.T) {
	mock := newMock(t)
	repo := NewPostRepository(mock)

	mock.ExpectQuery(`FROM posts p JOIN users u ON u.id = p.author_id WHERE p.id = \$1`).
		WithArgs(testPostID).
		WillReturnRows(pgxmock.NewRows(testPostColumns).AddRow(testPostID, testUserID, "alice", "Hi", "Body", fixedNow, fixedNow))

	p, err := repo.GetByID(context.Background(), testPostID)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Author)

	mock.ExpectQuery("FROM posts p").WithArgs("missing").WillReturnRows(pgxmock.NewRows(testPostColumns))
	_, err = repo.GetByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestPostRepository_List(t *testing.T) {
	mock := newMock(t)
	repo := NewPostRepository(mock)

	cols := append(append([]string{}, testPostColumns...), "total_count")
	mock.ExpectQuery(`ORDER BY p.created_at DESC, p.id ASC LIMIT \$1 OFFSET \$2`).
		WithArgs(2, 0).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("p2", testUserID, "alice", "Second", "b", fixedNow, fixedNow, 5).
			AddRow("p1", testUserID, "alice", "First", "a", fixedNow, fixedNow, 5))

	posts, total, err := repo.List(context.Background(), 2, 0)
	require.NoError(t, err)
	assert.Len(t, posts, 2)
	assert.Equal(t, 5, total)
}

func TestPostRepository_List_PastTheEndStillCounts(t *testing.T) {
	mock := newMock(t)
	repo := NewPostRepository(mock)

	cols := append(append([]string{}, testPostColumns...), "total_count")
	mock.ExpectQuery("FROM posts p").WithArgs(20, 40).WillReturnRows(pgxmock.NewRows(cols))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM posts`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	posts, total, err := repo.List(context.Background(), 20, 40)
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.Equal(t, 7, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_Update(t *testing.T) {
	mock := newMock(t)
	repo := NewPostRepository(mock)
	title := "New title"

	mock.ExpectExec(`UPDATE posts SET title = \$1, updated_at = \$2 WHERE id = \$3 AND author_id = \$4`).
		WithArgs(title, fixedNow, testPostID, testUserID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.Update(context.Background(), testPostID, testUserID, domain.PostUpdate{Title: &title}, fixedNow))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_Delete_NotOwnedIsNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewPostRepository(mock)

	mock.ExpectExec(`DELETE FROM posts WHERE id = \$1 AND author_id = \$2`).
		WithArgs(testPostID, otherUserID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.Delete(context.Background(), testPostID, otherUserID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}
