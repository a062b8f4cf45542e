package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Lv-up-Planner/initRepo/pkg/database"
	apperrors "github.com/Lv-up-Planner/initRepo/pkg/errors"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/domain"
)

const postColumns = `p.id, p.author_id, u.username, p.title, p.content, p.created_at, p.updated_at`

// PostRepository implements repository.PostRepository using PostgreSQL.
type PostRepository struct {
	db database.DBTX
}

// NewPostRepository creates a new PostgreSQL-backed post repository.
func NewPostRepository(db database.DBTX) *PostRepository {
	return &PostRepository{db: db}
}

// Create inserts a new post.
func (r *PostRepository) Create(ctx context.Context, p *domain.Post) (err error) {
	query := `
		INSERT INTO posts (id, author_id, title, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	ctx, end := database.TraceQuery(ctx, "CreatePost", query)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, query, p.ID, p.AuthorID, p.Title, p.Content, p.CreatedAt, p.UpdatedAt); err != nil {
		return database.MapError(err, "insert post")
	}
	return nil
}

// GetByID returns a post with its author's username.
func (r *PostRepository) GetByID(ctx context.Context, id string) (_ *domain.Post, err error) {
	query := `SELECT ` + postColumns + ` FROM posts p JOIN users u ON u.id = p.author_id WHERE p.id = $1`

	ctx, end := database.TraceQuery(ctx, "GetPost", query)
	defer func() { end(err) }()

	p, err := scanPost(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("post", id)
		}
		return nil, database.MapError(err, "get post")
	}
	return p, nil
}

// List returns one page of posts, newest first, and the total count.
func (r *PostRepository) List(ctx context.Context, limit, offset int) (_ []domain.Post, _ int, err error) {
	query := `
		SELECT ` + postColumns + `, COUNT(*) OVER() AS total_count
		FROM posts p
		JOIN users u ON u.id = p.author_id
		ORDER BY p.created_at DESC, p.id ASC
		LIMIT $1 OFFSET $2`

	ctx, end := database.TraceQuery(ctx, "ListPosts", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, database.MapError(err, "list posts")
	}
	defer rows.Close()

	var (
		posts = make([]domain.Post, 0, limit)
		total int
	)
	for rows.Next() {
		var p domain.Post
		if err := rows.Scan(&p.ID, &p.AuthorID, &p.Author, &p.Title, &p.Content, &p.CreatedAt, &p.UpdatedAt, &total); err != nil {
			return nil, 0, fmt.Errorf("scan post row: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, database.MapError(err, "iterate posts")
	}

	// An offset past the end returns no rows and so no window count.
	if len(posts) == 0 && offset > 0 {
		if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM posts`).Scan(&total); err != nil {
			return nil, 0, database.MapError(err, "count posts")
		}
	}
	return posts, total, nil
}

// Update applies the non-nil fields of upd to a post written by authorID.
func (r *PostRepository) Update(ctx context.Context, id, authorID string, upd domain.PostUpdate, at time.Time) (err error) {
	sets := make([]string, 0, 3)
	args := make([]any, 0, 5)
	add := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}
	if upd.Title != nil {
		add("title", *upd.Title)
	}
	if upd.Content != nil {
		add("content", *upd.Content)
	}
	add("updated_at", at)
	args = append(args, id, authorID)

	query := fmt.Sprintf(`UPDATE posts SET %s WHERE id = $%d AND author_id = $%d`,
		strings.Join(sets, ", "), len(args)-1, len(args))

	ctx, end := database.TraceQuery(ctx, "UpdatePost", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return database.MapError(err, "update post")
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("post", id)
	}
	return nil
}

// Delete removes a post written by authorID.
func (r *PostRepository) Delete(ctx context.Context, id, authorID string) (err error) {
	query := `DELETE FROM posts WHERE id = $1 AND author_id = $2`

	ctx, end := database.TraceQuery(ctx, "DeletePost", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, id, authorID)
	if err != nil {
		return database.MapError(err, "delete post")
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("post", id)
	}
	return nil
}

func scanPost(row pgx.Row) (*domain.Post, error) {
	var p domain.Post
	if err := row.Scan(&p.ID, &p.AuthorID, &p.Author, &p.Title, &p.Content, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
