package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Lv-up-Planner/initRepo/pkg/errors"
	"github.com/Lv-up-Planner/initRepo/pkg/pagination"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/domain"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/repository"
)

// PostService manages blog posts. Only the author may edit or delete a post.
type PostService struct {
	posts  repository.PostRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewPostService creates a new post service.
func NewPostService(posts repository.PostRepository, logger *slog.Logger) *PostService {
	return &PostService{posts: posts, logger: logger, now: time.Now}
}

// Create publishes a post written by authorID.
func (s *PostService) Create(ctx context.Context, authorID, title, content string) (*domain.Post, error) {
	title = strings.TrimSpace(title)
	if err := domain.ValidatePost(title, content); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	post := &domain.Post{
		ID:        uuid.New().String(),
		AuthorID:  authorID,
		Title:     title,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "post created", slog.String("post_id", post.ID))
	return s.posts.GetByID(ctx, post.ID)
}

// Get returns one post.
func (s *PostService) Get(ctx context.Context, id string) (*domain.Post, error) {
	return s.posts.GetByID(ctx, id)
}

// List returns a page of post summaries, newest first.
func (s *PostService) List(ctx context.Context, params pagination.Params) (pagination.Result[domain.PostSummary], error) {
	posts, total, err := s.posts.List(ctx, params.PerPage, params.Offset())
	if err != nil {
		return pagination.Result[domain.PostSummary]{}, err
	}
	summaries := make([]domain.PostSummary, 0, len(posts))
	for i := range posts {
		summaries = append(summaries, posts[i].Summary())
	}
	return pagination.NewResult(summaries, total, params), nil
}

// Update edits a post of authorID and returns the result.
func (s *PostService) Update(ctx context.Context, authorID, id string, upd domain.PostUpdate) (*domain.Post, error) {
	post, err := s.authored(ctx, authorID, id)
	if err != nil {
		return nil, err
	}

	title, content := post.Title, post.Content
	if upd.Title != nil {
		t := strings.TrimSpace(*upd.Title)
		upd.Title = &t
		title = t
	}
	if upd.Content != nil {
		content = *upd.Content
	}
	if err := domain.ValidatePost(title, content); err != nil {
		return nil, err
	}
	if upd.Title == nil && upd.Content == nil {
		return post, nil
	}

	if err := s.posts.Update(ctx, id, authorID, upd, s.now().UTC()); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "post updated", slog.String("post_id", id))
	return s.posts.GetByID(ctx, id)
}

// Delete removes a post of authorID.
func (s *PostService) Delete(ctx context.Context, authorID, id string) error {
	if _, err := s.authored(ctx, authorID, id); err != nil {
		return err
	}
	if err := s.posts.Delete(ctx, id, authorID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "post deleted", slog.String("post_id", id))
	return nil
}

func (s *PostService) authored(ctx context.Context, authorID, id string) (*domain.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != authorID {
		return nil, apperrors.Forbidden("only the author may change this post")
	}
	return post, nil
}
