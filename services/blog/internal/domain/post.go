package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/Lv-up-Planner/initRepo/pkg/errors"
)

// ExcerptLength is the number of characters shown in post listings.
const ExcerptLength = 120

// Post limits.
const (
	MaxPostTitleLength   = 200
	MaxPostContentLength = 20000
)

// Post is a blog post.
type Post struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Author    string    `json:"author"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PostSummary is the listing view of a post.
type PostSummary struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Author    string    `json:"author"`
	Title     string    `json:"title"`
	Excerpt   string    `json:"excerpt"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary returns the listing view of p.
func (p *Post) Summary() PostSummary {
	return PostSummary{
		ID:        p.ID,
		AuthorID:  p.AuthorID,
		Author:    p.Author,
		Title:     p.Title,
		Excerpt:   Excerpt(p.Content, ExcerptLength),
		CreatedAt: p.CreatedAt,
	}
}

// Excerpt cuts s to at most n characters, appending "..." when it cut.
func Excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// PostUpdate edits a post. Nil fields are left unchanged.
type PostUpdate struct {
	Title   *string
	Content *string
}

// ValidatePost checks title and content lengths.
func ValidatePost(title, content string) error {
	if strings.TrimSpace(title) == "" {
		return apperrors.InvalidInput("title is required")
	}
	if utf8.RuneCountInString(title) > MaxPostTitleLength {
		return apperrors.InvalidInput("title must be at most 200 characters")
	}
	if strings.TrimSpace(content) == "" {
		return apperrors.InvalidInput("content is required")
	}
	if utf8.RuneCountInString(content) > MaxPostContentLength {
		return apperrors.InvalidInput("content must be at most 20000 characters")
	}
	return nil
}
