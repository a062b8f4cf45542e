package http

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Lv-up-Planner/initRepo/pkg/credential"
	apperrors "github.com/Lv-up-Planner/initRepo/pkg/errors"
	"github.com/Lv-up-Planner/initRepo/pkg/token"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/domain"
)

// memDB is an in-memory stand-in for the blog tables. Each repository view
// below shares it so a request flow sees its own writes.
type memDB struct {
	mu          sync.Mutex
	progression domain.Progression
	users       map[string]*credential.User
	passwords   map[string]string
	profiles    map[string]*domain.Profile
	todos       map[string]*domain.Todo
	posts       map[string]*domain.Post
	sessions    map[string]*token.Session
	clock       time.Time
}

func newMemDB() *memDB {
	return &memDB{
		progression: domain.DefaultProgression(),
		users:       map[string]*credential.User{},
		passwords:   map[string]string{},
		profiles:    map[string]*domain.Profile{},
		todos:       map[string]*domain.Todo{},
		posts:       map[string]*domain.Post{},
		sessions:    map[string]*token.Session{},
		clock:       time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC),
	}
}

// tick returns a strictly increasing timestamp.
func (db *memDB) tick() time.Time {
	db.clock = db.clock.Add(time.Second)
	return db.clock
}

// --- accounts and credentials ---

type memAccounts struct{ db *memDB }

func (a memAccounts) Register(_ context.Context, in domain.NewAccount, start domain.Progress) (*domain.Account, error) {
	db := a.db
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Username == in.Username {
			return nil, apperrors.AlreadyExists("user", "username", in.Username)
		}
	}
	for _, p := range db.profiles {
		if p.DisplayName == in.DisplayName {
			return nil, apperrors.AlreadyExists("profile", "display_name", in.DisplayName)
		}
	}

	now := db.tick()
	u := &credential.User{ID: uuid.NewString(), Username: in.Username, Email: in.Email, CreatedAt: now, UpdatedAt: now}
	p := &domain.Profile{
		UserID: u.ID, Username: u.Username, DisplayName: in.DisplayName, Gender: in.Gender,
		Level: start.Level, CurrentXP: start.CurrentXP, NextLevelXP: start.NextLevelXP, UpdatedAt: now,
	}
	db.users[u.ID] = u
	db.passwords[u.ID] = in.Password
	db.profiles[u.ID] = p

	cp := *p
	return &domain.Account{ID: u.ID, Username: u.Username, Email: u.Email, CreatedAt: now, Profile: &cp}, nil
}

func (a memAccounts) Verify(_ context.Context, identity, secret string) (*credential.User, error) {
	a.db.mu.Lock()
	defer a.db.mu.Unlock()
	for id, u := range a.db.users {
		if u.Username == identity && a.db.passwords[id] == secret {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.Unauthorized("invalid credentials")
}

func (a memAccounts) TouchLastLogin(context.Context, string) error { return nil }

// --- profiles ---

type memProfiles struct{ db *memDB }

func (r memProfiles) GetByUserID(_ context.Context, userID string) (*domain.Profile, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.profiles[userID]
	if !ok {
		return nil, apperrors.NotFound("profile", userID)
	}
	cp := *p
	return &cp, nil
}

func (r memProfiles) Update(_ context.Context, userID string, upd domain.ProfileUpdate) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.profiles[userID]
	if !ok {
		return apperrors.NotFound("profile", userID)
	}
	if upd.DisplayName != nil {
		for id, other := range r.db.profiles {
			if id != userID && other.DisplayName == *upd.DisplayName {
				return apperrors.AlreadyExists("profile", "display_name", *upd.DisplayName)
			}
		}
		p.DisplayName = *upd.DisplayName
	}
	if upd.Gender != nil {
		p.Gender = *upd.Gender
	}
	if upd.AvatarURL != nil {
		p.AvatarURL = *upd.AvatarURL
	}
	p.UpdatedAt = r.db.tick()
	return nil
}

func (r memProfiles) Leaderboard(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	all := make([]*domain.Profile, 0, len(r.db.profiles))
	for _, p := range r.db.profiles {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.Level != b.Level {
			return a.Level > b.Level
		}
		if a.CurrentXP != b.CurrentXP {
			return a.CurrentXP > b.CurrentXP
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.Before(b.UpdatedAt)
		}
		return a.UserID < b.UserID
	})
	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]domain.LeaderboardEntry, 0, len(all))
	for i, p := range all {
		out = append(out, domain.LeaderboardEntry{
			Rank: i + 1, UserID: p.UserID, DisplayName: p.DisplayName, Level: p.Level, CurrentXP: p.CurrentXP,
		})
	}
	return out, nil
}

// --- todos and the ledger ---

type memTodos struct{ db *memDB }

func (r memTodos) Create(_ context.Context, t *domain.Todo) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cp := *t
	r.db.todos[t.ID] = &cp
	return nil
}

func (r memTodos) GetByID(_ context.Context, id string) (*domain.Todo, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, ok := r.db.todos[id]
	if !ok || t.DeletedAt != nil {
		return nil, apperrors.NotFound("todo", id)
	}
	cp := *t
	return &cp, nil
}

func (r memTodos) ListByUser(_ context.Context, userID string) ([]domain.Todo, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []domain.Todo{}
	for _, t := range r.db.todos {
		if t.UserID == userID && t.DeletedAt == nil {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memTodos) SoftDelete(_ context.Context, userID, todoID string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, ok := r.db.todos[todoID]
	if !ok {
		return apperrors.NotFound("todo", todoID)
	}
	if t.UserID != userID {
		return apperrors.NotFound("todo", todoID)
	}
	if err := t.SoftDelete(at); err != nil {
		if err == domain.ErrTodoCompleted {
			return apperrors.Conflict("completed todos cannot be deleted")
		}
		return apperrors.NotFound("todo", todoID)
	}
	return nil
}

func (r memTodos) CompleteTodo(_ context.Context, userID, todoID string) (*domain.Completion, error) {
	db := r.db
	db.mu.Lock()
	defer db.mu.Unlock()

	t, ok := db.todos[todoID]
	if !ok {
		return nil, apperrors.NotFound("todo", todoID)
	}
	if t.UserID != userID {
		return nil, apperrors.NotFound("todo", todoID)
	}
	p := db.profiles[userID]
	if err := t.Complete(db.tick()); err != nil {
		if err == domain.ErrTodoCompleted {
			cp := *t
			return &domain.Completion{Todo: &cp, Progress: p.Progress(), AlreadyCompleted: true}, nil
		}
		return nil, apperrors.NotFound("todo", todoID)
	}

	award, err := db.progression.Apply(p.Progress(), t.XPReward)
	if err != nil {
		return nil, err
	}
	p.Level, p.CurrentXP, p.NextLevelXP = award.After.Level, award.After.CurrentXP, award.After.NextLevelXP
	p.UpdatedAt = db.clock

	cp := *t
	return &domain.Completion{
		Todo: &cp, XPGained: award.XPGained, Progress: award.After, LevelsGained: award.LevelsGained,
	}, nil
}

// --- posts ---

type memPosts struct{ db *memDB }

func (r memPosts) Create(_ context.Context, p *domain.Post) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cp := *p
	r.db.posts[p.ID] = &cp
	return nil
}

func (r memPosts) GetByID(_ context.Context, id string) (*domain.Post, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.posts[id]
	if !ok {
		return nil, apperrors.NotFound("post", id)
	}
	cp := *p
	cp.Author = r.db.users[p.AuthorID].Username
	return &cp, nil
}

func (r memPosts) List(_ context.Context, limit, offset int) ([]domain.Post, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	all := make([]domain.Post, 0, len(r.db.posts))
	for _, p := range r.db.posts {
		cp := *p
		cp.Author = r.db.users[p.AuthorID].Username
		all = append(all, cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if offset >= total {
		return []domain.Post{}, total, nil
	}
	end := min(offset+limit, total)
	return all[offset:end], total, nil
}

func (r memPosts) Update(_ context.Context, id, authorID string, upd domain.PostUpdate, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.posts[id]
	if !ok || p.AuthorID != authorID {
		return apperrors.NotFound("post", id)
	}
	if upd.Title != nil {
		p.Title = *upd.Title
	}
	if upd.Content != nil {
		p.Content = *upd.Content
	}
	p.UpdatedAt = at
	return nil
}

func (r memPosts) Delete(_ context.Context, id, authorID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.posts[id]
	if !ok || p.AuthorID != authorID {
		return apperrors.NotFound("post", id)
	}
	delete(r.db.posts, id)
	return nil
}

// --- sessions ---

type memSessions struct{ db *memDB }

func (r memSessions) Create(_ context.Context, s *token.Session) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cp := *s
	r.db.sessions[s.TokenHash] = &cp
	return nil
}

func (r memSessions) GetByHash(_ context.Context, hash string) (*token.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.sessions[hash]
	if !ok {
		return nil, apperrors.NotFound("session", hash)
	}
	cp := *s
	return &cp, nil
}

func (r memSessions) Revoke(_ context.Context, hash string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.sessions[hash]
	if !ok {
		return apperrors.NotFound("session", hash)
	}
	if s.RevokedAt == nil {
		s.RevokedAt = &at
	}
	return nil
}

func (r memSessions) RevokeAllForUser(_ context.Context, userID string, at time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for _, s := range r.db.sessions {
		if s.UserID == userID && s.RevokedAt == nil && at.Before(s.ExpiresAt) {
			s.RevokedAt = &at
			n++
		}
	}
	return n, nil
}
