package token

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Lv-up-Planner/initRepo/pkg/errors"
)

// DefaultSessionTTL is the lifetime of an opaque session unless configured.
const DefaultSessionTTL = 30 * 24 * time.Hour

// handleBytes is the entropy of an opaque handle.
const handleBytes = 32

// Session is the server-side record behind an opaque token. Only the SHA-256
// of the handle is stored, so a leaked table does not leak live tokens.
type Session struct {
	ID        string
	UserID    string
	Identity  string
	TokenHash string
	Device    Device
	IssuedAt  time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Revoked reports whether the session was explicitly revoked.
func (s *Session) Revoked() bool {
	return s.RevokedAt != nil
}

// SessionStore persists session records. Rows are never deleted: revocation
// only stamps RevokedAt. Lookups of an absent hash return an error matching
// apperrors.ErrNotFound.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	GetByHash(ctx context.Context, tokenHash string) (*Session, error)
	Revoke(ctx context.Context, tokenHash string, at time.Time) error
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error)
}

// SessionAuthority issues opaque, revocable session tokens.
type SessionAuthority struct {
	store  SessionStore
	ttl    time.Duration
	now    func() time.Time
	random io.Reader
}

// NewSessionAuthority creates a SessionAuthority backed by store.
func NewSessionAuthority(store SessionStore, ttl time.Duration) *SessionAuthority {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionAuthority{
		store:  store,
		ttl:    ttl,
		now:    time.Now,
		random: rand.Reader,
	}
}

// WithClock returns a copy of the authority that reads time from now.
func (a *SessionAuthority) WithClock(now func() time.Time) *SessionAuthority {
	cpy := *a
	cpy.now = now
	return &cpy
}

// HashToken returns the storage key for an opaque handle.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Issue generates a random handle and persists its session record.
func (a *SessionAuthority) Issue(ctx context.Context, subject Subject) (*Issued, error) {
	if subject.UserID == "" {
		return nil, fmt.Errorf("issue session: empty subject")
	}

	buf := make([]byte, handleBytes)
	if _, err := io.ReadFull(a.random, buf); err != nil {
		return nil, fmt.Errorf("generate session handle: %w", err)
	}
	handle := base64.RawURLEncoding.EncodeToString(buf)

	now := a.now().UTC()
	s := &Session{
		ID:        uuid.NewString(),
		UserID:    subject.UserID,
		Identity:  subject.Identity,
		TokenHash: HashToken(handle),
		Device:    subject.Device,
		IssuedAt:  now,
		ExpiresAt: now.Add(a.ttl),
	}
	if err := a.store.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	return &Issued{Token: handle, Kind: KindOpaque, ExpiresAt: s.ExpiresAt}, nil
}

// Verify looks the handle up and rejects it when the record is absent,
// revoked, or past its expiry on this process's clock. Store failures other
// than a missing record are returned as-is so the caller sees Unavailable
// rather than a spurious 401.
func (a *SessionAuthority) Verify(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, authFailure(ErrMalformed)
	}

	s, err := a.store.GetByHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, authFailure(ErrUnknown)
		}
		return nil, err
	}

	if s.Revoked() {
		return nil, authFailure(ErrRevoked)
	}
	if !a.now().Before(s.ExpiresAt) {
		return nil, authFailure(ErrExpired)
	}

	return &Claims{
		UserID:    s.UserID,
		Identity:  s.Identity,
		IssuedAt:  s.IssuedAt,
		ExpiresAt: s.ExpiresAt,
	}, nil
}

// Revoke marks the session behind token as revoked. Revocation takes effect
// for every later Verify immediately. Revoking twice is not an error.
func (a *SessionAuthority) Revoke(ctx context.Context, token string) error {
	if err := a.store.Revoke(ctx, HashToken(token), a.now().UTC()); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return authFailure(ErrUnknown)
		}
		return err
	}
	return nil
}

// RevokeAll revokes every live session of userID and returns how many were
// revoked.
func (a *SessionAuthority) RevokeAll(ctx context.Context, userID string) (int64, error) {
	return a.store.RevokeAllForUser(ctx, userID, a.now().UTC())
}
