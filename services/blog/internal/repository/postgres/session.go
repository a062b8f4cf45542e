package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Lv-up-Planner/initRepo/pkg/database"
	apperrors "github.com/Lv-up-Planner/initRepo/pkg/errors"
	"github.com/Lv-up-Planner/initRepo/pkg/token"
)

// SessionRepository implements token.SessionStore using PostgreSQL. Rows are
// never deleted; revocation stamps revoked_at.
type SessionRepository struct {
	db database.DBTX
}

var _ token.SessionStore = (*SessionRepository)(nil)

// NewSessionRepository creates a new PostgreSQL-backed session store.
func NewSessionRepository(db database.DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create persists a new session record.
func (r *SessionRepository) Create(ctx context.Context, s *token.Session) (err error) {
	query := `
		INSERT INTO sessions (id, user_id, token_hash, user_agent, ip, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	ctx, end := database.TraceQuery(ctx, "CreateSession", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		s.ID,
		s.UserID,
		s.TokenHash,
		s.Device.UserAgent,
		s.Device.IP,
		s.IssuedAt,
		s.ExpiresAt,
	)
	if err != nil {
		return database.MapError(err, "insert session")
	}
	return nil
}

// GetByHash returns the session whose token hash matches, revoked or not.
func (r *SessionRepository) GetByHash(ctx context.Context, tokenHash string) (_ *token.Session, err error) {
	query := `
		SELECT s.id, s.user_id, u.username, s.token_hash, s.user_agent, s.ip,
		       s.issued_at, s.expires_at, s.revoked_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token_hash = $1`

	ctx, end := database.TraceQuery(ctx, "GetSession", query)
	defer func() { end(err) }()

	var s token.Session
	err = r.db.QueryRow(ctx, query, tokenHash).Scan(
		&s.ID,
		&s.UserID,
		&s.Identity,
		&s.TokenHash,
		&s.Device.UserAgent,
		&s.Device.IP,
		&s.IssuedAt,
		&s.ExpiresAt,
		&s.RevokedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("session", "")
		}
		return nil, database.MapError(err, "get session")
	}
	return &s, nil
}

// Revoke stamps revoked_at on the session. An already revoked session keeps
// its original timestamp.
func (r *SessionRepository) Revoke(ctx context.Context, tokenHash string, at time.Time) (err error) {
	query := `UPDATE sessions SET revoked_at = COALESCE(revoked_at, $1) WHERE token_hash = $2`

	ctx, end := database.TraceQuery(ctx, "RevokeSession", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, at, tokenHash)
	if err != nil {
		return database.MapError(err, "revoke session")
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("session", "")
	}
	return nil
}

// RevokeAllForUser revokes every live session of userID.
func (r *SessionRepository) RevokeAllForUser(ctx context.Context, userID string, at time.Time) (_ int64, err error) {
	query := `
		UPDATE sessions SET revoked_at = $1
		WHERE user_id = $2 AND revoked_at IS NULL AND expires_at > $1`

	ctx, end := database.TraceQuery(ctx, "RevokeAllSessions", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, at, userID)
	if err != nil {
		return 0, database.MapError(err, "revoke sessions")
	}
	return ct.RowsAffected(), nil
}
