package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Lv-up-Planner/initRepo/pkg/database"
	apperrors "github.com/Lv-up-Planner/initRepo/pkg/errors"
)

const userColumns = `id, username, email, password_hash, created_at, updated_at, last_login_at`

// Store is the credential store. Writers for the same identity are
// serialized by a transaction-scoped advisory lock, so two concurrent
// registrations of one username never both pass the existence check.
type Store struct {
	db        database.DBTX
	cost      int
	dummyHash []byte
	logger    *slog.Logger
	now       func() time.Time
}

// NewStore creates a Store over db. A cost of zero selects DefaultBcryptCost.
func NewStore(db database.DBTX, cost int, logger *slog.Logger) (*Store, error) {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Compared against when the identity is unknown, so that path costs the
	// same as a wrong password.
	dummy, err := bcrypt.GenerateFromPassword([]byte("dummy-secret-for-timing"), cost)
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}

	return &Store{db: db, cost: cost, dummyHash: dummy, logger: logger, now: time.Now}, nil
}

// WithTx returns a Store that runs every statement inside tx.
func (s *Store) WithTx(tx pgx.Tx) *Store {
	cpy := *s
	cpy.db = tx
	return &cpy
}

// Create hashes the password and inserts a new user. A taken username or
// email yields an AlreadyExists error and no row.
func (s *Store) Create(ctx context.Context, in NewUser) (*User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, apperrors.InvalidInput("username is required")
	}
	if err := ValidateSecret(in.Password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	u := &User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, database.MapError(err, "begin create user")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, username); err != nil {
		return nil, database.MapError(err, "lock username")
	}

	query := `
		INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = tx.Exec(ctx, query, u.ID, u.Username, nullable(u.Email), u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if constraint, ok := database.UniqueViolation(err); ok {
			if strings.Contains(constraint, "email") {
				return nil, apperrors.AlreadyExists("user", "email", u.Email)
			}
			return nil, apperrors.AlreadyExists("user", "username", u.Username)
		}
		return nil, database.MapError(err, "insert user")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, database.MapError(err, "commit create user")
	}

	return u, nil
}

// Verify checks secret against the stored hash of identity, which may be a
// username or an email address. Unknown identity and wrong secret produce the
// same error after the same amount of work; only the log tells them apart.
func (s *Store) Verify(ctx context.Context, identity, secret string) (*User, error) {
	identity = normalizeIdentity(identity)

	u, err := s.GetByIdentity(ctx, identity)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(secret))
		s.logger.WarnContext(ctx, "credential verification failed",
			slog.String("identity", identity),
			slog.String("reason", "unknown identity"),
		)
		return nil, invalidCredentials()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(secret)); err != nil {
		s.logger.WarnContext(ctx, "credential verification failed",
			slog.String("user_id", u.ID),
			slog.String("reason", "secret mismatch"),
		)
		return nil, invalidCredentials()
	}

	return u, nil
}

// GetByID returns the user with the given id.
func (s *Store) GetByID(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NotFound("user", id)
	}
	return s.scanUser(ctx, id, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByIdentity returns the user whose username or email equals identity.
func (s *Store) GetByIdentity(ctx context.Context, identity string) (*User, error) {
	identity = normalizeIdentity(identity)
	if identity == "" {
		return nil, apperrors.NotFound("user", identity)
	}
	return s.scanUser(ctx, identity,
		`SELECT `+userColumns+` FROM users WHERE username = $1 OR email = $1 LIMIT 1`, identity)
}

// TouchLastLogin stamps the user's last successful login.
func (s *Store) TouchLastLogin(ctx context.Context, id string) error {
	ct, err := s.db.Exec(ctx, `UPDATE users SET last_login_at = $1 WHERE id = $2`, s.now().UTC(), id)
	if err != nil {
		return database.MapError(err, "touch last login")
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", id)
	}
	return nil
}

// ChangePassword replaces the hash after checking the current secret. The row
// is locked for the duration so a concurrent change cannot interleave.
func (s *Store) ChangePassword(ctx context.Context, id, current, next string) error {
	if current == next {
		return apperrors.InvalidInput("new password must be different from current password")
	}
	if err := ValidateSecret(next); err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return database.MapError(err, "begin change password")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var hash string
	err = tx.QueryRow(ctx, `SELECT password_hash FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("user", id)
		}
		return database.MapError(err, "lock user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(current)); err != nil {
		return apperrors.Unauthorized("current password is incorrect")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		string(newHash), s.now().UTC(), id); err != nil {
		return database.MapError(err, "update password")
	}

	if err := tx.Commit(ctx); err != nil {
		return database.MapError(err, "commit change password")
	}
	return nil
}

// Stats counts users and those who logged in during the last 24 hours.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE last_login_at > $1)
		FROM users`, s.now().UTC().Add(-24*time.Hour)).Scan(&st.TotalUsers, &st.ActiveLast24)
	if err != nil {
		return nil, database.MapError(err, "count users")
	}
	return &st, nil
}

func (s *Store) scanUser(ctx context.Context, key, query string, args ...any) (_ *User, err error) {
	ctx, end := database.TraceQuery(ctx, "GetUser", query)
	defer func() { end(err) }()

	var (
		u     User
		email *string
	)
	err = s.db.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Username,
		&email,
		&u.PasswordHash,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.LastLoginAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("user", key)
		}
		return nil, database.MapError(err, "scan user")
	}
	if email != nil {
		u.Email = *email
	}
	return &u, nil
}

// nullable maps the empty string to SQL NULL so optional unique columns do
// not collide on "".
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
