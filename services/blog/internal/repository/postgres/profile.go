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

// ProfileRepository implements repository.ProfileRepository using PostgreSQL.
type ProfileRepository struct {
	db  database.DBTX
	now func() time.Time
}

// NewProfileRepository creates a new PostgreSQL-backed profile repository.
func NewProfileRepository(db database.DBTX) *ProfileRepository {
	return &ProfileRepository{db: db, now: time.Now}
}

// GetByUserID returns the profile of userID joined with the username.
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (_ *domain.Profile, err error) {
	query := `
		SELECT p.user_id, u.username, p.display_name, p.gender, p.avatar_url,
		       p.level, p.current_xp, p.next_level_xp, p.updated_at
		FROM profiles p
		JOIN users u ON u.id = p.user_id
		WHERE p.user_id = $1`

	ctx, end := database.TraceQuery(ctx, "GetProfile", query)
	defer func() { end(err) }()

	var p domain.Profile
	err = r.db.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.Username,
		&p.DisplayName,
		&p.Gender,
		&p.AvatarURL,
		&p.Level,
		&p.CurrentXP,
		&p.NextLevelXP,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("profile", userID)
		}
		return nil, database.MapError(err, "get profile")
	}
	return &p, nil
}

// Update applies the non-nil fields of upd. A taken display name yields an
// AlreadyExists error.
func (r *ProfileRepository) Update(ctx context.Context, userID string, upd domain.ProfileUpdate) (err error) {
	if upd.Empty() {
		return nil
	}

	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	add := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}
	if upd.DisplayName != nil {
		add("display_name", *upd.DisplayName)
	}
	if upd.Gender != nil {
		add("gender", *upd.Gender)
	}
	if upd.AvatarURL != nil {
		add("avatar_url", *upd.AvatarURL)
	}
	add("updated_at", r.now().UTC())
	args = append(args, userID)

	query := fmt.Sprintf(`UPDATE profiles SET %s WHERE user_id = $%d`, strings.Join(sets, ", "), len(args))

	ctx, end := database.TraceQuery(ctx, "UpdateProfile", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		if _, ok := database.UniqueViolation(err); ok && upd.DisplayName != nil {
			return apperrors.AlreadyExists("profile", "display_name", *upd.DisplayName)
		}
		return database.MapError(err, "update profile")
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("profile", userID)
	}
	return nil
}

// Leaderboard returns the top limit profiles. Ties on level and XP go to
// whoever reached the score first, then to the lower user id, so the order
// is stable between calls.
func (r *ProfileRepository) Leaderboard(ctx context.Context, limit int) (_ []domain.LeaderboardEntry, err error) {
	query := `
		SELECT user_id, display_name, level, current_xp
		FROM profiles
		ORDER BY level DESC, current_xp DESC, updated_at ASC, user_id ASC
		LIMIT $1`

	ctx, end := database.TraceQuery(ctx, "Leaderboard", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, database.MapError(err, "query leaderboard")
	}
	defer rows.Close()

	entries := make([]domain.LeaderboardEntry, 0, limit)
	for rows.Next() {
		e := domain.LeaderboardEntry{Rank: len(entries) + 1}
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.Level, &e.CurrentXP); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, database.MapError(err, "iterate leaderboard")
	}
	return entries, nil
}

// lockProgress reads the level fields of userID and holds a row lock on the
// profile until tx ends. A user without a profile is an invariant violation.
func lockProgress(ctx context.Context, tx pgx.Tx, userID string) (domain.Progress, error) {
	var p domain.Progress
	err := tx.QueryRow(ctx, `
		SELECT level, current_xp, next_level_xp
		FROM profiles
		WHERE user_id = $1
		FOR UPDATE`, userID).Scan(&p.Level, &p.CurrentXP, &p.NextLevelXP)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return p, apperrors.Invariant("profile missing for user " + userID)
		}
		return p, database.MapError(err, "lock profile")
	}
	return p, nil
}

// readProgress reads the level fields of userID without locking.
func readProgress(ctx context.Context, db database.DBTX, userID string) (domain.Progress, error) {
	var p domain.Progress
	err := db.QueryRow(ctx, `
		SELECT level, current_xp, next_level_xp
		FROM profiles
		WHERE user_id = $1`, userID).Scan(&p.Level, &p.CurrentXP, &p.NextLevelXP)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return p, apperrors.Invariant("profile missing for user " + userID)
		}
		return p, database.MapError(err, "read profile")
	}
	return p, nil
}

// saveProgress writes the level fields of userID.
func saveProgress(ctx context.Context, tx pgx.Tx, userID string, p domain.Progress, at time.Time) error {
	ct, err := tx.Exec(ctx, `
		UPDATE profiles
		SET level = $1, current_xp = $2, next_level_xp = $3, updated_at = $4
		WHERE user_id = $5`, p.Level, p.CurrentXP, p.NextLevelXP, at, userID)
	if err != nil {
		return database.MapError(err, "save progress")
	}
	if ct.RowsAffected() != 1 {
		return apperrors.Invariant("profile vanished while locked for user " + userID)
	}
	return nil
}
