package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/Lv-up-Planner/initRepo/pkg/credential"
	"github.com/Lv-up-Planner/initRepo/pkg/database"
	apperrors "github.com/Lv-up-Planner/initRepo/pkg/errors"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/domain"
)

// AccountRepository implements repository.AccountRepository. It writes the
// users row through the credential store and the profiles row itself, inside
// one transaction.
type AccountRepository struct {
	pool  database.Pool
	creds *credential.Store
}

// NewAccountRepository creates a new PostgreSQL-backed account repository.
func NewAccountRepository(pool database.Pool, creds *credential.Store) *AccountRepository {
	return &AccountRepository{pool: pool, creds: creds}
}

// Register creates the credentials and the profile of a new user. If either
// insert fails, including on a duplicate display name, neither row is kept.
func (r *AccountRepository) Register(ctx context.Context, in domain.NewAccount, start domain.Progress) (*domain.Account, error) {
	var acct *domain.Account

	err := database.WithTx(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		u, err := r.creds.WithTx(tx).Create(ctx, in.Credentials())
		if err != nil {
			return err
		}

		profile := &domain.Profile{
			UserID:      u.ID,
			Username:    u.Username,
			DisplayName: in.DisplayName,
			Gender:      in.Gender,
			Level:       start.Level,
			CurrentXP:   start.CurrentXP,
			NextLevelXP: start.NextLevelXP,
			UpdatedAt:   u.CreatedAt,
		}
		if err := insertProfile(ctx, tx, profile); err != nil {
			return err
		}

		acct = &domain.Account{
			ID:        u.ID,
			Username:  u.Username,
			Email:     u.Email,
			CreatedAt: u.CreatedAt,
			Profile:   profile,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

func insertProfile(ctx context.Context, tx pgx.Tx, p *domain.Profile) (err error) {
	query := `
		INSERT INTO profiles (user_id, display_name, gender, avatar_url, level, current_xp, next_level_xp, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	ctx, end := database.TraceQuery(ctx, "InsertProfile", query)
	defer func() { end(err) }()

	_, err = tx.Exec(ctx, query,
		p.UserID,
		p.DisplayName,
		p.Gender,
		p.AvatarURL,
		p.Level,
		p.CurrentXP,
		p.NextLevelXP,
		p.UpdatedAt,
	)
	if err != nil {
		if _, ok := database.UniqueViolation(err); ok {
			return apperrors.AlreadyExists("profile", "display_name", p.DisplayName)
		}
		return database.MapError(err, "insert profile")
	}
	return nil
}
