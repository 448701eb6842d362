package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/joseph-ayodele/receipts-compiler/internal/entity"
)

type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Profile, error)
	IsPrivileged(ctx context.Context, identity entity.Identity) (bool, error)
}

type profileRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewProfileRepository(db *DB, logger *slog.Logger) ProfileRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &profileRepository{db: db, logger: logger}
}

func (r *profileRepository) GetByID(ctx context.Context, id string) (*entity.Profile, error) {
	p := &entity.Profile{}
	err := r.db.SQL.QueryRowContext(ctx,
		`SELECT id, full_name, is_admin FROM profiles WHERE id = $1`, id,
	).Scan(&p.ID, &p.FullName, &p.IsAdmin)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// IsPrivileged reports whether the caller's profile carries the administrator
// flag. A missing profile is not privileged.
func (r *profileRepository) IsPrivileged(ctx context.Context, identity entity.Identity) (bool, error) {
	p, err := r.GetByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		r.logger.Error("failed to look up profile", "user_id", identity.UserID, "error", err)
		return false, err
	}
	return p.IsAdmin, nil
}
