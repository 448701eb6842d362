package repository

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/receipts-compiler/internal/common"
	"github.com/joseph-ayodele/receipts-compiler/internal/entity"
)

// SessionRepository verifies bearer tokens against the auth_sessions table.
type SessionRepository interface {
	Verify(ctx context.Context, token string) (entity.Identity, error)
	Issue(ctx context.Context, userID string, ttl time.Duration) (string, error)
}

type sessionRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewSessionRepository(db *DB, logger *slog.Logger) SessionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &sessionRepository{db: db, logger: logger}
}

// Verify returns the identity owning token. Unknown and expired tokens wrap
// common.ErrUnauthorized; datastore failures wrap common.ErrDatabase.
func (r *sessionRepository) Verify(ctx context.Context, token string) (entity.Identity, error) {
	if token == "" {
		return entity.Identity{}, fmt.Errorf("token required: %w", common.ErrUnauthorized)
	}
	var (
		userID  string
		expires dbTime
	)
	err := r.db.SQL.QueryRowContext(ctx,
		`SELECT user_id, expires_at FROM auth_sessions WHERE token_hash = $1`, hashToken(token),
	).Scan(&userID, &expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Identity{}, fmt.Errorf("invalid token: %w", common.ErrUnauthorized)
		}
		r.logger.Error("failed to look up session", "error", err)
		return entity.Identity{}, fmt.Errorf("lookup session: %w: %v", common.ErrDatabase, err)
	}
	if !time.Now().UTC().Before(expires.Time) {
		return entity.Identity{}, fmt.Errorf("token expired: %w", common.ErrUnauthorized)
	}
	return entity.Identity{UserID: userID, ExpiresAt: expires.Time}, nil
}

// Issue mints a random token for userID and stores its hash.
func (r *sessionRepository) Issue(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("invalid user id")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		token, err := generateToken()
		if err != nil {
			return "", err
		}
		_, err = r.db.SQL.ExecContext(ctx,
			`INSERT INTO auth_sessions (token_hash, user_id, created_at, expires_at) VALUES ($1, $2, $3, $4)`,
			hashToken(token), userID, now, now.Add(ttl),
		)
		if err == nil {
			return token, nil
		}
		r.logger.Warn("failed to insert session", "user_id", userID, "attempt", i+1, "error", err)
	}
	return "", errors.New("could not issue token")
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
