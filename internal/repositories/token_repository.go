package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// TokenRepository stores push destinations per user.
type TokenRepository interface {
	RegisterToken(ctx context.Context, userID int, token string, platform *string) error
	ListTokens(ctx context.Context, userID int) ([]string, error)
	DeleteToken(ctx context.Context, token string) error
}

// TokenRepo is a sqlx-backed implementation.
type TokenRepo struct {
	db *sqlx.DB
}

// NewTokenRepo constructs a TokenRepo.
func NewTokenRepo(db *sqlx.DB) *TokenRepo {
	return &TokenRepo{db: db}
}

// RegisterToken upserts a device token. A token already registered to another
// user moves to userID.
func (r *TokenRepo) RegisterToken(ctx context.Context, userID int, token string, platform *string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO user_tokens (user_id, device_token, platform) VALUES ($1, $2, $3)
        ON CONFLICT (device_token) DO UPDATE SET user_id = EXCLUDED.user_id, platform = COALESCE(EXCLUDED.platform, user_tokens.platform)`, userID, token, platform)
	return translate(err)
}

// ListTokens returns every non-empty token registered for the user.
func (r *TokenRepo) ListTokens(ctx context.Context, userID int) ([]string, error) {
	tokens := []string{}
	err := r.db.SelectContext(ctx, &tokens, `SELECT device_token FROM user_tokens WHERE user_id=$1 AND device_token <> '' ORDER BY id`, userID)
	return tokens, err
}

// DeleteToken removes a token regardless of owner.
func (r *TokenRepo) DeleteToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM user_tokens WHERE device_token=$1`, token)
	return err
}
