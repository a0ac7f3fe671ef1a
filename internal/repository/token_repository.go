package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// TokenRepo persists the single live refresh token of a user in the
// users.refresh_token column.  Writing a new token replaces the previous
// one, which is what keeps one active session per user.
type TokenRepo struct{ DB *sqlx.DB }

func NewTokenRepo(db *sqlx.DB) *TokenRepo { return &TokenRepo{DB: db} }

// SetRefreshToken stores token as the user's current session marker.
func (r *TokenRepo) SetRefreshToken(ctx context.Context, userID, token string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token=? WHERE id=?", token, userID)
	return err
}

// Clear removes the stored refresh token.  It succeeds when nothing is
// stored or the user no longer exists.
func (r *TokenRepo) Clear(ctx context.Context, userID string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token=NULL WHERE id=?", userID)
	return err
}

// Current returns the stored refresh token, "" when there is no session.
func (r *TokenRepo) Current(ctx context.Context, userID string) (string, error) {
	var tok sql.NullString
	err := r.DB.GetContext(ctx, &tok,
		"SELECT refresh_token FROM users WHERE id=? LIMIT 1", userID)
	if err != nil {
		return "", notFound(err)
	}
	return tok.String, nil
}
