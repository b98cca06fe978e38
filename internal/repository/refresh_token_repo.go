package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/SoccerCoachBack/internal/models"
)

// ErrRefreshTokenNotFound is returned by both token stores when the record is
// missing or was already consumed.
var ErrRefreshTokenNotFound = errors.New("refresh token not found")

type RefreshTokenRepository struct {
	db DBTX
}

func NewRefreshTokenRepository(db DBTX) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`
	return r.db.QueryRow(ctx, query, token.ID, token.UserID, token.ExpiresAt).Scan(&token.CreatedAt)
}

// Consume deletes and returns the record in one statement. Two concurrent
// refreshes with the same token cannot both receive it.
func (r *RefreshTokenRepository) Consume(ctx context.Context, tokenID string) (*models.RefreshToken, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE id = $1
		RETURNING id, user_id, expires_at, created_at
	`
	var token models.RefreshToken
	err := r.db.QueryRow(ctx, query, tokenID).Scan(&token.ID, &token.UserID, &token.ExpiresAt, &token.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, err
	}
	return &token, nil
}

func (r *RefreshTokenRepository) Delete(ctx context.Context, tokenID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE id = $1`, tokenID)
	return err
}

func (r *RefreshTokenRepository) DeleteByUserID(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	return err
}

func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
