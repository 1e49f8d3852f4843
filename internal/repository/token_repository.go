package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/chatops-labs/chatbot-api/internal/models"
)

// TokenRepository provides database access for refresh tokens. Rows are
// append-only except for the revoked flag, which moves false -> true exactly
// once and never reverts.
type TokenRepository struct {
	db *sqlx.DB
}

// NewTokenRepository creates a new instance of TokenRepository.
func NewTokenRepository(db *sqlx.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create persists a new refresh token row. Timestamps are normalized to UTC.
func (r *TokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	} else {
		token.CreatedAt = token.CreatedAt.UTC()
	}
	token.ExpiresAt = token.ExpiresAt.UTC()

	const query = `INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, revoked, revoked_at, user_agent, ip_address) VALUES (:id, :user_id, :token, :expires_at, :created_at, :revoked, :revoked_at, :user_agent, :ip_address)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// GetValid returns the non-revoked row for a token value, or sql.ErrNoRows.
// Expiry is deliberately not filtered here: the caller distinguishes expired
// from revoked so the audit trail keeps separate reason codes.
func (r *TokenRepository) GetValid(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, user_id, token, expires_at, created_at, revoked, revoked_at, user_agent, ip_address FROM refresh_tokens WHERE token = $1 AND revoked = FALSE LIMIT 1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	return &rt, nil
}

// GetAllValid returns all non-revoked rows for a user.
func (r *TokenRepository) GetAllValid(ctx context.Context, userID string) ([]models.RefreshToken, error) {
	const query = `SELECT id, user_id, token, expires_at, created_at, revoked, revoked_at, user_agent, ip_address FROM refresh_tokens WHERE user_id = $1 AND revoked = FALSE`
	var tokens []models.RefreshToken
	if err := r.db.SelectContext(ctx, &tokens, query, userID); err != nil {
		return nil, fmt.Errorf("list refresh tokens: %w", err)
	}
	return tokens, nil
}

// Revoke marks the matching non-revoked row as revoked. Updating zero rows
// is not an error; a lost race against a concurrent revoke is benign.
func (r *TokenRepository) Revoke(ctx context.Context, token string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE token = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, token, revokedAt.UTC()); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAll marks every non-revoked row owned by a user as revoked.
func (r *TokenRepository) RevokeAll(ctx context.Context, userID string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, userID, revokedAt.UTC()); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}
