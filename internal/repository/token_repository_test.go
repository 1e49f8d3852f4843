package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/chatops-labs/chatbot-api/internal/models"
)

func newTokenRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTokenRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newTokenRepoMock(t)
	defer cleanup()

	repo := NewTokenRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	token := &models.RefreshToken{
		UserID:    "u1",
		Token:     "opaque-value",
		ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
		UserAgent: "cli/1.0",
		IPAddress: "10.0.0.1",
	}
	require.NoError(t, repo.Create(context.Background(), token))
	require.NotEmpty(t, token.ID)
	require.False(t, token.CreatedAt.IsZero())
	require.Equal(t, time.UTC, token.ExpiresAt.Location())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepositoryCreateKeepsAnchor(t *testing.T) {
	db, mock, cleanup := newTokenRepoMock(t)
	defer cleanup()

	repo := NewTokenRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	anchor := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	token := &models.RefreshToken{
		UserID:    "u1",
		Token:     "rotated-value",
		ExpiresAt: anchor.Add(7 * 24 * time.Hour),
		CreatedAt: anchor,
	}
	require.NoError(t, repo.Create(context.Background(), token))
	// A caller-provided CreatedAt is preserved, not overwritten with now.
	require.True(t, token.CreatedAt.Equal(anchor))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepositoryGetValid(t *testing.T) {
	db, mock, cleanup := newTokenRepoMock(t)
	defer cleanup()

	repo := NewTokenRepository(db)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "user_id", "token", "expires_at", "created_at", "revoked", "revoked_at", "user_agent", "ip_address"}).
		AddRow("rt-1", "u1", "opaque-value", now.Add(time.Hour), now, false, nil, "cli/1.0", "10.0.0.1")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, token, expires_at")).
		WithArgs("opaque-value").
		WillReturnRows(rows)

	found, err := repo.GetValid(context.Background(), "opaque-value")
	require.NoError(t, err)
	require.Equal(t, "u1", found.UserID)
	require.False(t, found.Revoked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepositoryGetValidNotFound(t *testing.T) {
	db, mock, cleanup := newTokenRepoMock(t)
	defer cleanup()

	repo := NewTokenRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, token, expires_at")).
		WithArgs("unknown").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetValid(context.Background(), "unknown")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepositoryGetAllValid(t *testing.T) {
	db, mock, cleanup := newTokenRepoMock(t)
	defer cleanup()

	repo := NewTokenRepository(db)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "user_id", "token", "expires_at", "created_at", "revoked", "revoked_at", "user_agent", "ip_address"}).
		AddRow("rt-1", "u1", "value-one", now.Add(time.Hour), now, false, nil, "", "").
		AddRow("rt-2", "u1", "value-two", now.Add(time.Hour), now, false, nil, "", "")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, token, expires_at")).
		WithArgs("u1").
		WillReturnRows(rows)

	tokens, err := repo.GetAllValid(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepositoryRevoke(t *testing.T) {
	db, mock, cleanup := newTokenRepoMock(t)
	defer cleanup()

	repo := NewTokenRepository(db)
	revokedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked = TRUE")).
		WithArgs("opaque-value", revokedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Revoke(context.Background(), "opaque-value", revokedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepositoryRevokeZeroRowsIsNotAnError(t *testing.T) {
	db, mock, cleanup := newTokenRepoMock(t)
	defer cleanup()

	repo := NewTokenRepository(db)
	revokedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked = TRUE")).
		WithArgs("already-revoked", revokedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Revoke(context.Background(), "already-revoked", revokedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepositoryRevokeAll(t *testing.T) {
	db, mock, cleanup := newTokenRepoMock(t)
	defer cleanup()

	repo := NewTokenRepository(db)
	revokedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked = TRUE")).
		WithArgs("u1", revokedAt).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, repo.RevokeAll(context.Background(), "u1", revokedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}
