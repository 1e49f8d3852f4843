package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/chatops-labs/chatbot-api/internal/models"
	appErrors "github.com/chatops-labs/chatbot-api/pkg/errors"
)

// TokenService issues and verifies short-lived access tokens. It is
// stateless: nothing is persisted, so an access token cannot be revoked
// before its natural expiry. Revocable session state lives with the refresh
// tokens managed by SessionService.
type TokenService struct {
	secret []byte
	expiry time.Duration
}

// NewTokenService constructs a TokenService with the process-wide signing
// secret. The secret is injected rather than read from a global so tests can
// run with distinct secrets.
func NewTokenService(secret string, expiry time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), expiry: expiry}
}

// Expiry returns the configured access token lifetime.
func (s *TokenService) Expiry() time.Duration {
	return s.expiry
}

// Issue signs a new access token for the user.
func (s *TokenService) Issue(user *models.User) (string, time.Time, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(s.expiry)
	claims := &models.AccessClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify parses and validates an access token, returning its claims. It
// fails uniformly on a bad signature, an unexpected signing method, a
// malformed token, or expiry. Whether the subject still resolves to a live
// account is the caller's check, not this component's.
func (s *TokenService) Verify(tokenString string) (*models.AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.AccessClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}
