package middleware

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/chatops-labs/chatbot-api/internal/models"
	appErrors "github.com/chatops-labs/chatbot-api/pkg/errors"
	"github.com/chatops-labs/chatbot-api/pkg/response"
)

// ContextUserKey is the gin context key storing verified access claims.
const ContextUserKey = "currentUser"

type tokenVerifier interface {
	Verify(token string) (*models.AccessClaims, error)
}

type userResolver interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// JWT protects routes by requiring a valid access token whose subject still
// resolves to a live account. A signed token for a deleted user is rejected
// the same way as a forged one.
func JWT(verifier tokenVerifier, users userResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := verifier.Verify(parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		if _, err := users.FindByID(c.Request.Context(), claims.UserID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				response.Error(c, appErrors.ErrUnauthorized)
			} else {
				response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve user"))
			}
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}
