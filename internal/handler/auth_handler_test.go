package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	internalmiddleware "github.com/chatops-labs/chatbot-api/internal/middleware"
	"github.com/chatops-labs/chatbot-api/internal/models"
	"github.com/chatops-labs/chatbot-api/internal/service"
)

type memUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
	next  int
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]*models.User)}
}

func (s *memUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *memUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (s *memUserStore) Create(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	user.ID = "user-" + strconv.Itoa(s.next)
	s.users[user.ID] = user
	return nil
}

func (s *memUserStore) UpdatePassword(ctx context.Context, id, hashedPassword string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.HashedPassword = hashedPassword
	}
	return nil
}

type memTokenStore struct {
	mu     sync.Mutex
	tokens map[string]*models.RefreshToken
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{tokens: make(map[string]*models.RefreshToken)}
}

func (s *memTokenStore) Create(ctx context.Context, token *models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token.ID == "" {
		token.ID = token.Token[:8]
	}
	copied := *token
	s.tokens[token.Token] = &copied
	return nil
}

func (s *memTokenStore) GetValid(ctx context.Context, token string) (*models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.tokens[token]
	if !ok || rt.Revoked {
		return nil, sql.ErrNoRows
	}
	copied := *rt
	return &copied, nil
}

func (s *memTokenStore) Revoke(ctx context.Context, token string, revokedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rt, ok := s.tokens[token]; ok && !rt.Revoked {
		rt.Revoked = true
		rt.RevokedAt = &revokedAt
	}
	return nil
}

func (s *memTokenStore) RevokeAll(ctx context.Context, userID string, revokedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rt := range s.tokens {
		if rt.UserID == userID && !rt.Revoked {
			rt.Revoked = true
			rt.RevokedAt = &revokedAt
		}
	}
	return nil
}

func buildAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := newMemUserStore()
	tokens := newMemTokenStore()
	issuer := service.NewTokenService("handler-test-secret", 15*time.Minute)
	sessions := service.NewSessionService(tokens, users, issuer, nil, nil, nil, nil, service.SessionConfig{
		RefreshTokenExpiry:  7 * 24 * time.Hour,
		RefreshTokenMaxLife: 30 * 24 * time.Hour,
		BcryptCost:          bcrypt.MinCost,
	})
	userSvc := service.NewUserService(users, users, nil, nil, nil, bcrypt.MinCost)

	auth := NewAuthHandler(userSvc, sessions, CookieConfig{MaxAge: int((7 * 24 * time.Hour).Seconds())})
	jwtGuard := internalmiddleware.JWT(issuer, users)

	router := gin.New()
	group := router.Group("/api/v1/users")
	group.POST("/register", auth.Register)
	group.POST("/login", auth.Login)
	group.POST("/refresh", auth.Refresh)
	group.POST("/logout", jwtGuard, auth.Logout)
	group.POST("/logout-all", jwtGuard, auth.LogoutAll)
	return router
}

func performRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func postJSON(router *gin.Engine, path, body string, decorate ...func(*http.Request)) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for _, fn := range decorate {
		fn(req)
	}
	return performRequest(router, req)
}

func registerAndLogin(t *testing.T, router *gin.Engine) (accessToken string, refreshCookie *http.Cookie) {
	t.Helper()
	resp := postJSON(router, "/api/v1/users/register", `{"name":"Ada","email":"ada@x.com","password":"Password1!"}`)
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = postJSON(router, "/api/v1/users/login", `{"email":"ada@x.com","password":"Password1!"}`)
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope struct {
		Data models.TokenPair `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.NotEmpty(t, envelope.Data.AccessToken)

	for _, cookie := range resp.Result().Cookies() {
		if cookie.Name == RefreshTokenCookie {
			refreshCookie = cookie
		}
	}
	require.NotNil(t, refreshCookie, "login must set the refresh token cookie")
	require.True(t, refreshCookie.HttpOnly)
	return envelope.Data.AccessToken, refreshCookie
}

func TestRegisterEndpoint(t *testing.T) {
	router := buildAuthRouter(t)

	t.Run("success", func(t *testing.T) {
		resp := postJSON(router, "/api/v1/users/register", `{"name":"Ada","email":"new@x.com","password":"Password1!"}`)
		require.Equal(t, http.StatusCreated, resp.Code)
		require.Contains(t, resp.Body.String(), `"email":"new@x.com"`)
		// The password never appears in any form in the response.
		require.NotContains(t, resp.Body.String(), "password")
	})

	t.Run("duplicate email", func(t *testing.T) {
		resp := postJSON(router, "/api/v1/users/register", `{"name":"Dup","email":"new@x.com","password":"Password1!"}`)
		require.Equal(t, http.StatusConflict, resp.Code)
	})

	t.Run("weak password", func(t *testing.T) {
		resp := postJSON(router, "/api/v1/users/register", `{"name":"Weak","email":"weak@x.com","password":"letters"}`)
		require.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		resp := postJSON(router, "/api/v1/users/register", `{"name":`)
		require.Equal(t, http.StatusBadRequest, resp.Code)
	})
}

func TestLoginEndpoint(t *testing.T) {
	router := buildAuthRouter(t)
	registerAndLogin(t, router)

	t.Run("wrong password", func(t *testing.T) {
		resp := postJSON(router, "/api/v1/users/login", `{"email":"ada@x.com","password":"WrongPass1!"}`)
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("unknown email matches wrong password response", func(t *testing.T) {
		wrongPass := postJSON(router, "/api/v1/users/login", `{"email":"ada@x.com","password":"WrongPass1!"}`)
		unknown := postJSON(router, "/api/v1/users/login", `{"email":"ghost@x.com","password":"Password1!"}`)
		require.Equal(t, wrongPass.Code, unknown.Code)
		require.JSONEq(t, wrongPass.Body.String(), unknown.Body.String())
	})
}

func TestRefreshEndpoint(t *testing.T) {
	router := buildAuthRouter(t)
	_, cookie := registerAndLogin(t, router)

	t.Run("cookie flow rotates the value", func(t *testing.T) {
		resp := postJSON(router, "/api/v1/users/refresh", "", func(r *http.Request) { r.AddCookie(cookie) })
		require.Equal(t, http.StatusOK, resp.Code)

		var rotated *http.Cookie
		for _, c := range resp.Result().Cookies() {
			if c.Name == RefreshTokenCookie {
				rotated = c
			}
		}
		require.NotNil(t, rotated)
		require.NotEqual(t, cookie.Value, rotated.Value)

		// The spent value is rejected on replay.
		resp = postJSON(router, "/api/v1/users/refresh", "", func(r *http.Request) { r.AddCookie(cookie) })
		require.Equal(t, http.StatusUnauthorized, resp.Code)

		cookie = rotated
	})

	t.Run("body fallback", func(t *testing.T) {
		resp := postJSON(router, "/api/v1/users/refresh", `{"refresh_token":"`+cookie.Value+`"}`)
		require.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		resp := postJSON(router, "/api/v1/users/refresh", "")
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		resp := postJSON(router, "/api/v1/users/refresh", `{"refresh_token":"garbage"}`)
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	})
}

func TestLogoutEndpoint(t *testing.T) {
	router := buildAuthRouter(t)
	access, cookie := registerAndLogin(t, router)
	bearer := func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+access) }

	t.Run("requires authentication", func(t *testing.T) {
		resp := postJSON(router, "/api/v1/users/logout", "")
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("revokes and clears the cookie", func(t *testing.T) {
		resp := postJSON(router, "/api/v1/users/logout", "", bearer, func(r *http.Request) { r.AddCookie(cookie) })
		require.Equal(t, http.StatusNoContent, resp.Code)

		var cleared *http.Cookie
		for _, c := range resp.Result().Cookies() {
			if c.Name == RefreshTokenCookie {
				cleared = c
			}
		}
		require.NotNil(t, cleared)
		require.Empty(t, cleared.Value)

		// The revoked token no longer refreshes.
		resp = postJSON(router, "/api/v1/users/refresh", "", func(r *http.Request) { r.AddCookie(cookie) })
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("idempotent on repeat", func(t *testing.T) {
		resp := postJSON(router, "/api/v1/users/logout", "", bearer, func(r *http.Request) { r.AddCookie(cookie) })
		require.Equal(t, http.StatusNoContent, resp.Code)
	})

	t.Run("no session is still success", func(t *testing.T) {
		resp := postJSON(router, "/api/v1/users/logout", "", bearer)
		require.Equal(t, http.StatusNoContent, resp.Code)
	})
}

func TestLogoutAllEndpoint(t *testing.T) {
	router := buildAuthRouter(t)
	access, first := registerAndLogin(t, router)

	// A second live session for the same account.
	resp := postJSON(router, "/api/v1/users/login", `{"email":"ada@x.com","password":"Password1!"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	var second *http.Cookie
	for _, c := range resp.Result().Cookies() {
		if c.Name == RefreshTokenCookie {
			second = c
		}
	}
	require.NotNil(t, second)

	resp = postJSON(router, "/api/v1/users/logout-all", "", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+access)
	})
	require.Equal(t, http.StatusNoContent, resp.Code)

	for _, cookie := range []*http.Cookie{first, second} {
		resp := postJSON(router, "/api/v1/users/refresh", "", func(r *http.Request) { r.AddCookie(cookie) })
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	}
}
