package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chatops-labs/chatbot-api/internal/models"
	"github.com/chatops-labs/chatbot-api/internal/service"
	appErrors "github.com/chatops-labs/chatbot-api/pkg/errors"
	"github.com/chatops-labs/chatbot-api/pkg/response"
)

// RefreshTokenCookie is the cookie carrying the refresh token value.
const RefreshTokenCookie = "refresh_token"

// CookieConfig controls how the refresh token cookie is written.
type CookieConfig struct {
	MaxAge int
	Secure bool
}

// AuthHandler wires the registration and session lifecycle endpoints.
type AuthHandler struct {
	users    *service.UserService
	sessions *service.SessionService
	cookie   CookieConfig
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(users *service.UserService, sessions *service.SessionService, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions, cookie: cookie}
}

// Register godoc
// @Summary Register a new user
// @Description Register a new user with name, email, and password
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body models.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}

	user, err := h.users.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, models.UserResponse{ID: user.ID, Name: user.Name, Email: user.Email})
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate by email and password; returns an access token and sets the refresh token cookie
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /users/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	pair, err := h.sessions.Authenticate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	response.JSON(c, http.StatusOK, pair)
}

// Refresh godoc
// @Summary Rotate refresh token
// @Description Exchange the refresh token (cookie or body) for a new token pair
// @Tags Users
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /users/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	req := models.RefreshRequest{
		RefreshToken: h.refreshTokenFromRequest(c),
		IP:           c.ClientIP(),
		UserAgent:    c.GetHeader("User-Agent"),
	}
	if req.RefreshToken == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidCredentials, ""))
		return
	}

	pair, err := h.sessions.Rotate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	response.JSON(c, http.StatusOK, pair)
}

// Logout godoc
// @Summary Logout current session
// @Description Revoke the presented refresh token; always succeeds
// @Tags Users
// @Accept json
// @Produce json
// @Success 204
// @Failure 401 {object} response.Envelope
// @Router /users/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	req := models.LogoutRequest{
		RefreshToken: h.refreshTokenFromRequest(c),
		IP:           c.ClientIP(),
		UserAgent:    c.GetHeader("User-Agent"),
	}

	// The tagged outcome only drives logging inside the service; logout is
	// idempotent and always success-shaped at the API boundary.
	_ = h.sessions.Logout(c.Request.Context(), claims.UserID, req)

	h.clearRefreshCookie(c)
	response.NoContent(c)
}

// LogoutAll godoc
// @Summary Logout every session
// @Description Revoke all active refresh tokens for the authenticated user
// @Tags Users
// @Accept json
// @Produce json
// @Success 204
// @Failure 401 {object} response.Envelope
// @Router /users/logout-all [post]
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	req := models.LogoutRequest{
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
	if err := h.sessions.LogoutAll(c.Request.Context(), claims.UserID, req); err != nil {
		response.Error(c, err)
		return
	}

	h.clearRefreshCookie(c)
	response.NoContent(c)
}

// refreshTokenFromRequest prefers the cookie and falls back to the JSON body
// for non-browser clients.
func (h *AuthHandler) refreshTokenFromRequest(c *gin.Context) string {
	if value, err := c.Cookie(RefreshTokenCookie); err == nil && value != "" {
		return value
	}
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&body); err == nil {
		return body.RefreshToken
	}
	return ""
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, value string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(RefreshTokenCookie, value, h.cookie.MaxAge, "/", "", h.cookie.Secure, true)
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(RefreshTokenCookie, "", -1, "/", "", h.cookie.Secure, true)
}
