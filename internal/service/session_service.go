package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/chatops-labs/chatbot-api/internal/models"
	appErrors "github.com/chatops-labs/chatbot-api/pkg/errors"
)

// refreshValueBytes is the entropy of a refresh token value before encoding.
const refreshValueBytes = 64

type tokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	GetValid(ctx context.Context, token string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, token string, revokedAt time.Time) error
	RevokeAll(ctx context.Context, userID string, revokedAt time.Time) error
}

type userDirectory interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdatePassword(ctx context.Context, id, hashedPassword string, updatedAt time.Time) error
}

// SessionConfig defines the refresh token lifecycle windows.
type SessionConfig struct {
	// RefreshTokenExpiry is the sliding window added on login and rotation.
	RefreshTokenExpiry time.Duration
	// RefreshTokenMaxLife caps a session's total lifetime measured from the
	// first issuance; rotation never extends a session past this.
	RefreshTokenMaxLife time.Duration
	// BcryptCost is the target hashing cost; stored hashes below it are
	// upgraded opportunistically on login.
	BcryptCost int
}

// LogoutResult tags the internal outcome of a logout. Every tag is surfaced
// to the caller as success; the tag only drives logging severity.
type LogoutResult int

const (
	// LogoutOK means a session was found and revoked.
	LogoutOK LogoutResult = iota
	// LogoutNoSession means there was nothing usable to revoke: an empty,
	// unknown, already revoked, or foreign-owned token.
	LogoutNoSession
	// LogoutOperationError means storage failed while fetching or revoking.
	LogoutOperationError
)

// SessionService orchestrates the refresh token lifecycle: authenticate and
// issue a pair, rotate with single-use enforcement and sliding expiration,
// revoke one session, revoke all sessions, and flag anomalies against the
// client metadata captured at issuance.
type SessionService struct {
	tokens    tokenRepository
	users     userDirectory
	issuer    *TokenService
	audit     AuditEmitter
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    SessionConfig
}

// NewSessionService constructs a SessionService.
func NewSessionService(tokens tokenRepository, users userDirectory, issuer *TokenService, audit AuditEmitter, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, config SessionConfig) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if audit == nil {
		audit = NopAuditEmitter{}
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &SessionService{
		tokens:    tokens,
		users:     users,
		issuer:    issuer,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    config,
	}
}

// Authenticate verifies credentials and issues a fresh access/refresh pair.
// User lookup and password verification failures collapse into the same
// ErrInvalidCredentials so callers cannot enumerate accounts.
func (s *SessionService) Authenticate(ctx context.Context, req models.LoginRequest) (*models.TokenPair, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	start := time.Now()
	user, err := s.users.FindByEmail(ctx, req.Email)
	s.metrics.ObserveDBQuery("user_by_email", time.Since(start))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.emitAuth(ctx, models.AuditEventLoginFailed, "", nil, nil, req.IP, req.UserAgent)
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)); err != nil {
		s.emitAuth(ctx, models.AuditEventLoginFailed, "", &user.ID, nil, req.IP, req.UserAgent)
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}

	s.maybeUpgradeHash(ctx, user, req.Password)

	now := time.Now().UTC()
	token := &models.RefreshToken{
		UserID:    user.ID,
		ExpiresAt: now.Add(s.config.RefreshTokenExpiry),
		CreatedAt: now,
		UserAgent: req.UserAgent,
		IPAddress: req.IP,
	}

	pair, err := s.issuePair(ctx, user, token)
	if err != nil {
		return nil, err
	}

	s.emitAuth(ctx, models.AuditEventCreate, "", &user.ID, &token.ID, req.IP, req.UserAgent)
	s.metrics.RecordAuthEvent(models.AuditEventCreate)
	return pair, nil
}

// Rotate exchanges a refresh token for a new pair, enforcing single use and
// the sliding-expiration cap. Missing, revoked, and expired tokens all fail
// with the same ErrInvalidCredentials; the distinction lives only in the
// audit trail, since each branch is a different theft signal.
func (s *SessionService) Rotate(ctx context.Context, req models.RefreshRequest) (*models.TokenPair, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid refresh payload")
	}

	start := time.Now()
	stored, err := s.tokens.GetValid(ctx, req.RefreshToken)
	s.metrics.ObserveDBQuery("refresh_token_lookup", time.Since(start))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.emitAuth(ctx, models.AuditEventSuspicious, models.AuditReasonInvalidOrRevoked, nil, nil, req.IP, req.UserAgent)
			s.metrics.RecordRotation("invalid")
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch refresh token")
	}

	now := time.Now().UTC()
	if stored.Expired(now) {
		s.emitAuth(ctx, models.AuditEventSuspicious, models.AuditReasonExpired, &stored.UserID, &stored.ID, req.IP, req.UserAgent)
		s.metrics.RecordRotation("expired")
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}

	// Metadata drift is logged, never enforced: blocking here would trade
	// false-positive lockouts for little real protection.
	if metadataMismatch(stored, req.UserAgent, req.IP) {
		s.emitAuth(ctx, models.AuditEventAnomaly, models.AuditReasonMismatch, &stored.UserID, &stored.ID, req.IP, req.UserAgent)
		s.metrics.RecordAuthEvent(models.AuditEventAnomaly)
	}

	// Revoke before creating the replacement so no window exists in which a
	// stolen old value and the new value are both accepted.
	if err := s.tokens.Revoke(ctx, stored.Token, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke refresh token")
	}

	user, err := s.users.FindByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.emitAuth(ctx, models.AuditEventSuspicious, models.AuditReasonUserNotFound, &stored.UserID, &stored.ID, req.IP, req.UserAgent)
			s.metrics.RecordRotation("user_not_found")
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	expiresAt := now.Add(s.config.RefreshTokenExpiry)
	if limit := stored.CreatedAt.Add(s.config.RefreshTokenMaxLife); limit.Before(expiresAt) {
		expiresAt = limit
	}

	// The replacement inherits the original CreatedAt so the absolute cap
	// stays anchored to first issuance no matter how often the session
	// rotates. Client metadata moves forward with each rotation.
	next := &models.RefreshToken{
		UserID:    user.ID,
		ExpiresAt: expiresAt,
		CreatedAt: stored.CreatedAt,
		UserAgent: req.UserAgent,
		IPAddress: req.IP,
	}

	pair, err := s.issuePair(ctx, user, next)
	if err != nil {
		return nil, err
	}

	s.emitAuth(ctx, models.AuditEventRevoke, "", &user.ID, &stored.ID, req.IP, req.UserAgent)
	s.emitAuth(ctx, models.AuditEventCreate, "", &user.ID, &next.ID, req.IP, req.UserAgent)
	s.metrics.RecordRotation("ok")
	return pair, nil
}

// Logout revokes the named session. It is idempotent and always looks
// successful from outside regardless of which branch fired; the returned tag
// distinguishes a normal no-op from infrastructure trouble for the caller's
// logging only.
func (s *SessionService) Logout(ctx context.Context, userID string, req models.LogoutRequest) LogoutResult {
	if req.RefreshToken == "" {
		return LogoutNoSession
	}

	stored, err := s.tokens.GetValid(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return LogoutNoSession
		}
		s.logger.Error("logout: failed to fetch refresh token", zap.Error(err))
		return LogoutOperationError
	}

	// One user must never revoke another's session with a guessed or reused
	// cookie. Report the same no-session outcome so the probe learns nothing.
	if stored.UserID != userID {
		s.emitAuth(ctx, models.AuditEventSuspicious, models.AuditReasonNotOwner, &userID, &stored.ID, req.IP, req.UserAgent)
		return LogoutNoSession
	}

	if err := s.tokens.Revoke(ctx, stored.Token, time.Now().UTC()); err != nil {
		s.logger.Error("logout: failed to revoke refresh token", zap.Error(err))
		return LogoutOperationError
	}

	s.emitAuth(ctx, models.AuditEventRevoke, "", &userID, &stored.ID, req.IP, req.UserAgent)
	s.metrics.RecordAuthEvent(models.AuditEventRevoke)
	return LogoutOK
}

// LogoutAll revokes every active session owned by the user in one operation.
func (s *SessionService) LogoutAll(ctx context.Context, userID string, req models.LogoutRequest) error {
	if err := s.tokens.RevokeAll(ctx, userID, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke refresh tokens")
	}
	s.emitAuth(ctx, models.AuditEventRevokeAll, "", &userID, nil, req.IP, req.UserAgent)
	s.metrics.RecordAuthEvent(models.AuditEventRevokeAll)
	return nil
}

// issuePair signs an access token and persists the refresh token row.
func (s *SessionService) issuePair(ctx context.Context, user *models.User, token *models.RefreshToken) (*models.TokenPair, error) {
	accessToken, _, err := s.issuer.Issue(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	value, err := generateRefreshValue()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}
	token.Token = value

	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist refresh token")
	}

	return &models.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: value,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.issuer.Expiry().Seconds()),
		IssuedAt:     time.Now().UTC(),
	}, nil
}

// maybeUpgradeHash rehashes the stored password when it was produced at a
// lower cost than currently configured. Best effort: a persistence failure
// here never fails the login.
func (s *SessionService) maybeUpgradeHash(ctx context.Context, user *models.User, password string) {
	cost, err := bcrypt.Cost([]byte(user.HashedPassword))
	if err != nil || cost >= s.config.BcryptCost {
		return
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		s.logger.Warn("failed to rehash password", zap.Error(err), zap.String("user_id", user.ID))
		return
	}
	if err := s.users.UpdatePassword(ctx, user.ID, string(newHash), time.Now().UTC()); err != nil {
		s.logger.Warn("failed to persist upgraded password hash", zap.Error(err), zap.String("user_id", user.ID))
		return
	}
	user.HashedPassword = string(newHash)
}

func (s *SessionService) emitAuth(ctx context.Context, event, reason string, userID, tokenID *string, ip, userAgent string) {
	s.audit.Emit(ctx, &models.AuditEvent{
		UserID:    userID,
		Event:     event,
		Reason:    reason,
		TokenID:   tokenID,
		IPAddress: ip,
		UserAgent: userAgent,
	})
}

// metadataMismatch reports drift between stored client metadata and the
// metadata presented now. Empty stored values never count as a mismatch.
func metadataMismatch(stored *models.RefreshToken, userAgent, ip string) bool {
	if stored.UserAgent != "" && stored.UserAgent != userAgent {
		return true
	}
	if stored.IPAddress != "" && stored.IPAddress != ip {
		return true
	}
	return false
}

func generateRefreshValue() (string, error) {
	buf := make([]byte, refreshValueBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
