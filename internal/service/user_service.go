package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/chatops-labs/chatbot-api/internal/models"
	"github.com/chatops-labs/chatbot-api/internal/repository"
	appErrors "github.com/chatops-labs/chatbot-api/pkg/errors"
)

const passwordSymbols = "!@#$%^&*"

// UserService handles account registration.
type UserService struct {
	users      userDirectory
	creator    userCreator
	audit      AuditEmitter
	validator  *validator.Validate
	logger     *zap.Logger
	bcryptCost int
}

type userCreator interface {
	Create(ctx context.Context, user *models.User) error
}

// NewUserService constructs a UserService.
func NewUserService(users userDirectory, creator userCreator, audit AuditEmitter, validate *validator.Validate, logger *zap.Logger, bcryptCost int) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if audit == nil {
		audit = NopAuditEmitter{}
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserService{users: users, creator: creator, audit: audit, validator: validate, logger: logger, bcryptCost: bcryptCost}
}

// Register creates a new account. Duplicate emails fail with the conflict
// error, checked up front and backstopped by the unique index so concurrent
// registrations cannot slip through.
func (s *UserService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "name must not be empty")
	}
	if err := validatePasswordComplexity(req.Password); err != nil {
		return nil, err
	}

	if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
		s.logger.Warn("registration rejected: email already registered", zap.String("email", req.Email))
		return nil, appErrors.Clone(appErrors.ErrEmailAlreadyRegistered, "")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Name:           strings.TrimSpace(req.Name),
		Email:          req.Email,
		HashedPassword: string(hash),
	}
	if err := s.creator.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, appErrors.Clone(appErrors.ErrEmailAlreadyRegistered, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.audit.Emit(ctx, &models.AuditEvent{UserID: &user.ID, Event: models.AuditEventRegister})
	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("email", user.Email))
	return user, nil
}

// validatePasswordComplexity enforces the registration password policy:
// at least 8 characters with letters, digits, and one of !@#$%^&*.
func validatePasswordComplexity(password string) error {
	if len(password) < 8 {
		return appErrors.Clone(appErrors.ErrValidation, "password must be at least 8 characters long")
	}
	var hasLetter, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			hasLetter = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune(passwordSymbols, r):
			hasSymbol = true
		}
	}
	if !hasLetter || !hasDigit || !hasSymbol {
		return appErrors.Clone(appErrors.ErrValidation, "password must contain letters, numbers, and at least one symbol (!@#$%^&*)")
	}
	return nil
}
