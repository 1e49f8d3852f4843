package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/chatops-labs/chatbot-api/internal/models"
	"github.com/chatops-labs/chatbot-api/internal/repository"
	appErrors "github.com/chatops-labs/chatbot-api/pkg/errors"
)

type mockUserCreator struct {
	created   *models.User
	createErr error
}

func (m *mockUserCreator) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	user.ID = "generated-id"
	m.created = user
	return nil
}

func newUserFixture() (*UserService, *mockUserDirectory, *mockUserCreator, *captureEmitter) {
	users := newMockUserDirectory()
	creator := &mockUserCreator{}
	audit := &captureEmitter{}
	svc := NewUserService(users, creator, audit, nil, nil, bcrypt.MinCost)
	return svc, users, creator, audit
}

func TestRegisterSuccess(t *testing.T) {
	svc, _, creator, audit := newUserFixture()

	user, err := svc.Register(context.Background(), models.RegisterRequest{
		Name: "  Ada Lovelace  ", Email: "ada@x.com", Password: "Password1!",
	})
	require.NoError(t, err)
	assert.Equal(t, "generated-id", user.ID)
	assert.Equal(t, "Ada Lovelace", user.Name)
	assert.Equal(t, "ada@x.com", user.Email)

	// The stored hash must verify against the plaintext and never equal it.
	require.NotNil(t, creator.created)
	assert.NotEqual(t, "Password1!", creator.created.HashedPassword)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(creator.created.HashedPassword), []byte("Password1!")))

	assert.Len(t, audit.byEvent(models.AuditEventRegister), 1)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, users, _, _ := newUserFixture()
	users.users["u1"] = &models.User{ID: "u1", Email: "taken@x.com"}

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Name: "Dup", Email: "taken@x.com", Password: "Password1!",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEmailAlreadyRegistered.Code, appErrors.FromError(err).Code)
}

func TestRegisterDuplicateEmailRaceBackstop(t *testing.T) {
	svc, _, creator, _ := newUserFixture()
	creator.createErr = repository.ErrDuplicateEmail

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Name: "Racer", Email: "race@x.com", Password: "Password1!",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEmailAlreadyRegistered.Code, appErrors.FromError(err).Code)
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _, _ := newUserFixture()

	cases := []struct {
		name string
		req  models.RegisterRequest
	}{
		{"missing email", models.RegisterRequest{Name: "A", Email: "", Password: "Password1!"}},
		{"malformed email", models.RegisterRequest{Name: "A", Email: "not-an-email", Password: "Password1!"}},
		{"blank name", models.RegisterRequest{Name: "   ", Email: "a@x.com", Password: "Password1!"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.req)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestPasswordComplexity(t *testing.T) {
	cases := []struct {
		password string
		valid    bool
	}{
		{"Password1!", true},
		{"abc123!@", true},
		{"short1!", false},        // under 8 characters
		{"allletters!", false},    // no digit
		{"12345678!", false},      // no letter
		{"Password123", false},    // no symbol
		{"Password1?", false},     // symbol outside the allowed set
		{"Pass word 1!", true},    // spaces are fine when the classes are met
	}
	for _, tc := range cases {
		t.Run(tc.password, func(t *testing.T) {
			err := validatePasswordComplexity(tc.password)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
			}
		})
	}
}
