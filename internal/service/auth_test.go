package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/bookstore/internal/auth"
	"github.com/utafrali/bookstore/internal/domain"
	apperrors "github.com/utafrali/bookstore/pkg/errors"
)

const testSigningKey = "service-test-signing-key-0123456789abcdef"

func newTestCredentials(t *testing.T, opts ...auth.Option) *auth.CredentialManager {
	t.Helper()
	creds, err := auth.NewCredentialManager(auth.Config{
		SigningKey: testSigningKey,
		TokenTTL:   time.Hour,
		BcryptCost: bcrypt.MinCost,
	}, opts...)
	require.NoError(t, err)
	return creds
}

func newTestAuthService(t *testing.T) (*AuthService, *mockUserRepository, *auth.CredentialManager) {
	t.Helper()
	users := new(mockUserRepository)
	creds := newTestCredentials(t)
	return NewAuthService(users, creds, newTestLogger()), users, creds
}

func storedUser(t *testing.T, creds *auth.CredentialManager, password string) *domain.User {
	t.Helper()
	hash, err := creds.HashPassword(password)
	require.NoError(t, err)
	return &domain.User{
		ID:           "user-1",
		Username:     "reader",
		Email:        "reader@example.com",
		PasswordHash: hash,
		Role:         domain.RoleUser,
	}
}

// --- Register ---

func TestRegister_Success(t *testing.T) {
	svc, users, creds := newTestAuthService(t)
	ctx := context.Background()

	users.On("Create", ctx, mock.MatchedBy(func(u *domain.User) bool {
		return u.Email == "reader@example.com" && u.Role == domain.RoleUser && u.PasswordHash != "secret123"
	})).Return(nil)

	result, err := svc.Register(ctx, RegisterInput{
		Username: "  reader ",
		Email:    " Reader@Example.COM ",
		Password: "secret123",
	})

	require.NoError(t, err)
	assert.Equal(t, "reader", result.User.Username)
	assert.True(t, creds.VerifyPassword(result.User.PasswordHash, "secret123"))
	assert.NotEmpty(t, result.Token)

	claims, err := creds.VerifyToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, claims.UserID)
	users.AssertExpectations(t)
}

func TestRegister_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		input RegisterInput
	}{
		{"short username", RegisterInput{Username: "ab", Email: "a@example.com", Password: "secret123"}},
		{"long username", RegisterInput{Username: strings.Repeat("u", 51), Email: "a@example.com", Password: "secret123"}},
		{"missing email", RegisterInput{Username: "reader", Password: "secret123"}},
		{"malformed email", RegisterInput{Username: "reader", Email: "not-an-email", Password: "secret123"}},
		{"short password", RegisterInput{Username: "reader", Email: "a@example.com", Password: "12345"}},
		{"password over 72 bytes", RegisterInput{Username: "reader", Email: "a@example.com", Password: strings.Repeat("p", 73)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, users, _ := newTestAuthService(t)

			_, err := svc.Register(context.Background(), tt.input)

			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestRegister_EmailTaken(t *testing.T) {
	svc, users, _ := newTestAuthService(t)
	taken := apperrors.New(domain.CodeEmailExists, "email is already registered", 409, apperrors.ErrAlreadyExists)
	users.On("Create", mock.Anything, mock.Anything).Return(taken)

	_, err := svc.Register(context.Background(), RegisterInput{
		Username: "reader", Email: "reader@example.com", Password: "secret123",
	})

	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	assert.Equal(t, 409, apperrors.HTTPStatus(err))
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	svc, users, creds := newTestAuthService(t)
	user := storedUser(t, creds, "secret123")
	users.On("GetByEmail", mock.Anything, "reader@example.com").Return(user, nil)

	result, err := svc.Login(context.Background(), LoginInput{Email: "READER@example.com", Password: "secret123"})

	require.NoError(t, err)
	assert.Equal(t, user.ID, result.User.ID)
	assert.True(t, result.ExpiresAt.After(time.Now()))
}

func TestLogin_UnknownEmailAndWrongPasswordLookAlike(t *testing.T) {
	svc, users, creds := newTestAuthService(t)
	users.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, apperrors.ErrNotFound)
	users.On("GetByEmail", mock.Anything, "reader@example.com").Return(storedUser(t, creds, "secret123"), nil)

	_, unknownErr := svc.Login(context.Background(), LoginInput{Email: "ghost@example.com", Password: "secret123"})
	_, wrongErr := svc.Login(context.Background(), LoginInput{Email: "reader@example.com", Password: "wrong-password"})

	assert.ErrorIs(t, unknownErr, domain.ErrInvalidCredentials)
	assert.ErrorIs(t, wrongErr, domain.ErrInvalidCredentials)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
	assert.Equal(t, 401, apperrors.HTTPStatus(wrongErr))
}

func TestLogin_MissingFields(t *testing.T) {
	svc, users, _ := newTestAuthService(t)

	_, err := svc.Login(context.Background(), LoginInput{Email: "reader@example.com"})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	users.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
}

// --- Authenticate ---

func TestAuthenticate_Success(t *testing.T) {
	svc, users, creds := newTestAuthService(t)
	user := storedUser(t, creds, "secret123")
	token, _, err := creds.IssueToken(user)
	require.NoError(t, err)
	users.On("GetByID", mock.Anything, "user-1").Return(user, nil)

	got, err := svc.Authenticate(context.Background(), token)

	require.NoError(t, err)
	assert.Equal(t, user, got)
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	users := new(mockUserRepository)
	past := newTestCredentials(t, auth.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) }))
	token, _, err := past.IssueToken(&domain.User{ID: "user-1", Role: domain.RoleUser})
	require.NoError(t, err)

	svc := NewAuthService(users, newTestCredentials(t), newTestLogger())
	_, err = svc.Authenticate(context.Background(), token)

	assert.ErrorIs(t, err, domain.ErrTokenExpired)
	users.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	svc, users, _ := newTestAuthService(t)

	_, err := svc.Authenticate(context.Background(), "not.a.token")

	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
	users.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestAuthenticate_DeletedUser(t *testing.T) {
	svc, users, creds := newTestAuthService(t)
	token, _, err := creds.IssueToken(&domain.User{ID: "user-gone", Role: domain.RoleUser})
	require.NoError(t, err)
	users.On("GetByID", mock.Anything, "user-gone").Return(nil, apperrors.ErrNotFound)

	_, err = svc.Authenticate(context.Background(), token)

	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.Equal(t, 401, apperrors.HTTPStatus(err))
}

func TestAuthenticate_RepositoryError(t *testing.T) {
	svc, users, creds := newTestAuthService(t)
	token, _, err := creds.IssueToken(&domain.User{ID: "user-1", Role: domain.RoleUser})
	require.NoError(t, err)
	users.On("GetByID", mock.Anything, "user-1").Return(nil, errors.New("too many connections"))

	_, err = svc.Authenticate(context.Background(), token)

	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrUserNotFound)
}

// --- Profile ---

func TestUpdateProfile_NeverTouchesPassword(t *testing.T) {
	svc, users, creds := newTestAuthService(t)
	user := storedUser(t, creds, "secret123")
	originalHash := user.PasswordHash
	users.On("GetByID", mock.Anything, "user-1").Return(user, nil)
	users.On("UpdateProfile", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)

	email := "New@Example.com"
	updated, err := svc.UpdateProfile(context.Background(), "user-1", UpdateProfileInput{Email: &email})

	require.NoError(t, err)
	assert.Equal(t, "new@example.com", updated.Email)
	assert.Equal(t, "reader", updated.Username)
	assert.Equal(t, originalHash, updated.PasswordHash)
	users.AssertNotCalled(t, "UpdatePasswordHash", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateProfile_InvalidUsername(t *testing.T) {
	svc, users, creds := newTestAuthService(t)
	users.On("GetByID", mock.Anything, "user-1").Return(storedUser(t, creds, "secret123"), nil)

	name := "x"
	_, err := svc.UpdateProfile(context.Background(), "user-1", UpdateProfileInput{Username: &name})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	users.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything)
}

func TestGetProfile_UserNotFound(t *testing.T) {
	svc, users, _ := newTestAuthService(t)
	users.On("GetByID", mock.Anything, "ghost").Return(nil, apperrors.ErrNotFound)

	_, err := svc.GetProfile(context.Background(), "ghost")

	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

// --- ChangePassword ---

func TestChangePassword_Success(t *testing.T) {
	svc, users, creds := newTestAuthService(t)
	users.On("GetByID", mock.Anything, "user-1").Return(storedUser(t, creds, "secret123"), nil)

	var newHash string
	users.On("UpdatePasswordHash", mock.Anything, "user-1", mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { newHash = args.String(2) }).
		Return(nil)

	result, err := svc.ChangePassword(context.Background(), "user-1", "secret123", "n3w-secret")

	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.True(t, creds.VerifyPassword(newHash, "n3w-secret"))
	assert.False(t, creds.VerifyPassword(newHash, "secret123"))
	users.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything)
}

func TestChangePassword_WrongCurrentPassword(t *testing.T) {
	svc, users, creds := newTestAuthService(t)
	users.On("GetByID", mock.Anything, "user-1").Return(storedUser(t, creds, "secret123"), nil)

	_, err := svc.ChangePassword(context.Background(), "user-1", "guess-one", "n3w-secret")

	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	users.AssertNotCalled(t, "UpdatePasswordHash", mock.Anything, mock.Anything, mock.Anything)
}

func TestChangePassword_SamePassword(t *testing.T) {
	svc, users, _ := newTestAuthService(t)

	_, err := svc.ChangePassword(context.Background(), "user-1", "secret123", "secret123")

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	users.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}
