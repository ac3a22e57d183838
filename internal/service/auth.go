package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/utafrali/bookstore/internal/auth"
	"github.com/utafrali/bookstore/internal/domain"
	"github.com/utafrali/bookstore/internal/repository"
	apperrors "github.com/utafrali/bookstore/pkg/errors"
	"github.com/utafrali/bookstore/pkg/validator"
)

const (
	minPasswordLength = 6
	minUsernameLength = 3
	maxUsernameLength = 50
)

// AuthService implements registration, login, token authentication and
// profile operations.
type AuthService struct {
	users  repository.UserRepository
	creds  *auth.CredentialManager
	logger *slog.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(users repository.UserRepository, creds *auth.CredentialManager, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		creds:  creds,
		logger: logger,
	}
}

// RegisterInput holds the parameters for registering a new user.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// LoginInput holds the parameters for logging in.
type LoginInput struct {
	Email    string
	Password string
}

// UpdateProfileInput holds the profile fields a user may change. Nil fields
// are left unchanged.
type UpdateProfileInput struct {
	Username *string
	Email    *string
}

// AuthResult is returned by operations that issue a token.
type AuthResult struct {
	User      *domain.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Register creates a user account with the user role and issues a token.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	email := normalizeEmail(input.Email)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	hash, err := s.creds.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return s.issue(user)
}

// Login verifies email and password and issues a token. An unknown email and
// a wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	email := normalizeEmail(input.Email)
	if email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if input.Password == "" {
		return nil, apperrors.InvalidInput("password is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, domain.InvalidCredentials()
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	if !s.creds.VerifyPassword(user.PasswordHash, input.Password) {
		s.logger.InfoContext(ctx, "login rejected", slog.String("user_id", user.ID))
		return nil, domain.InvalidCredentials()
	}

	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))
	return s.issue(user)
}

// Authenticate verifies a bearer token and loads the user it names. A valid
// token for a user that no longer exists yields domain.ErrUserNotFound.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.creds.VerifyToken(token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, domain.UserNotFound(claims.UserID)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// GetProfile retrieves a user by their ID.
func (s *AuthService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, domain.UserNotFound(userID)
		}
		return nil, fmt.Errorf("get user profile: %w", err)
	}
	return user, nil
}

// UpdateProfile changes the username and/or email of a user. The password
// hash is never touched.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*domain.User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Username != nil {
		username := strings.TrimSpace(*input.Username)
		if err := validateUsername(username); err != nil {
			return nil, err
		}
		user.Username = username
	}
	if input.Email != nil {
		email := normalizeEmail(*input.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		user.Email = email
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.logger.InfoContext(ctx, "user profile updated", slog.String("user_id", user.ID))
	return user, nil
}

// ChangePassword verifies the current password, stores the hash of the new
// one and issues a fresh token.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (*AuthResult, error) {
	if currentPassword == "" {
		return nil, apperrors.InvalidInput("current password is required")
	}
	if err := validatePassword(newPassword); err != nil {
		return nil, err
	}
	if currentPassword == newPassword {
		return nil, apperrors.InvalidInput("new password must be different from current password")
	}

	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !s.creds.VerifyPassword(user.PasswordHash, currentPassword) {
		return nil, domain.InvalidCredentials()
	}

	hash, err := s.creds.HashPassword(newPassword)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}
	user.PasswordHash = hash

	s.logger.InfoContext(ctx, "password changed", slog.String("user_id", user.ID))
	return s.issue(user)
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, expiresAt, err := s.creds.IssueToken(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return apperrors.InvalidInput("email is required")
	}
	if !validator.IsEmail(email) {
		return apperrors.InvalidInput("email must be a valid address")
	}
	return nil
}

func validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < minUsernameLength || n > maxUsernameLength {
		return apperrors.InvalidInput(fmt.Sprintf("username must be between %d and %d characters", minUsernameLength, maxUsernameLength))
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	// bcrypt ignores everything past 72 bytes.
	if len(password) > 72 {
		return apperrors.InvalidInput("password must be at most 72 bytes")
	}
	return nil
}
