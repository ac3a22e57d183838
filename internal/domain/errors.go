package domain

import (
	"fmt"
	"net/http"

	apperrors "github.com/utafrali/bookstore/pkg/errors"
)

// Domain sentinels. Each wraps the generic category from pkg/errors so that
// callers matching only the category (errors.Is(err, apperrors.ErrUnauthorized))
// keep working.
var (
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", apperrors.ErrUnauthorized)
	ErrTokenExpired       = fmt.Errorf("token expired: %w", apperrors.ErrUnauthorized)
	ErrTokenInvalid       = fmt.Errorf("token invalid: %w", apperrors.ErrUnauthorized)
	ErrUserNotFound       = fmt.Errorf("user not found: %w", apperrors.ErrNotFound)
	ErrDuplicateReview    = fmt.Errorf("duplicate review: %w", apperrors.ErrAlreadyExists)
	ErrNotReviewOwner     = fmt.Errorf("not review owner: %w", apperrors.ErrForbidden)
	ErrAggregation        = fmt.Errorf("rating aggregation failed: %w", apperrors.ErrInternal)
)

// Error codes sent to clients.
const (
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeTokenInvalid       = "TOKEN_INVALID"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeDuplicateReview    = "DUPLICATE_REVIEW"
	CodeEmailExists        = "EMAIL_EXISTS"
	CodeUsernameExists     = "USERNAME_EXISTS"
	CodeISBNExists         = "ISBN_EXISTS"
)

// InvalidCredentials is returned for an unknown email or a wrong password.
// Both cases share one message so the response does not reveal which
// accounts exist.
func InvalidCredentials() *apperrors.AppError {
	return apperrors.New(CodeInvalidCredentials, "invalid email or password", http.StatusUnauthorized, ErrInvalidCredentials)
}

// TokenExpired is returned for a well-formed token past its expiry.
func TokenExpired() *apperrors.AppError {
	return apperrors.New(CodeTokenExpired, "token has expired", http.StatusUnauthorized, ErrTokenExpired)
}

// TokenInvalid is returned for a malformed or tampered token.
func TokenInvalid() *apperrors.AppError {
	return apperrors.New(CodeTokenInvalid, "token is invalid", http.StatusUnauthorized, ErrTokenInvalid)
}

// UserNotFound is returned when a valid token refers to a deleted user.
func UserNotFound(id string) *apperrors.AppError {
	return apperrors.New(CodeUserNotFound, fmt.Sprintf("user with id %s not found", id), http.StatusUnauthorized, ErrUserNotFound)
}

// DuplicateReview is returned when the user already reviewed the book.
func DuplicateReview(bookID string) *apperrors.AppError {
	return apperrors.New(CodeDuplicateReview, fmt.Sprintf("you have already reviewed book %s", bookID), http.StatusConflict, ErrDuplicateReview)
}

// NotReviewOwner is returned when a user mutates a review they did not write.
func NotReviewOwner() *apperrors.AppError {
	return apperrors.New("FORBIDDEN", "you can only modify your own reviews", http.StatusForbidden, ErrNotReviewOwner)
}
