package repository

import (
	"context"

	"github.com/utafrali/bookstore/internal/domain"
)

// BookFilter defines filter criteria for listing books.
type BookFilter struct {
	Category *string
	Author   *string
	Search   *string
	MinPrice *int64
	MaxPrice *int64
	SortBy   string
	Desc     bool
	Page     int
	PerPage  int
}

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts a new user. A taken email or username yields an
	// ErrAlreadyExists error.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// UpdateProfile changes the username and email of an existing user. The
	// password hash is left untouched.
	UpdateProfile(ctx context.Context, user *domain.User) error

	// UpdatePasswordHash replaces the stored password hash.
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

// BookRepository defines the interface for book persistence operations.
type BookRepository interface {
	// Create inserts a new book into the store.
	Create(ctx context.Context, book *domain.Book) error

	// GetByID retrieves a book by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Book, error)

	// List returns books matching the given filter along with the total count.
	List(ctx context.Context, filter BookFilter) ([]domain.Book, int, error)

	// Update modifies the editable fields of a book. The derived rating
	// fields are never written here.
	Update(ctx context.Context, book *domain.Book) error

	// Delete removes a book together with its reviews.
	Delete(ctx context.Context, id string) error

	// UpdateRatingFields writes average_rating and number_of_reviews in a
	// single statement.
	UpdateRatingFields(ctx context.Context, bookID string, averageRating float64, numberOfReviews int) error
}

// ReviewRepository defines the interface for review persistence operations.
type ReviewRepository interface {
	// Create inserts a new review. A second review by the same user for the
	// same book yields domain.ErrDuplicateReview.
	Create(ctx context.Context, review *domain.Review) error

	// GetByID retrieves a review, including its likes.
	GetByID(ctx context.Context, id string) (*domain.Review, error)

	// ExistsForUser reports whether the user already reviewed the book.
	ExistsForUser(ctx context.Context, bookID, userID string) (bool, error)

	// ListByBook returns paginated reviews of a book, newest first, along
	// with the total count.
	ListByBook(ctx context.Context, bookID string, page, perPage int) ([]domain.Review, int, error)

	// Update changes the rating and comment of a review.
	Update(ctx context.Context, review *domain.Review) error

	// Delete removes a review and its likes.
	Delete(ctx context.Context, id string) error

	// RatingStats returns the sum and count of all ratings of a book.
	RatingStats(ctx context.Context, bookID string) (sum int, count int, err error)

	// ToggleLike adds the user's like when absent and removes it when
	// present. It reports whether the review is liked afterwards.
	ToggleLike(ctx context.Context, reviewID, userID string) (bool, error)
}
