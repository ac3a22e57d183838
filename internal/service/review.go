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

	"github.com/utafrali/bookstore/internal/domain"
	"github.com/utafrali/bookstore/internal/event"
	"github.com/utafrali/bookstore/internal/repository"
	apperrors "github.com/utafrali/bookstore/pkg/errors"
)

// CreateReviewInput holds the parameters for creating a review.
type CreateReviewInput struct {
	BookID  string
	UserID  string
	Rating  int
	Comment string
}

// UpdateReviewInput holds the parameters for updating a review. Nil fields
// are left unchanged.
type UpdateReviewInput struct {
	Rating  *int
	Comment *string
}

// ReviewService implements the business logic for review operations.
type ReviewService struct {
	reviews  repository.ReviewRepository
	books    repository.BookRepository
	ratings  *RatingService
	producer *event.Producer
	logger   *slog.Logger
}

// NewReviewService creates a new review service. producer may be nil, in
// which case no events are published.
func NewReviewService(
	reviews repository.ReviewRepository,
	books repository.BookRepository,
	ratings *RatingService,
	producer *event.Producer,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		reviews:  reviews,
		books:    books,
		ratings:  ratings,
		producer: producer,
		logger:   logger,
	}
}

// CreateReview creates a review of a book by a user. A user may review a
// given book once.
func (s *ReviewService) CreateReview(ctx context.Context, input *CreateReviewInput) (*domain.Review, error) {
	if input.BookID == "" {
		return nil, apperrors.InvalidInput("book_id is required")
	}
	if input.UserID == "" {
		return nil, apperrors.InvalidInput("user_id is required")
	}
	if err := validateRating(input.Rating); err != nil {
		return nil, err
	}
	comment, err := normalizeComment(input.Comment)
	if err != nil {
		return nil, err
	}

	if _, err := s.books.GetByID(ctx, input.BookID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("book", input.BookID)
		}
		return nil, fmt.Errorf("get book: %w", err)
	}

	exists, err := s.reviews.ExistsForUser(ctx, input.BookID, input.UserID)
	if err != nil {
		return nil, fmt.Errorf("check existing review: %w", err)
	}
	if exists {
		return nil, domain.DuplicateReview(input.BookID)
	}

	now := time.Now().UTC()
	review := &domain.Review{
		ID:        uuid.New().String(),
		BookID:    input.BookID,
		UserID:    input.UserID,
		Rating:    input.Rating,
		Comment:   comment,
		Likes:     []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	// The unique (book_id, user_id) constraint catches a concurrent create
	// that slipped past the check above.
	if err := s.reviews.Create(ctx, review); err != nil {
		if errors.Is(err, domain.ErrDuplicateReview) {
			return nil, err
		}
		return nil, fmt.Errorf("create review: %w", err)
	}

	s.logger.InfoContext(ctx, "review created",
		slog.String("review_id", review.ID),
		slog.String("book_id", review.BookID),
		slog.String("user_id", review.UserID),
		slog.Int("rating", review.Rating),
	)

	s.afterMutation(ctx, review, TriggerReviewCreated)
	return review, nil
}

// GetReview retrieves a review by its ID.
func (s *ReviewService) GetReview(ctx context.Context, id string) (*domain.Review, error) {
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("review", id)
		}
		return nil, fmt.Errorf("get review: %w", err)
	}
	return review, nil
}

// ListReviews returns paginated reviews of a book, newest first.
func (s *ReviewService) ListReviews(ctx context.Context, bookID string, page, perPage int) ([]domain.Review, int, error) {
	if _, err := s.books.GetByID(ctx, bookID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, 0, apperrors.NotFound("book", bookID)
		}
		return nil, 0, fmt.Errorf("get book: %w", err)
	}

	reviews, total, err := s.reviews.ListByBook(ctx, bookID, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, total, nil
}

// UpdateReview changes the rating and/or comment of a review. Only the
// author may update it.
func (s *ReviewService) UpdateReview(ctx context.Context, id, userID string, input *UpdateReviewInput) (*domain.Review, error) {
	review, err := s.GetReview(ctx, id)
	if err != nil {
		return nil, err
	}
	if !review.IsOwnedBy(userID) {
		return nil, domain.NotReviewOwner()
	}

	if input.Rating != nil {
		if err := validateRating(*input.Rating); err != nil {
			return nil, err
		}
		review.Rating = *input.Rating
	}
	if input.Comment != nil {
		comment, err := normalizeComment(*input.Comment)
		if err != nil {
			return nil, err
		}
		review.Comment = comment
	}

	if err := s.reviews.Update(ctx, review); err != nil {
		return nil, fmt.Errorf("update review: %w", err)
	}

	s.logger.InfoContext(ctx, "review updated",
		slog.String("review_id", review.ID),
		slog.String("book_id", review.BookID),
		slog.Int("rating", review.Rating),
	)

	s.afterMutation(ctx, review, TriggerReviewUpdated)
	return review, nil
}

// DeleteReview removes a review. Only the author may delete it.
func (s *ReviewService) DeleteReview(ctx context.Context, id, userID string) error {
	review, err := s.GetReview(ctx, id)
	if err != nil {
		return err
	}
	if !review.IsOwnedBy(userID) {
		return domain.NotReviewOwner()
	}

	if err := s.reviews.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete review: %w", err)
	}

	s.logger.InfoContext(ctx, "review deleted",
		slog.String("review_id", review.ID),
		slog.String("book_id", review.BookID),
	)

	s.afterMutation(ctx, review, TriggerReviewDeleted)
	return nil
}

// ToggleLike likes the review for userID, or removes the like if it is
// already there, and returns the review with its updated likes.
func (s *ReviewService) ToggleLike(ctx context.Context, id, userID string) (*domain.Review, error) {
	if _, err := s.GetReview(ctx, id); err != nil {
		return nil, err
	}

	liked, err := s.reviews.ToggleLike(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("toggle like: %w", err)
	}

	s.logger.DebugContext(ctx, "review like toggled",
		slog.String("review_id", id),
		slog.String("user_id", userID),
		slog.Bool("liked", liked),
	)

	return s.GetReview(ctx, id)
}

// afterMutation brings the book rating up to date and announces the change.
// Neither step can fail the mutation. The recompute runs on a context that
// outlives the request so a client disconnect cannot leave it half done.
func (s *ReviewService) afterMutation(ctx context.Context, review *domain.Review, trigger string) {
	ctx = context.WithoutCancel(ctx)
	s.ratings.RecomputeBookRating(ctx, review.BookID, trigger)

	if s.producer == nil {
		return
	}
	var err error
	switch trigger {
	case TriggerReviewCreated:
		err = s.producer.PublishReviewCreated(ctx, review)
	case TriggerReviewUpdated:
		err = s.producer.PublishReviewUpdated(ctx, review)
	case TriggerReviewDeleted:
		err = s.producer.PublishReviewDeleted(ctx, review)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review event",
			slog.String("review_id", review.ID),
			slog.String("trigger", trigger),
			slog.String("error", err.Error()),
		)
	}
}

func validateRating(rating int) error {
	if rating < domain.MinRating || rating > domain.MaxRating {
		return apperrors.InvalidInput(fmt.Sprintf("rating must be between %d and %d", domain.MinRating, domain.MaxRating))
	}
	return nil
}

func normalizeComment(comment string) (string, error) {
	comment = strings.TrimSpace(comment)
	n := utf8.RuneCountInString(comment)
	if n < domain.MinCommentLength || n > domain.MaxCommentLength {
		return "", apperrors.InvalidInput(fmt.Sprintf("comment must be between %d and %d characters", domain.MinCommentLength, domain.MaxCommentLength))
	}
	return comment, nil
}
