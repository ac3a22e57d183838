package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/bookstore/internal/domain"
	"github.com/utafrali/bookstore/pkg/database"
	apperrors "github.com/utafrali/bookstore/pkg/errors"
)

const reviewsBookUserKey = "reviews_book_id_user_id_key"

// reviewSelect loads reviews with their likes folded into an array.
const reviewSelect = `
		SELECT r.id, r.book_id, r.user_id, r.rating, r.comment,
		       COALESCE(array_agg(l.user_id ORDER BY l.created_at) FILTER (WHERE l.user_id IS NOT NULL), '{}') AS likes,
		       r.created_at, r.updated_at`

// ReviewRepository implements repository.ReviewRepository using PostgreSQL.
type ReviewRepository struct {
	pool database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Create inserts a new review into the database.
func (r *ReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	query := `
		INSERT INTO reviews (id, book_id, user_id, rating, comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		review.ID,
		review.BookID,
		review.UserID,
		review.Rating,
		review.Comment,
		review.CreatedAt,
		review.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err, reviewsBookUserKey) {
			return domain.DuplicateReview(review.BookID)
		}
		return fmt.Errorf("insert review: %w", err)
	}

	return nil
}

// GetByID retrieves a review by its ID.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	query := reviewSelect + `
		FROM reviews r
		LEFT JOIN review_likes l ON l.review_id = r.id
		WHERE r.id = $1
		GROUP BY r.id`

	var rv domain.Review
	err := r.pool.QueryRow(ctx, query, id).Scan(reviewFields(&rv)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan review: %w", err)
	}

	return &rv, nil
}

// ExistsForUser reports whether userID already reviewed bookID.
func (r *ReviewRepository) ExistsForUser(ctx context.Context, bookID, userID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM reviews WHERE book_id = $1 AND user_id = $2)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, bookID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check existing review: %w", err)
	}
	return exists, nil
}

// ListByBook returns paginated reviews for a given book along with the total count.
func (r *ReviewRepository) ListByBook(ctx context.Context, bookID string, page, perPage int) ([]domain.Review, int, error) {
	limit, offset := pageWindow(page, perPage)

	query := reviewSelect + `,
		       count(*) OVER() AS total_count
		FROM reviews r
		LEFT JOIN review_likes l ON l.review_id = r.id
		WHERE r.book_id = $1
		GROUP BY r.id
		ORDER BY r.created_at DESC, r.id
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, bookID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var (
		reviews    []domain.Review
		totalCount int
	)

	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(append(reviewFields(&rv), &totalCount)...); err != nil {
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, rv)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate review rows: %w", err)
	}

	if reviews == nil {
		reviews = []domain.Review{}
	}

	return reviews, totalCount, nil
}

// Update changes the rating and comment of an existing review.
func (r *ReviewRepository) Update(ctx context.Context, review *domain.Review) error {
	review.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE reviews
		SET rating = $1, comment = $2, updated_at = $3
		WHERE id = $4`

	ct, err := r.pool.Exec(ctx, query, review.Rating, review.Comment, review.UpdatedAt, review.ID)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("review", review.ID)
	}

	return nil
}

// Delete removes a review. Its likes are removed by ON DELETE CASCADE.
func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("review", id)
	}

	return nil
}

// RatingStats returns the sum and count of every rating of a book.
func (r *ReviewRepository) RatingStats(ctx context.Context, bookID string) (sum, count int, err error) {
	query := `
		SELECT COALESCE(SUM(rating), 0), COUNT(*)
		FROM reviews
		WHERE book_id = $1`

	if err = r.pool.QueryRow(ctx, query, bookID).Scan(&sum, &count); err != nil {
		return 0, 0, fmt.Errorf("get rating stats: %w", err)
	}
	return sum, count, nil
}

// ToggleLike removes the user's like if present, otherwise adds it.
func (r *ReviewRepository) ToggleLike(ctx context.Context, reviewID, userID string) (bool, error) {
	ct, err := r.pool.Exec(ctx,
		`DELETE FROM review_likes WHERE review_id = $1 AND user_id = $2`,
		reviewID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("remove like: %w", err)
	}
	if ct.RowsAffected() > 0 {
		return false, nil
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO review_likes (review_id, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (review_id, user_id) DO NOTHING`,
		reviewID, userID, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("add like: %w", err)
	}
	return true, nil
}

func reviewFields(rv *domain.Review) []any {
	return []any{
		&rv.ID,
		&rv.BookID,
		&rv.UserID,
		&rv.Rating,
		&rv.Comment,
		&rv.Likes,
		&rv.CreatedAt,
		&rv.UpdatedAt,
	}
}
