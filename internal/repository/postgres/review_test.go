package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/bookstore/internal/domain"
	apperrors "github.com/utafrali/bookstore/pkg/errors"
)

var reviewCols = []string{"id", "book_id", "user_id", "rating", "comment", "likes", "created_at", "updated_at"}

func sampleReview() domain.Review {
	return domain.Review{
		ID:        "rev-1",
		BookID:    "book-1",
		UserID:    "u-1",
		Rating:    4,
		Comment:   "Thoughtful and strange, in a good way.",
		Likes:     []string{"u-2", "u-3"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func reviewRow(r domain.Review) []any {
	return []any{r.ID, r.BookID, r.UserID, r.Rating, r.Comment, r.Likes, r.CreatedAt, r.UpdatedAt}
}

func TestReviewRepository_Create_Success(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)
	r := sampleReview()

	mock.ExpectExec("INSERT INTO reviews").
		WithArgs(r.ID, r.BookID, r.UserID, r.Rating, r.Comment, r.CreatedAt, r.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), &r))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_Create_UniqueViolationIsDuplicateReview(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)
	r := sampleReview()

	mock.ExpectExec("INSERT INTO reviews").
		WithArgs(r.ID, r.BookID, r.UserID, r.Rating, r.Comment, r.CreatedAt, r.UpdatedAt).
		WillReturnError(uniqueViolation(reviewsBookUserKey))

	err := repo.Create(context.Background(), &r)

	assert.ErrorIs(t, err, domain.ErrDuplicateReview)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_GetByID_WithLikes(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)
	r := sampleReview()

	mock.ExpectQuery("SELECT .+ FROM reviews r LEFT JOIN review_likes l .+ WHERE r.id").
		WithArgs(r.ID).
		WillReturnRows(pgxmock.NewRows(reviewCols).AddRow(reviewRow(r)...))

	got, err := repo.GetByID(context.Background(), r.ID)

	require.NoError(t, err)
	assert.Equal(t, []string{"u-2", "u-3"}, got.Likes)
	assert.Equal(t, 2, got.LikeCount())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_GetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM reviews r").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetByID(context.Background(), "missing")

	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestReviewRepository_ExistsForUser(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("book-1", "u-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsForUser(context.Background(), "book-1", "u-1")

	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_ListByBook(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)
	r1 := sampleReview()
	r2 := sampleReview()
	r2.ID = "rev-2"
	r2.UserID = "u-9"
	r2.Likes = []string{}

	mock.ExpectQuery("SELECT .+ FROM reviews r .+ WHERE r.book_id .+ ORDER BY r.created_at DESC").
		WithArgs("book-1", 10, 10).
		WillReturnRows(pgxmock.NewRows(append(reviewCols, "total_count")).
			AddRow(append(reviewRow(r1), 12)...).
			AddRow(append(reviewRow(r2), 12)...))

	reviews, total, err := repo.ListByBook(context.Background(), "book-1", 2, 10)

	require.NoError(t, err)
	assert.Equal(t, 12, total)
	require.Len(t, reviews, 2)
	assert.Equal(t, 0, reviews[1].LikeCount())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_Update_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)
	r := sampleReview()

	mock.ExpectExec("UPDATE reviews SET rating").
		WithArgs(r.Rating, r.Comment, pgxmock.AnyArg(), r.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Update(context.Background(), &r)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_Delete(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectExec("DELETE FROM reviews WHERE id").
		WithArgs("rev-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, repo.Delete(context.Background(), "rev-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_RatingStats(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(rating\\), 0\\), COUNT\\(\\*\\) FROM reviews WHERE book_id").
		WithArgs("book-1").
		WillReturnRows(pgxmock.NewRows([]string{"sum", "count"}).AddRow(15, 4))

	sum, count, err := repo.RatingStats(context.Background(), "book-1")

	require.NoError(t, err)
	assert.Equal(t, 15, sum)
	assert.Equal(t, 4, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_RatingStats_Error(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("book-1").
		WillReturnError(errors.New("timeout"))

	_, _, err := repo.RatingStats(context.Background(), "book-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "get rating stats")
}

func TestReviewRepository_ToggleLike_Adds(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectExec("DELETE FROM review_likes").
		WithArgs("rev-1", "u-2").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO review_likes .+ ON CONFLICT").
		WithArgs("rev-1", "u-2", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	liked, err := repo.ToggleLike(context.Background(), "rev-1", "u-2")

	require.NoError(t, err)
	assert.True(t, liked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_ToggleLike_Removes(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectExec("DELETE FROM review_likes").
		WithArgs("rev-1", "u-2").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	liked, err := repo.ToggleLike(context.Background(), "rev-1", "u-2")

	require.NoError(t, err)
	assert.False(t, liked)
	assert.NoError(t, mock.ExpectationsWereMet())
}
