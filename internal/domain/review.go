package domain

import (
	"time"
)

// Review constraints.
const (
	MinRating        = 1
	MaxRating        = 5
	MinCommentLength = 10
	MaxCommentLength = 1000
)

// Review is a user's rating and comment on a book. A user has at most one
// review per book. Likes holds the distinct ids of users who liked it.
type Review struct {
	ID        string    `json:"id"`
	BookID    string    `json:"book_id"`
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	Likes     []string  `json:"likes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LikeCount returns the number of distinct users who liked the review.
func (r *Review) LikeCount() int {
	return len(r.Likes)
}

// IsOwnedBy reports whether userID authored the review.
func (r *Review) IsOwnedBy(userID string) bool {
	return r.UserID == userID
}

// RatingSummary is the derived rating aggregate of a book.
type RatingSummary struct {
	BookID          string  `json:"book_id"`
	AverageRating   float64 `json:"average_rating"`
	NumberOfReviews int     `json:"number_of_reviews"`
}

// NewRatingSummary derives the summary from the sum and count of all ratings
// of a book. The mean is rounded half-up to one decimal place using integer
// arithmetic, so 3.75 becomes 3.8 without floating point drift. No reviews
// yields 0 and 0.
func NewRatingSummary(bookID string, ratingSum, count int) RatingSummary {
	if count <= 0 {
		return RatingSummary{BookID: bookID}
	}
	// round(sum/count, 1) == floor((20*sum + count) / (2*count)) / 10
	tenths := (20*ratingSum + count) / (2 * count)
	return RatingSummary{
		BookID:          bookID,
		AverageRating:   float64(tenths) / 10,
		NumberOfReviews: count,
	}
}
