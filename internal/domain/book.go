package domain

import (
	"time"
)

// Book categories. The set is closed.
const (
	CategoryNovel       = "novel"
	CategoryScience     = "science"
	CategoryHistory     = "history"
	CategoryPhilosophy  = "philosophy"
	CategoryChildren    = "children"
	CategoryEducational = "educational"
	CategoryOther       = "other"
)

// DefaultCoverImage is used when a book is created without a cover.
const DefaultCoverImage = "default-book-cover.jpg"

// MinPublishYear is the earliest accepted publication year.
const MinPublishYear = 1800

// Book is a catalog entry. AverageRating and NumberOfReviews are derived from
// the book's reviews and are only ever written by the rating aggregator.
type Book struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	ISBN            string    `json:"isbn"`
	Price           int64     `json:"price"`
	PublishYear     int       `json:"publish_year"`
	Description     string    `json:"description"`
	Category        string    `json:"category"`
	Stock           int       `json:"stock"`
	CoverImage      string    `json:"cover_image"`
	AverageRating   float64   `json:"average_rating"`
	NumberOfReviews int       `json:"number_of_reviews"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ValidCategories returns the closed set of book categories.
func ValidCategories() []string {
	return []string{
		CategoryNovel, CategoryScience, CategoryHistory, CategoryPhilosophy,
		CategoryChildren, CategoryEducational, CategoryOther,
	}
}

// IsValidCategory checks whether the given category belongs to the closed set.
func IsValidCategory(category string) bool {
	for _, c := range ValidCategories() {
		if c == category {
			return true
		}
	}
	return false
}

// Book list sort keys.
const (
	SortByCreatedAt     = "created_at"
	SortByPrice         = "price"
	SortByTitle         = "title"
	SortByAverageRating = "average_rating"
	SortByPublishYear   = "publish_year"
)

// ValidSortByValues returns the accepted sort keys for book listings.
func ValidSortByValues() []string {
	return []string{SortByCreatedAt, SortByPrice, SortByTitle, SortByAverageRating, SortByPublishYear}
}

// IsValidSortBy checks whether the given sort key is accepted. Empty selects
// the default ordering.
func IsValidSortBy(sortBy string) bool {
	if sortBy == "" {
		return true
	}
	for _, v := range ValidSortByValues() {
		if v == sortBy {
			return true
		}
	}
	return false
}
