// Package pagination reads page/per_page query parameters and shapes list
// responses around them.
package pagination

import (
	"net/http"
	"strconv"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// Params is a 1-based page request.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// Offset is the number of rows preceding the page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// FromRequest reads page and per_page from the query string. limit is
// accepted as an alias for per_page. Missing, malformed and non-positive
// values fall back to page 1 and DefaultPerPage; sizes above MaxPerPage are
// clamped.
func FromRequest(r *http.Request) Params {
	q := r.URL.Query()

	size := q.Get("per_page")
	if size == "" {
		size = q.Get("limit")
	}
	return Params{
		Page:    positiveOr(q.Get("page"), 1),
		PerPage: min(positiveOr(size, DefaultPerPage), MaxPerPage),
	}
}

func positiveOr(raw string, fallback int) int {
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return v
	}
	return fallback
}

// Result is the envelope for every paginated list endpoint.
type Result[T any] struct {
	Data       []T  `json:"data"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// NewResult wraps one page of data. A nil slice renders as [].
func NewResult[T any](data []T, totalCount int, p Params) Result[T] {
	if data == nil {
		data = []T{}
	}
	pages := 0
	if p.PerPage > 0 {
		pages = (totalCount + p.PerPage - 1) / p.PerPage
	}
	return Result[T]{
		Data:       data,
		TotalCount: totalCount,
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: pages,
		HasNext:    p.Page < pages,
		HasPrev:    p.Page > 1,
	}
}
