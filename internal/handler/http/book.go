package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/bookstore/internal/domain"
	"github.com/utafrali/bookstore/internal/repository"
	"github.com/utafrali/bookstore/internal/service"
	"github.com/utafrali/bookstore/pkg/httputil"
	"github.com/utafrali/bookstore/pkg/pagination"
	"github.com/utafrali/bookstore/pkg/validator"
)

// BookHandler handles HTTP requests for catalog endpoints.
type BookHandler struct {
	service *service.BookService
	ratings *service.RatingService
	logger  *slog.Logger
}

// NewBookHandler creates a new book HTTP handler.
func NewBookHandler(svc *service.BookService, ratings *service.RatingService, logger *slog.Logger) *BookHandler {
	return &BookHandler{
		service: svc,
		ratings: ratings,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateBookRequest is the JSON request body for creating a book. The rating
// fields are not accepted.
type CreateBookRequest struct {
	Title       string `json:"title" validate:"required,max=100"`
	Author      string `json:"author" validate:"required,max=200"`
	ISBN        string `json:"isbn" validate:"required,isbn_digits"`
	Price       int64  `json:"price" validate:"gte=0"`
	PublishYear int    `json:"publish_year" validate:"required,gte=1800"`
	Description string `json:"description" validate:"required,min=50,max=2000"`
	Category    string `json:"category" validate:"required,oneof=novel science history philosophy children educational other"`
	Stock       int    `json:"stock" validate:"gte=0"`
	CoverImage  string `json:"cover_image" validate:"omitempty,max=500"`
}

// UpdateBookRequest is the JSON request body for a partial book update.
type UpdateBookRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=100"`
	Author      *string `json:"author" validate:"omitempty,min=1,max=200"`
	ISBN        *string `json:"isbn" validate:"omitempty,isbn_digits"`
	Price       *int64  `json:"price" validate:"omitempty,gte=0"`
	PublishYear *int    `json:"publish_year" validate:"omitempty,gte=1800"`
	Description *string `json:"description" validate:"omitempty,min=50,max=2000"`
	Category    *string `json:"category" validate:"omitempty,oneof=novel science history philosophy children educational other"`
	Stock       *int    `json:"stock" validate:"omitempty,gte=0"`
	CoverImage  *string `json:"cover_image" validate:"omitempty,max=500"`
}

// --- Handlers ---

// ListBooks handles GET /api/v1/books
func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)
	q := r.URL.Query()

	filter := repository.BookFilter{
		Page:    params.Page,
		PerPage: params.PerPage,
	}

	if v := q.Get("category"); v != "" {
		if !domain.IsValidCategory(v) {
			writeInvalidParameter(w, "category must be one of: "+strings.Join(domain.ValidCategories(), ", "))
			return
		}
		filter.Category = &v
	}
	if v := strings.TrimSpace(q.Get("author")); v != "" {
		filter.Author = &v
	}
	if v := strings.TrimSpace(q.Get("search")); v != "" {
		filter.Search = &v
	}
	if v := q.Get("min_price"); v != "" {
		price, err := strconv.ParseInt(v, 10, 64)
		if err != nil || price < 0 {
			writeInvalidParameter(w, "min_price must be a non-negative number")
			return
		}
		filter.MinPrice = &price
	}
	if v := q.Get("max_price"); v != "" {
		price, err := strconv.ParseInt(v, 10, 64)
		if err != nil || price < 0 {
			writeInvalidParameter(w, "max_price must be a non-negative number")
			return
		}
		filter.MaxPrice = &price
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		writeInvalidParameter(w, "min_price must not exceed max_price")
		return
	}
	if v := q.Get("sort_by"); v != "" {
		if !domain.IsValidSortBy(v) {
			writeInvalidParameter(w, "sort_by must be one of: "+strings.Join(domain.ValidSortByValues(), ", "))
			return
		}
		filter.SortBy = v
	}
	switch strings.ToLower(q.Get("order")) {
	case "", "asc":
	case "desc":
		filter.Desc = true
	default:
		writeInvalidParameter(w, "order must be asc or desc")
		return
	}

	books, total, err := h.service.ListBooks(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(books, total, params))
}

// GetBook handles GET /api/v1/books/{id}
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	book, err := h.service.GetBook(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: book})
}

// CreateBook handles POST /api/v1/books
func (h *BookHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var req CreateBookRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	book, err := h.service.CreateBook(r.Context(), &service.CreateBookInput{
		Title:       req.Title,
		Author:      req.Author,
		ISBN:        req.ISBN,
		Price:       req.Price,
		PublishYear: req.PublishYear,
		Description: req.Description,
		Category:    req.Category,
		Stock:       req.Stock,
		CoverImage:  req.CoverImage,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: book})
}

// UpdateBook handles PUT /api/v1/books/{id}
func (h *BookHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdateBookRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	book, err := h.service.UpdateBook(r.Context(), id.String(), &service.UpdateBookInput{
		Title:       req.Title,
		Author:      req.Author,
		ISBN:        req.ISBN,
		Price:       req.Price,
		PublishYear: req.PublishYear,
		Description: req.Description,
		Category:    req.Category,
		Stock:       req.Stock,
		CoverImage:  req.CoverImage,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: book})
}

// DeleteBook handles DELETE /api/v1/books/{id}
func (h *BookHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.DeleteBook(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"id": id.String(), "status": "deleted"}})
}

// RecomputeRating handles POST /api/v1/books/{id}/rating/recompute
func (h *BookHandler) RecomputeRating(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	summary, err := h.ratings.RecomputeNow(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: summary})
}

func writeInvalidParameter(w http.ResponseWriter, message string) {
	httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
		Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: message},
	})
}
