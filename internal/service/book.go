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
	"github.com/utafrali/bookstore/internal/repository"
	apperrors "github.com/utafrali/bookstore/pkg/errors"
	"github.com/utafrali/bookstore/pkg/pagination"
	"github.com/utafrali/bookstore/pkg/validator"
)

const (
	maxTitleLength       = 100
	minDescriptionLength = 50
	maxDescriptionLength = 2000
)

// BookService implements the business logic for catalog operations.
type BookService struct {
	repo   repository.BookRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewBookService creates a new book service.
func NewBookService(repo repository.BookRepository, logger *slog.Logger) *BookService {
	return &BookService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// CreateBookInput holds the parameters for creating a book.
type CreateBookInput struct {
	Title       string
	Author      string
	ISBN        string
	Price       int64
	PublishYear int
	Description string
	Category    string
	Stock       int
	CoverImage  string
}

// UpdateBookInput holds the parameters for updating a book. Nil fields are
// left unchanged.
type UpdateBookInput struct {
	Title       *string
	Author      *string
	ISBN        *string
	Price       *int64
	PublishYear *int
	Description *string
	Category    *string
	Stock       *int
	CoverImage  *string
}

// CreateBook validates the input and creates a new book. A new book starts
// with no rating.
func (s *BookService) CreateBook(ctx context.Context, input *CreateBookInput) (*domain.Book, error) {
	now := s.now().UTC()
	book := &domain.Book{
		ID:          uuid.New().String(),
		Title:       strings.TrimSpace(input.Title),
		Author:      strings.TrimSpace(input.Author),
		ISBN:        strings.TrimSpace(input.ISBN),
		Price:       input.Price,
		PublishYear: input.PublishYear,
		Description: strings.TrimSpace(input.Description),
		Category:    input.Category,
		Stock:       input.Stock,
		CoverImage:  strings.TrimSpace(input.CoverImage),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if book.CoverImage == "" {
		book.CoverImage = domain.DefaultCoverImage
	}

	if err := s.validate(book); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, book); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create book: %w", err)
	}

	s.logger.InfoContext(ctx, "book created",
		slog.String("book_id", book.ID),
		slog.String("isbn", book.ISBN),
	)

	return book, nil
}

// GetBook retrieves a book by its ID.
func (s *BookService) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	book, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("book", id)
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

// ListBooks returns books matching the filter along with the total count.
func (s *BookService) ListBooks(ctx context.Context, filter repository.BookFilter) ([]domain.Book, int, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = pagination.DefaultPerPage
	}
	if filter.PerPage > pagination.MaxPerPage {
		filter.PerPage = pagination.MaxPerPage
	}
	if filter.Category != nil && !domain.IsValidCategory(*filter.Category) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("unknown category %q", *filter.Category))
	}
	if !domain.IsValidSortBy(filter.SortBy) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("cannot sort by %q", filter.SortBy))
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		return nil, 0, apperrors.InvalidInput("min_price must not exceed max_price")
	}

	books, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list books: %w", err)
	}
	return books, total, nil
}

// UpdateBook applies a partial update to a book. The rating fields are not
// editable.
func (s *BookService) UpdateBook(ctx context.Context, id string, input *UpdateBookInput) (*domain.Book, error) {
	book, err := s.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		book.Title = strings.TrimSpace(*input.Title)
	}
	if input.Author != nil {
		book.Author = strings.TrimSpace(*input.Author)
	}
	if input.ISBN != nil {
		book.ISBN = strings.TrimSpace(*input.ISBN)
	}
	if input.Price != nil {
		book.Price = *input.Price
	}
	if input.PublishYear != nil {
		book.PublishYear = *input.PublishYear
	}
	if input.Description != nil {
		book.Description = strings.TrimSpace(*input.Description)
	}
	if input.Category != nil {
		book.Category = *input.Category
	}
	if input.Stock != nil {
		book.Stock = *input.Stock
	}
	if input.CoverImage != nil {
		book.CoverImage = strings.TrimSpace(*input.CoverImage)
		if book.CoverImage == "" {
			book.CoverImage = domain.DefaultCoverImage
		}
	}

	if err := s.validate(book); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, book); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) || errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update book: %w", err)
	}

	s.logger.InfoContext(ctx, "book updated", slog.String("book_id", book.ID))
	return book, nil
}

// DeleteBook removes a book and its reviews.
func (s *BookService) DeleteBook(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete book: %w", err)
	}

	s.logger.InfoContext(ctx, "book deleted", slog.String("book_id", id))
	return nil
}

func (s *BookService) validate(b *domain.Book) error {
	switch {
	case b.Title == "":
		return apperrors.InvalidInput("title is required")
	case utf8.RuneCountInString(b.Title) > maxTitleLength:
		return apperrors.InvalidInput(fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	case b.Author == "":
		return apperrors.InvalidInput("author is required")
	case !validator.IsISBN(b.ISBN):
		return apperrors.InvalidInput("isbn must be 10 or 13 digits")
	case b.Price < 0:
		return apperrors.InvalidInput("price must not be negative")
	case b.PublishYear < domain.MinPublishYear || b.PublishYear > s.now().Year():
		return apperrors.InvalidInput(fmt.Sprintf("publish_year must be between %d and %d", domain.MinPublishYear, s.now().Year()))
	case !domain.IsValidCategory(b.Category):
		return apperrors.InvalidInput(fmt.Sprintf("category must be one of %s", strings.Join(domain.ValidCategories(), ", ")))
	case b.Stock < 0:
		return apperrors.InvalidInput("stock must not be negative")
	}

	n := utf8.RuneCountInString(b.Description)
	if n < minDescriptionLength || n > maxDescriptionLength {
		return apperrors.InvalidInput(fmt.Sprintf("description must be between %d and %d characters", minDescriptionLength, maxDescriptionLength))
	}
	return nil
}
