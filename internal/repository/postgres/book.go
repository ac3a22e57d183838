package postgres

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/bookstore/internal/domain"
	"github.com/utafrali/bookstore/internal/repository"
	"github.com/utafrali/bookstore/pkg/database"
	apperrors "github.com/utafrali/bookstore/pkg/errors"
	"github.com/utafrali/bookstore/pkg/pagination"
)

const bookColumns = `id, title, author, isbn, price, publish_year, description, category, stock,
		       cover_image, average_rating, number_of_reviews, created_at, updated_at`

// sortColumns maps accepted sort keys to trusted column names.
var sortColumns = map[string]string{
	domain.SortByCreatedAt:     "created_at",
	domain.SortByPrice:         "price",
	domain.SortByTitle:         "title",
	domain.SortByAverageRating: "average_rating",
	domain.SortByPublishYear:   "publish_year",
}

// BookRepository implements repository.BookRepository using PostgreSQL.
type BookRepository struct {
	pool database.TxBeginner
}

// NewBookRepository creates a new PostgreSQL-backed book repository.
func NewBookRepository(pool database.TxBeginner) *BookRepository {
	return &BookRepository{pool: pool}
}

// Create inserts a new book into the database.
func (r *BookRepository) Create(ctx context.Context, b *domain.Book) error {
	query := `
		INSERT INTO books (id, title, author, isbn, price, publish_year, description, category, stock,
		                   cover_image, average_rating, number_of_reviews, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.pool.Exec(ctx, query,
		b.ID,
		b.Title,
		b.Author,
		b.ISBN,
		b.Price,
		b.PublishYear,
		b.Description,
		b.Category,
		b.Stock,
		b.CoverImage,
		b.AverageRating,
		b.NumberOfReviews,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			return isbnExists(b.ISBN)
		}
		return fmt.Errorf("insert book: %w", err)
	}

	return nil
}

// GetByID retrieves a book by its ID.
func (r *BookRepository) GetByID(ctx context.Context, id string) (*domain.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE id = $1`

	var b domain.Book
	err := r.pool.QueryRow(ctx, query, id).Scan(bookFields(&b)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan book: %w", err)
	}

	return &b, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern matching term literally anywhere in
// the column. Pair it with ESCAPE '\'.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

// pageWindow turns a 1-based page into LIMIT and OFFSET, defaulting the
// page size when it is unset.
func pageWindow(page, perPage int) (limit, offset int) {
	p := pagination.Params{Page: max(page, 1), PerPage: perPage}
	if p.PerPage <= 0 {
		p.PerPage = pagination.DefaultPerPage
	}
	return p.PerPage, p.Offset()
}

// List returns books matching the given filter with the total count.
func (r *BookRepository) List(ctx context.Context, filter repository.BookFilter) ([]domain.Book, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.Category != nil {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argIndex))
		args = append(args, *filter.Category)
		argIndex++
	}

	if filter.Author != nil {
		conditions = append(conditions, fmt.Sprintf(`author ILIKE $%d ESCAPE '\'`, argIndex))
		args = append(args, containsPattern(*filter.Author))
		argIndex++
	}

	if filter.Search != nil {
		conditions = append(conditions, fmt.Sprintf(`(title ILIKE $%d ESCAPE '\' OR author ILIKE $%d ESCAPE '\')`, argIndex, argIndex))
		args = append(args, containsPattern(*filter.Search))
		argIndex++
	}

	if filter.MinPrice != nil {
		conditions = append(conditions, fmt.Sprintf("price >= $%d", argIndex))
		args = append(args, *filter.MinPrice)
		argIndex++
	}

	if filter.MaxPrice != nil {
		conditions = append(conditions, fmt.Sprintf("price <= $%d", argIndex))
		args = append(args, *filter.MaxPrice)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	sortColumn, ok := sortColumns[filter.SortBy]
	if !ok {
		sortColumn = "created_at"
	}
	direction := "ASC"
	if filter.Desc {
		direction = "DESC"
	}

	// Use count(*) OVER() for total count in a single query. id breaks ties
	// so pages are stable.
	query := fmt.Sprintf(`
		SELECT %s,
		       count(*) OVER() AS total_count
		FROM books
		%s
		ORDER BY %s %s, id
		LIMIT $%d OFFSET $%d`,
		bookColumns, whereClause, sortColumn, direction, argIndex, argIndex+1,
	)

	limit, offset := pageWindow(filter.Page, filter.PerPage)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var (
		books      []domain.Book
		totalCount int
	)

	for rows.Next() {
		var b domain.Book
		if err := rows.Scan(append(bookFields(&b), &totalCount)...); err != nil {
			return nil, 0, fmt.Errorf("scan book row: %w", err)
		}
		books = append(books, b)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate book rows: %w", err)
	}

	if books == nil {
		books = []domain.Book{}
	}

	return books, totalCount, nil
}

// Update modifies the editable fields of an existing book.
func (r *BookRepository) Update(ctx context.Context, b *domain.Book) error {
	b.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE books
		SET title = $1, author = $2, isbn = $3, price = $4, publish_year = $5, description = $6,
		    category = $7, stock = $8, cover_image = $9, updated_at = $10
		WHERE id = $11`

	ct, err := r.pool.Exec(ctx, query,
		b.Title,
		b.Author,
		b.ISBN,
		b.Price,
		b.PublishYear,
		b.Description,
		b.Category,
		b.Stock,
		b.CoverImage,
		b.UpdatedAt,
		b.ID,
	)
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			return isbnExists(b.ISBN)
		}
		return fmt.Errorf("update book: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("book", b.ID)
	}

	return nil
}

// Delete removes a book and its reviews in one transaction. Likes go with
// their reviews through ON DELETE CASCADE.
func (r *BookRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM reviews WHERE book_id = $1`, id); err != nil {
		return fmt.Errorf("delete book reviews: %w", err)
	}

	ct, err := tx.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("book", id)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// UpdateRatingFields writes both derived rating fields in one statement so
// readers never observe a mean from one review set paired with the count of
// another.
func (r *BookRepository) UpdateRatingFields(ctx context.Context, bookID string, averageRating float64, numberOfReviews int) error {
	query := `
		UPDATE books
		SET average_rating = $1, number_of_reviews = $2
		WHERE id = $3`

	ct, err := r.pool.Exec(ctx, query, averageRating, numberOfReviews, bookID)
	if err != nil {
		return fmt.Errorf("update book rating: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("book", bookID)
	}

	return nil
}

func bookFields(b *domain.Book) []any {
	return []any{
		&b.ID,
		&b.Title,
		&b.Author,
		&b.ISBN,
		&b.Price,
		&b.PublishYear,
		&b.Description,
		&b.Category,
		&b.Stock,
		&b.CoverImage,
		&b.AverageRating,
		&b.NumberOfReviews,
		&b.CreatedAt,
		&b.UpdatedAt,
	}
}

func isbnExists(isbn string) error {
	return apperrors.New(domain.CodeISBNExists,
		fmt.Sprintf("a book with isbn %q already exists", isbn),
		http.StatusConflict, apperrors.ErrAlreadyExists)
}
