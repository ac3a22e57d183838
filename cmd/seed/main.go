// Package main implements a standalone seed command that populates the
// bookstore database with sample users, books and reviews. Users, books and
// reviews go through the service layer so every review triggers the same
// rating aggregation the API does. Running it twice is safe: rows that already
// exist are skipped.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/utafrali/bookstore/internal/auth"
	"github.com/utafrali/bookstore/internal/config"
	"github.com/utafrali/bookstore/internal/domain"
	"github.com/utafrali/bookstore/internal/repository/postgres"
	"github.com/utafrali/bookstore/internal/service"
	"github.com/utafrali/bookstore/migrations"
	"github.com/utafrali/bookstore/pkg/database"
	apperrors "github.com/utafrali/bookstore/pkg/errors"
	"github.com/utafrali/bookstore/pkg/logger"
)

// --------------------------------------------------------------------------
// Seed data definitions
// --------------------------------------------------------------------------

type userDef struct {
	username string
	email    string
	password string
	admin    bool
}

type bookDef struct {
	title       string
	author      string
	isbn        string
	price       int64
	year        int
	category    string
	stock       int
	description string
}

type reviewDef struct {
	isbn    string
	email   string
	rating  int
	comment string
}

var users = []userDef{
	{"admin", "admin@bookstore.local", "admin-secret", true},
	{"ayse", "ayse@bookstore.local", "reader-secret", false},
	{"mehmet", "mehmet@bookstore.local", "reader-secret", false},
	{"zeynep", "zeynep@bookstore.local", "reader-secret", false},
}

var books = []bookDef{
	{"Crime and Punishment", "Fyodor Dostoevsky", "9780143058142", 1450, 1866, domain.CategoryNovel, 12,
		"A former student in Saint Petersburg commits a murder and spends the rest of the novel wrestling with guilt, pride and redemption."},
	{"A Brief History of Time", "Stephen Hawking", "9780553380163", 1899, 1988, domain.CategoryScience, 8,
		"An accessible tour of cosmology covering the big bang, black holes, light cones and the search for a unified theory of physics."},
	{"The Histories", "Herodotus", "9780140449082", 1699, 1954, domain.CategoryHistory, 5,
		"The first great narrative history of the ancient world, recounting the wars between the Greeks and the Persian empire."},
	{"Meditations", "Marcus Aurelius", "9780812968255", 1199, 2002, domain.CategoryPhilosophy, 20,
		"Private notes of a Roman emperor on duty, mortality and self discipline, written as a guide for his own conduct."},
	{"The Little Prince", "Antoine de Saint-Exupery", "9780156012195", 999, 1943, domain.CategoryChildren, 30,
		"A pilot stranded in the desert meets a young prince from a tiny asteroid and learns what matters most in life."},
	{"Introduction to Algorithms", "Thomas H. Cormen", "9780262046305", 9999, 2022, domain.CategoryEducational, 4,
		"A comprehensive textbook covering sorting, graph algorithms, dynamic programming and the analysis of algorithm complexity."},
}

var reviews = []reviewDef{
	{"9780143058142", "ayse@bookstore.local", 5, "A masterpiece of psychological depth."},
	{"9780143058142", "mehmet@bookstore.local", 4, "Heavy going at times but worth every page."},
	{"9780143058142", "zeynep@bookstore.local", 4, "Raskolnikov stays with you long after the end."},
	{"9780553380163", "ayse@bookstore.local", 3, "Interesting, though the later chapters lost me."},
	{"9780553380163", "zeynep@bookstore.local", 5, "Made black holes finally click for me."},
	{"9780812968255", "mehmet@bookstore.local", 5, "I reread a few pages every single morning."},
	{"9780156012195", "zeynep@bookstore.local", 5, "Charming for children and adults alike."},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New("bookstore-seed", cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("seed complete")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	// ---------------------------------------------------------------
	// 1. Connect and migrate
	// ---------------------------------------------------------------
	pgCfg := cfg.Postgres()
	pgCfg.MaxConns, pgCfg.MinConns = 4, 1
	pool, err := database.NewPostgresPool(ctx, &pgCfg, log)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	creds, err := auth.NewCredentialManager(auth.Config{
		SigningKey: cfg.JWTSecret,
		TokenTTL:   cfg.JWTTTL,
		BcryptCost: cfg.BcryptCost,
		Issuer:     cfg.JWTIssuer,
	})
	if err != nil {
		return fmt.Errorf("init credential manager: %w", err)
	}

	userRepo := postgres.NewUserRepository(pool)
	bookRepo := postgres.NewBookRepository(pool)
	reviewRepo := postgres.NewReviewRepository(pool)

	ratings := service.NewRatingService(bookRepo, reviewRepo, log)
	authService := service.NewAuthService(userRepo, creds, log)
	bookService := service.NewBookService(bookRepo, log)
	reviewService := service.NewReviewService(reviewRepo, bookRepo, ratings, nil, log)

	// ---------------------------------------------------------------
	// 2. Users
	// ---------------------------------------------------------------
	userIDs := make(map[string]string, len(users))
	for _, u := range users {
		id, err := seedUser(ctx, pool, authService, userRepo, u)
		if err != nil {
			return fmt.Errorf("seed user %s: %w", u.email, err)
		}
		userIDs[u.email] = id
		log.Info("user ready", slog.String("email", u.email), slog.Bool("admin", u.admin))
	}

	// ---------------------------------------------------------------
	// 3. Books
	// ---------------------------------------------------------------
	bookIDs := make(map[string]string, len(books))
	for _, b := range books {
		book, err := bookService.CreateBook(ctx, &service.CreateBookInput{
			Title:       b.title,
			Author:      b.author,
			ISBN:        b.isbn,
			Price:       b.price,
			PublishYear: b.year,
			Description: b.description,
			Category:    b.category,
			Stock:       b.stock,
		})
		switch {
		case err == nil:
			bookIDs[b.isbn] = book.ID
			log.Info("book created", slog.String("title", b.title), slog.String("id", book.ID))
		case errors.Is(err, apperrors.ErrAlreadyExists):
			var id string
			if err := pool.QueryRow(ctx, `SELECT id FROM books WHERE isbn = $1`, b.isbn).Scan(&id); err != nil {
				return fmt.Errorf("look up book %s: %w", b.isbn, err)
			}
			bookIDs[b.isbn] = id
			log.Info("book exists, skipping", slog.String("title", b.title))
		default:
			return fmt.Errorf("create book %q: %w", b.title, err)
		}
	}

	// ---------------------------------------------------------------
	// 4. Reviews
	// ---------------------------------------------------------------
	created := 0
	for _, r := range reviews {
		_, err := reviewService.CreateReview(ctx, &service.CreateReviewInput{
			BookID:  bookIDs[r.isbn],
			UserID:  userIDs[r.email],
			Rating:  r.rating,
			Comment: r.comment,
		})
		if errors.Is(err, domain.ErrDuplicateReview) {
			continue
		}
		if err != nil {
			return fmt.Errorf("create review for %s by %s: %w", r.isbn, r.email, err)
		}
		created++
	}
	log.Info("reviews seeded", slog.Int("created", created), slog.Int("total", len(reviews)))

	// Recompute every seeded book so aggregates are correct even for books
	// whose reviews all already existed.
	for isbn, id := range bookIDs {
		summary, err := ratings.RecomputeNow(ctx, id)
		if err != nil {
			return fmt.Errorf("recompute rating for %s: %w", isbn, err)
		}
		log.Info("rating",
			slog.String("isbn", isbn),
			slog.Float64("average_rating", summary.AverageRating),
			slog.Int("number_of_reviews", summary.NumberOfReviews),
		)
	}
	return nil
}

// seedUser registers u, or finds the existing account when the email is
// taken, and grants the admin role when requested.
func seedUser(ctx context.Context, pool *pgxpool.Pool, authService *service.AuthService, userRepo *postgres.UserRepository, u userDef) (string, error) {
	var id string
	res, err := authService.Register(ctx, service.RegisterInput{
		Username: u.username,
		Email:    u.email,
		Password: u.password,
	})
	switch {
	case err == nil:
		id = res.User.ID
	case errors.Is(err, apperrors.ErrAlreadyExists):
		existing, err := userRepo.GetByEmail(ctx, u.email)
		if err != nil {
			return "", fmt.Errorf("get existing user: %w", err)
		}
		id = existing.ID
	default:
		return "", err
	}

	if u.admin {
		if _, err := pool.Exec(ctx, `UPDATE users SET role = $1, updated_at = NOW() WHERE id = $2`, domain.RoleAdmin, id); err != nil {
			return "", fmt.Errorf("grant admin role: %w", err)
		}
	}
	return id, nil
}
