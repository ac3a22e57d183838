// Package auth hashes passwords and issues and verifies signed access tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/bookstore/internal/domain"
)

const (
	// DefaultTokenTTL is the lifetime of an access token.
	DefaultTokenTTL = 7 * 24 * time.Hour
	// DefaultIssuer is written to the iss claim of every token.
	DefaultIssuer = "bookstore"
)

// Claims represents the JWT claims for an access token.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Config holds the CredentialManager settings.
type Config struct {
	SigningKey string
	TokenTTL   time.Duration
	BcryptCost int
	Issuer     string
}

// CredentialManager hashes and verifies passwords and issues and verifies
// HS256 access tokens.
type CredentialManager struct {
	key    []byte
	ttl    time.Duration
	cost   int
	issuer string
	now    func() time.Time
}

// Option customizes a CredentialManager.
type Option func(*CredentialManager)

// WithClock replaces the wall clock used for issuing and checking expiry.
func WithClock(now func() time.Time) Option {
	return func(m *CredentialManager) { m.now = now }
}

// NewCredentialManager creates a CredentialManager. Zero values in cfg fall
// back to the defaults.
func NewCredentialManager(cfg Config, opts ...Option) (*CredentialManager, error) {
	if cfg.SigningKey == "" {
		return nil, errors.New("signing key must not be empty")
	}
	m := &CredentialManager{
		key:    []byte(cfg.SigningKey),
		ttl:    cfg.TokenTTL,
		cost:   cfg.BcryptCost,
		issuer: cfg.Issuer,
		now:    time.Now,
	}
	if m.ttl <= 0 {
		m.ttl = DefaultTokenTTL
	}
	if m.cost == 0 {
		m.cost = bcrypt.DefaultCost
	}
	if m.cost < bcrypt.MinCost || m.cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", m.cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if m.issuer == "" {
		m.issuer = DefaultIssuer
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// TokenTTL returns the lifetime of issued tokens.
func (m *CredentialManager) TokenTTL() time.Duration {
	return m.ttl
}

// HashPassword returns the bcrypt hash of password.
func (m *CredentialManager) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches hash. A malformed hash is
// treated as a mismatch.
func (m *CredentialManager) VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// IssueToken creates a signed access token for user.
func (m *CredentialManager) IssueToken(user *domain.User) (string, time.Time, error) {
	now := m.now().UTC()
	expiresAt := now.Add(m.ttl)
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// VerifyToken parses and validates an access token. An expired token yields
// an error matching domain.ErrTokenExpired. Every other failure (bad
// signature, wrong algorithm, malformed input, missing claims) yields
// domain.ErrTokenInvalid.
func (m *CredentialManager) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.key, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.TokenExpired()
		}
		return nil, domain.TokenInvalid()
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, domain.TokenInvalid()
	}
	return claims, nil
}
