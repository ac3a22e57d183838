package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/utafrali/bookstore/internal/service"
	"github.com/utafrali/bookstore/pkg/middleware"
)

// ContentTypeJSON enforces Content-Type: application/json on write requests
// that carry a body. Bodyless actions such as the like toggle pass through.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hasBody := r.ContentLength != 0
		isWrite := r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch
		if hasBody && isWrite {
			ct := r.Header.Get("Content-Type")
			if !strings.HasPrefix(ct, "application/json") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnsupportedMediaType)
				_, _ = w.Write([]byte(`{"error":{"code":"UNSUPPORTED_MEDIA_TYPE","message":"Content-Type must be application/json"}}`))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// TokenValidator resolves a bearer token to the stored user. The role is
// taken from the user row, so a demotion applies to tokens already issued.
func TokenValidator(authService *service.AuthService) middleware.TokenValidator {
	return func(ctx context.Context, token string) (*middleware.Claims, error) {
		user, err := authService.Authenticate(ctx, token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			UserID: user.ID,
			Email:  user.Email,
			Role:   user.Role,
		}, nil
	}
}
