package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func allowlisted(cidrs []string, buf *bytes.Buffer) http.Handler {
	return IPAllowlist(cidrs, newTestLogger(buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestIPAllowlist(t *testing.T) {
	tests := []struct {
		name    string
		cidrs   []string
		remote  string
		headers map[string]string
		want    int
	}{
		{"loopback allowed", []string{"127.0.0.0/8"}, "127.0.0.1:1234", nil, http.StatusOK},
		{"private range allowed", []string{"10.0.0.0/8", "192.168.0.0/16"}, "192.168.4.4:1234", nil, http.StatusOK},
		{"outside range denied", []string{"10.0.0.0/8"}, "8.8.8.8:1234", nil, http.StatusForbidden},
		{"ipv6 loopback", []string{"::1/128"}, "[::1]:1234", nil, http.StatusOK},
		{"no port", []string{"127.0.0.0/8"}, "127.0.0.1", nil, http.StatusOK},
		{"invalid cidr skipped", []string{"not-a-cidr", "127.0.0.0/8"}, "127.0.0.1:1", nil, http.StatusOK},
		{"empty list denies", nil, "127.0.0.1:1", nil, http.StatusForbidden},
		{"forwarded header ignored", []string{"127.0.0.0/8"}, "8.8.8.8:1", map[string]string{"X-Forwarded-For": "127.0.0.1"}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()

			allowlisted(tt.cidrs, &buf).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestIPAllowlist_DeniedBodyAndLog(t *testing.T) {
	var buf bytes.Buffer
	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/heap", nil)
	req.RemoteAddr = "203.0.113.5:999"
	rec := httptest.NewRecorder()

	allowlisted([]string{"10.0.0.0/8"}, &buf).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"code":"FORBIDDEN","message":"access restricted by IP allowlist"}`, rec.Body.String())
	assert.Contains(t, buf.String(), "203.0.113.5")
}

func TestRegisterPprof_Routes(t *testing.T) {
	r := chi.NewRouter()
	RegisterPprof(r, []string{"127.0.0.0/8"}, newTestLogger(&bytes.Buffer{}))

	for _, path := range []string{"/debug/pprof/", "/debug/pprof/cmdline", "/debug/pprof/symbol", "/debug/pprof/heap"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			req.RemoteAddr = "127.0.0.1:1234"
			rec := httptest.NewRecorder()

			r.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	req.RemoteAddr = "192.168.1.1:1234"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
