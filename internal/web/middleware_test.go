// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accounts/internal/web"
	"github.com/holomush/accounts/pkg/errutil"
)

func TestOriginMatcher(t *testing.T) {
	m, err := web.NewOriginMatcher([]string{"http://localhost:*", "https://*.example.com", "https://app.test"})
	require.NoError(t, err)

	tests := []struct {
		origin string
		want   bool
	}{
		{"http://localhost:5173", true},
		{"https://shop.example.com", true},
		{"https://SHOP.Example.com", true},
		{"https://a.b.example.com", false},
		{"https://example.com", false},
		{"https://app.test", true},
		{"https://evil.test", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Allowed(tt.origin))
		})
	}
}

func TestOriginMatcher_InvalidPatterns(t *testing.T) {
	_, err := web.NewOriginMatcher([]string{" "})
	errutil.AssertErrorCode(t, err, "CORS_PATTERN_INVALID")

	_, err = web.NewOriginMatcher([]string{"https://[abc"})
	errutil.AssertErrorCode(t, err, "CORS_PATTERN_INVALID")
}

func TestCORS(t *testing.T) {
	a := newAPI(t, web.Config{Origins: []string{"https://*.example.com"}})

	t.Run("preflight from allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/login", nil)
		req.Header.Set("Origin", "https://app.example.com")
		rec := httptest.NewRecorder()
		a.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
	})

	t.Run("simple request from allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/plans", nil)
		req.Header.Set("Origin", "https://app.example.com")
		rec := httptest.NewRecorder()
		a.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Values("Vary"), "Origin")
	})

	t.Run("other origin gets no CORS headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/plans", nil)
		req.Header.Set("Origin", "https://evil.test")
		rec := httptest.NewRecorder()
		a.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestStatusFor(t *testing.T) {
	tests := map[string]int{
		"INVALID_INPUT":      http.StatusBadRequest,
		"WEAK_PASSWORD":      http.StatusBadRequest,
		"UNKNOWN_PLAN":       http.StatusBadRequest,
		"USER_NOT_FOUND":     http.StatusUnauthorized,
		"WRONG_PASSWORD":     http.StatusUnauthorized,
		"NO_PASSWORD_SET":    http.StatusUnauthorized,
		"SESSION_INVALID":    http.StatusUnauthorized,
		"SESSION_EXPIRED":    http.StatusUnauthorized,
		"DUPLICATE_EMAIL":    http.StatusConflict,
		"STORAGE_ERROR":      http.StatusServiceUnavailable,
		"INCONSISTENT_STATE": http.StatusInternalServerError,
		"":                   http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, web.StatusFor(code), code)
	}
}
