// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/observability"
)

// OriginMatcher decides which browser origins may call the API.
//
// Patterns use gobwas/glob with '.' as the separator, so
// "https://*.example.com" matches one subdomain level and
// "https://**.example.com" matches any depth.
type OriginMatcher struct {
	patterns []glob.Glob
}

// NewOriginMatcher compiles the allowed origin patterns.
func NewOriginMatcher(patterns []string) (*OriginMatcher, error) {
	m := &OriginMatcher{}
	for i, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			return nil, oops.Code("CORS_PATTERN_INVALID").With("index", i).Errorf("empty origin pattern")
		}
		g, err := glob.Compile(strings.ToLower(pattern), '.')
		if err != nil {
			return nil, oops.Code("CORS_PATTERN_INVALID").With("pattern", pattern).Wrap(err)
		}
		m.patterns = append(m.patterns, g)
	}
	return m, nil
}

// Allowed reports whether origin matches any pattern.
func (m *OriginMatcher) Allowed(origin string) bool {
	if m == nil || origin == "" {
		return false
	}
	origin = strings.ToLower(origin)
	for _, g := range m.patterns {
		if g.Match(origin) {
			return true
		}
	}
	return false
}

// cors answers preflight requests and sets credentialed CORS headers for
// allowed origins. Other origins get no CORS headers.
func cors(m *OriginMatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if !m.Allowed(origin) {
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Add("Vary", "Origin")

		if c.Request.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Accept, Origin, X-Requested-With")
			h.Set("Access-Control-Max-Age", "600")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// requestLogger logs each request and feeds the HTTP metrics. metrics may
// be nil.
func requestLogger(logger *slog.Logger, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		if metrics != nil {
			metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
			metrics.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
		}

		level := slog.LevelDebug
		if status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
		)
	}
}
