// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package web exposes the account service as a JSON HTTP API with cookie
// sessions.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/account"
	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/observability"
)

// SessionCookie is the name of the cookie holding the session token.
const SessionCookie = "session"

const ctxUser = "accounts.user"

// Accounts is the authentication surface the handlers use.
type Accounts interface {
	Register(ctx context.Context, in auth.RegisterInput) (string, error)
	Login(ctx context.Context, email, password string) (string, error)
	OpenSession(ctx context.Context, userID, userAgent, ipAddress string) (*auth.WebSession, string, error)
	CurrentUser(ctx context.Context, token string) (*account.User, *auth.WebSession, error)
	Logout(ctx context.Context, token string) error
}

// Subscriptions is the plan surface the handlers use.
type Subscriptions interface {
	Plans() []account.Plan
	Get(ctx context.Context, userID string) (*account.Subscription, error)
	Upgrade(ctx context.Context, userID, plan string) (*account.Subscription, error)
}

// Config holds the HTTP layer settings.
type Config struct {
	// Origins are the CORS origin patterns. Empty disables CORS.
	Origins []string
	// SecureCookie sets the Secure attribute on the session cookie.
	SecureCookie bool
}

// Handler serves the account API.
type Handler struct {
	accounts      Accounts
	subscriptions Subscriptions
	origins       *OriginMatcher
	secureCookie  bool
	logger        *slog.Logger
	metrics       *observability.Metrics
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics records request counts and latencies.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// NewHandler creates a Handler.
func NewHandler(accounts Accounts, subscriptions Subscriptions, cfg Config, opts ...Option) (*Handler, error) {
	if accounts == nil {
		return nil, oops.Errorf("accounts service is required")
	}
	if subscriptions == nil {
		return nil, oops.Errorf("subscription service is required")
	}
	origins, err := NewOriginMatcher(cfg.Origins)
	if err != nil {
		return nil, err
	}

	h := &Handler{
		accounts:      accounts,
		subscriptions: subscriptions,
		origins:       origins,
		secureCookie:  cfg.SecureCookie,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Router builds the gin engine with all routes.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.logger, h.metrics), cors(h.origins))

	r.GET("/", h.index)
	r.GET("/plans", h.plans)
	r.POST("/register", h.register)
	r.POST("/login", h.login)
	r.GET("/logout", h.logout)
	r.POST("/logout", h.logout)

	private := r.Group("/", h.requireSession)
	private.GET("/dashboard", h.dashboard)
	private.POST("/upgrade", h.upgrade)

	return r
}

type registerRequest struct {
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
	Company  string `json:"company" form:"company"`
	Password string `json:"password" form:"password"`
	Plan     string `json:"plan" form:"plan"`
}

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type upgradeRequest struct {
	Plan string `json:"plan" form:"plan"`
}

func (h *Handler) index(c *gin.Context) {
	if token, err := c.Cookie(SessionCookie); err == nil && token != "" {
		if _, _, err := h.accounts.CurrentUser(c.Request.Context(), token); err == nil {
			c.Redirect(http.StatusFound, "/dashboard")
			return
		}
	}
	h.plans(c)
}

func (h *Handler) plans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plans": h.subscriptions.Plans()})
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if !h.bind(c, &req) {
		return
	}

	ctx := c.Request.Context()
	userID, err := h.accounts.Register(ctx, auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Company:  req.Company,
		Password: req.Password,
		Plan:     req.Plan,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}

	// The account exists at this point, so a session failure is logged and
	// the client is left to log in.
	if err := h.startSession(c, userID); err != nil {
		h.logger.WarnContext(ctx, "session not opened after registration", "user_id", userID, "error", err)
	}
	c.JSON(http.StatusCreated, gin.H{"user_id": userID})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}

	userID, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.renderError(c, err)
		return
	}
	if err := h.startSession(c, userID); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID})
}

func (h *Handler) logout(c *gin.Context) {
	if token, err := c.Cookie(SessionCookie); err == nil && token != "" {
		if err := h.accounts.Logout(c.Request.Context(), token); err != nil {
			h.logger.WarnContext(c.Request.Context(), "logout failed", "error", err)
		}
	}
	h.clearCookie(c)
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) dashboard(c *gin.Context) {
	user := currentUser(c)
	sub, err := h.subscriptions.Get(c.Request.Context(), user.ID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":         newUserView(user),
		"subscription": newSubscriptionView(sub),
		"plans":        h.subscriptions.Plans(),
	})
}

func (h *Handler) upgrade(c *gin.Context) {
	var req upgradeRequest
	if !h.bind(c, &req) {
		return
	}

	user := currentUser(c)
	sub, err := h.subscriptions.Upgrade(c.Request.Context(), user.ID, req.Plan)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscription": newSubscriptionView(sub)})
}

// requireSession resolves the session cookie. Browsers navigating with GET
// are redirected to /login; API calls get a 401.
func (h *Handler) requireSession(c *gin.Context) {
	token, _ := c.Cookie(SessionCookie) //nolint:errcheck // missing cookie is an empty token
	var (
		user *account.User
		err  = oops.Code(account.CodeSessionInvalid).Errorf("no session cookie")
	)
	if token != "" {
		user, _, err = h.accounts.CurrentUser(c.Request.Context(), token)
	}

	if err != nil {
		if StatusFor(account.Code(err)) != http.StatusUnauthorized {
			h.renderError(c, err)
			return
		}
		h.clearCookie(c)
		if c.Request.Method == http.MethodGet {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		h.renderError(c, err)
		return
	}

	c.Set(ctxUser, user)
	c.Next()
}

func (h *Handler) startSession(c *gin.Context, userID string) error {
	session, token, err := h.accounts.OpenSession(c.Request.Context(), userID, c.Request.UserAgent(), c.ClientIP())
	if err != nil {
		return err
	}
	maxAge := int(session.ExpiresAt.Sub(session.CreatedAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, token, maxAge, "/", "", h.secureCookie, true)
	return nil
}

func (h *Handler) clearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, "", -1, "/", "", h.secureCookie, true)
}

// bind decodes a JSON or form body. It renders INVALID_INPUT and returns
// false when the body cannot be decoded.
func (h *Handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBind(dst); err != nil {
		h.logger.DebugContext(c.Request.Context(), "request body rejected", "error", err)
		h.renderError(c, oops.Code(account.CodeInvalidInput).Errorf("request body is not valid"))
		return false
	}
	return true
}

func currentUser(c *gin.Context) *account.User {
	return c.MustGet(ctxUser).(*account.User) //nolint:forcetypeassert // set by requireSession
}
