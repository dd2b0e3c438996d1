// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/account"
	"github.com/holomush/accounts/internal/activity"
	"github.com/holomush/accounts/internal/observability"
	"github.com/holomush/accounts/pkg/errutil"
)

// Subscriptions creates the initial subscription of a new user.
type Subscriptions interface {
	CreateDefault(ctx context.Context, userID, plan string) (*account.Subscription, error)
}

// Service provides registration, login and session operations.
type Service struct {
	users      account.UserRepository
	subs       Subscriptions
	sessions   WebSessionRepository
	hasher     PasswordHasher
	policy     PasswordPolicy
	catalog    *account.Catalog
	activity   *activity.Recorder
	logger     *slog.Logger
	now        func() time.Time
	sessionTTL time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithPolicy sets the password policy. The default is StrictPolicy.
func WithPolicy(p PasswordPolicy) Option {
	return func(s *Service) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithCatalog sets the plan catalog registrations are checked against.
func WithCatalog(c *account.Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithActivity sets the activity recorder.
func WithActivity(r *activity.Recorder) Option {
	return func(s *Service) {
		s.activity = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSessionTTL sets how long a session lives.
func WithSessionTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sessionTTL = d
		}
	}
}

// NewService creates a new Service.
func NewService(users account.UserRepository, subs Subscriptions, sessions WebSessionRepository, hasher PasswordHasher, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if subs == nil {
		return nil, oops.Errorf("subscriptions are required")
	}
	if sessions == nil {
		return nil, oops.Errorf("sessions repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	s := &Service{
		users:      users,
		subs:       subs,
		sessions:   sessions,
		hasher:     hasher,
		policy:     StrictPolicy,
		catalog:    account.DefaultCatalog(),
		logger:     slog.Default(),
		now:        time.Now,
		sessionTTL: SessionTokenExpiry,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// dummyPasswordHash is verified when a user doesn't exist so the response
// time does not reveal whether an email is registered. It never matches.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Name     string
	Email    string
	Company  string
	Password string
	Plan     string
}

// Register creates a user with its default subscription and returns the new
// user ID. An empty plan registers on the free plan.
func (s *Service) Register(ctx context.Context, in RegisterInput) (userID string, err error) {
	defer func() { observability.RecordAuthOperation("register", outcome(err)) }()

	email := account.NormalizeEmail(in.Email)
	switch {
	case strings.TrimSpace(in.Name) == "":
		return "", oops.Code(account.CodeInvalidInput).Errorf("Name is required")
	case email == "":
		return "", oops.Code(account.CodeInvalidInput).Errorf("Email is required")
	case in.Password == "":
		return "", oops.Code(account.CodeInvalidInput).Errorf("Password is required")
	}

	_, err = s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return "", oops.Code(account.CodeDuplicateEmail).
			With("email", email).
			Wrap(account.ErrDuplicateEmail)
	case !errors.Is(err, account.ErrNotFound):
		return "", storageError("find user by email", err)
	}

	if err := s.policy.Check(in.Password); err != nil {
		return "", err
	}

	plan := in.Plan
	if plan == "" {
		plan = account.PlanFree
	}
	if err := s.catalog.Validate(plan); err != nil {
		return "", err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return "", oops.With("operation", "hash password").Wrap(err)
	}

	user, err := account.NewUser(in.Name, email, in.Company, plan, hash)
	if err != nil {
		return "", err
	}

	userID, err = s.users.Create(ctx, user)
	if errors.Is(err, account.ErrDuplicateEmail) {
		return "", oops.Code(account.CodeDuplicateEmail).
			With("email", email).
			Wrap(err)
	}
	if err != nil {
		return "", storageError("create user", err)
	}

	if _, subErr := s.subs.CreateDefault(ctx, userID, plan); subErr != nil {
		return "", s.compensateRegistration(ctx, userID, subErr)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", userID, "plan", plan)
	s.activity.Record(ctx, userID, activity.UserRegistered, map[string]any{"plan": plan})
	return userID, nil
}

// compensateRegistration removes a user whose subscription could not be
// written.
func (s *Service) compensateRegistration(ctx context.Context, userID string, subErr error) error {
	delErr := s.users.Delete(ctx, userID)
	if delErr == nil {
		return oops.Code(account.CodeStorageError).
			With("operation", "create subscription").
			With("user_id", userID).
			Wrap(subErr)
	}

	err := oops.Code(account.CodeInconsistentState).
		With("user_id", userID).
		With("subscription_error", subErr.Error()).
		Wrapf(delErr, "user persisted without subscription")
	errutil.LogError(s.logger, "registration left user without subscription", err)
	return err
}

// Login authenticates email and password and returns the user ID.
// Failures are reported as USER_NOT_FOUND, NO_PASSWORD_SET or
// WRONG_PASSWORD; a failed login writes nothing.
func (s *Service) Login(ctx context.Context, email, password string) (userID string, err error) {
	defer func() { observability.RecordAuthOperation("login", outcome(err)) }()

	email = account.NormalizeEmail(email)
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, account.ErrNotFound) {
		s.hasher.Verify(password, dummyPasswordHash)
		return "", oops.Code(account.CodeUserNotFound).
			With("email", email).
			Errorf("user not found")
	}
	if err != nil {
		return "", storageError("find user by email", err)
	}

	if !user.HasPassword() {
		s.hasher.Verify(password, dummyPasswordHash)
		return "", oops.Code(account.CodeNoPasswordSet).
			With("user_id", user.ID).
			Errorf("no password set")
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return "", oops.Code(account.CodeWrongPassword).
			With("user_id", user.ID).
			Errorf("wrong password")
	}

	now := s.now().UTC()
	update := account.UserUpdate{LastLogin: &now}
	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		if rehashed, hashErr := s.hasher.Hash(password); hashErr == nil {
			update.PasswordHash = &rehashed
		} else {
			errutil.LogWarn(s.logger, "password rehash failed", hashErr)
		}
	}
	// Login succeeds even if bookkeeping fails.
	if err := s.users.Update(ctx, user.ID, update); err != nil {
		errutil.LogWarn(s.logger.With("user_id", user.ID), "last login not recorded", err)
	}

	s.activity.Record(ctx, user.ID, activity.UserLoggedIn, nil)
	return user.ID, nil
}

// OpenSession creates a session for userID and returns it with the
// plaintext token to hand to the client.
func (s *Service) OpenSession(ctx context.Context, userID, userAgent, ipAddress string) (*WebSession, string, error) {
	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, "", err
	}

	now := s.now().UTC()
	session, err := NewWebSession(userID, tokenHash, userAgent, ipAddress, now, now.Add(s.sessionTTL))
	if err != nil {
		return nil, "", err
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, "", storageError("persist session", err)
	}
	return session, token, nil
}

// ValidateSession resolves a session token. Expired sessions are removed.
func (s *Service) ValidateSession(ctx context.Context, token string) (*WebSession, error) {
	if token == "" {
		return nil, oops.Code(account.CodeSessionInvalid).Errorf("session token cannot be empty")
	}

	session, err := s.sessions.GetByTokenHash(ctx, HashSessionToken(token))
	if errors.Is(err, account.ErrNotFound) {
		return nil, oops.Code(account.CodeSessionInvalid).Errorf("invalid session token")
	}
	if err != nil {
		return nil, storageError("get session by token hash", err)
	}

	now := s.now().UTC()
	if session.IsExpiredAt(now) {
		if delErr := s.sessions.Delete(ctx, session); delErr != nil {
			errutil.LogWarn(s.logger, "expired session not removed", delErr)
		}
		return nil, oops.Code(account.CodeSessionExpired).
			With("session_id", session.ID.String()).
			Errorf("session has expired")
	}

	if err := s.sessions.Touch(ctx, session.ID, now); err != nil {
		s.logger.DebugContext(ctx, "session touch failed", "session_id", session.ID.String(), "error", err)
	} else {
		session.LastSeenAt = now
	}
	return session, nil
}

// CurrentUser resolves the user behind a session token. A session whose
// user no longer exists is invalidated.
func (s *Service) CurrentUser(ctx context.Context, token string) (*account.User, *WebSession, error) {
	session, err := s.ValidateSession(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if errors.Is(err, account.ErrNotFound) {
		if delErr := s.sessions.Delete(ctx, session); delErr != nil {
			errutil.LogWarn(s.logger, "orphaned session not removed", delErr)
		}
		return nil, nil, oops.Code(account.CodeSessionInvalid).
			With("user_id", session.UserID).
			Errorf("session user no longer exists")
	}
	if err != nil {
		return nil, nil, storageError("get user", err)
	}
	return user, session, nil
}

// Logout destroys the session behind token. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	session, err := s.sessions.GetByTokenHash(ctx, HashSessionToken(token))
	if errors.Is(err, account.ErrNotFound) {
		return nil
	}
	if err != nil {
		return storageError("get session by token hash", err)
	}
	if err := s.sessions.Delete(ctx, session); err != nil {
		return storageError("delete session", err)
	}
	return nil
}

// PurgeExpiredSessions removes all expired sessions and returns the count.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return n, storageError("delete expired sessions", err)
	}
	return n, nil
}

func storageError(operation string, err error) error {
	return oops.Code(account.CodeStorageError).
		With("operation", operation).
		Wrap(err)
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if code := account.Code(err); code != "" {
		return code
	}
	return "error"
}
