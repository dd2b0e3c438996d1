// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package subscription manages plan subscriptions of users.
package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/account"
	"github.com/holomush/accounts/internal/activity"
	"github.com/holomush/accounts/internal/observability"
)

// Service creates and upgrades subscriptions.
type Service struct {
	subs     account.SubscriptionRepository
	users    account.UserRepository
	catalog  *account.Catalog
	validity time.Duration
	activity *activity.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithCatalog replaces the default plan catalog.
func WithCatalog(c *account.Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithValidity sets how long a subscription runs.
func WithValidity(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.validity = d
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

// NewService creates a subscription Service.
func NewService(subs account.SubscriptionRepository, users account.UserRepository, opts ...Option) (*Service, error) {
	if subs == nil {
		return nil, oops.Errorf("subscription repository is required")
	}
	if users == nil {
		return nil, oops.Errorf("user repository is required")
	}
	s := &Service{
		subs:     subs,
		users:    users,
		catalog:  account.DefaultCatalog(),
		validity: account.DefaultValidity,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Catalog returns the plan catalog in use.
func (s *Service) Catalog() *account.Catalog {
	return s.catalog
}

// Plans lists the catalog in display order.
func (s *Service) Plans() []account.Plan {
	return s.catalog.Plans()
}

// CreateDefault writes the initial active subscription of a new user.
func (s *Service) CreateDefault(ctx context.Context, userID, plan string) (*account.Subscription, error) {
	if err := s.catalog.Validate(plan); err != nil {
		return nil, err
	}
	sub, err := account.NewSubscription(userID, plan, s.now().UTC(), s.validity)
	if err != nil {
		return nil, err
	}
	if err := s.subs.Put(ctx, sub); err != nil {
		return nil, oops.Code(account.CodeStorageError).
			With("operation", "create subscription").
			With("user_id", userID).
			Wrap(err)
	}
	return sub, nil
}

// Get returns the subscription of userID, or nil if the user has none.
func (s *Service) Get(ctx context.Context, userID string) (*account.Subscription, error) {
	sub, err := s.subs.Get(ctx, userID)
	if errors.Is(err, account.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code(account.CodeStorageError).
			With("operation", "get subscription").
			With("user_id", userID).
			Wrap(err)
	}
	return sub, nil
}

// Upgrade moves userID to newPlan and restarts the validity window. The
// subscription and the user's plan change together or not at all. Nothing
// is written for an unknown plan or user.
func (s *Service) Upgrade(ctx context.Context, userID, newPlan string) (sub *account.Subscription, err error) {
	defer func() { observability.RecordAuthOperation("upgrade", outcome(err)) }()

	if err := s.catalog.Validate(newPlan); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, account.ErrNotFound) {
		return nil, oops.Code(account.CodeUserNotFound).
			With("user_id", userID).
			Wrap(err)
	}
	if err != nil {
		return nil, oops.Code(account.CodeStorageError).
			With("operation", "get user").
			With("user_id", userID).
			Wrap(err)
	}

	now := s.now().UTC()
	previous := user.Plan
	sub, err = s.subs.Get(ctx, userID)
	switch {
	case errors.Is(err, account.ErrNotFound):
		sub, err = account.NewSubscription(userID, newPlan, now, s.validity)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, oops.Code(account.CodeStorageError).
			With("operation", "get subscription").
			With("user_id", userID).
			Wrap(err)
	default:
		previous = sub.Plan
	}
	sub.Upgrade(newPlan, now, s.validity)

	if err := s.subs.ApplyUpgrade(ctx, sub); err != nil {
		return nil, oops.Code(account.CodeStorageError).
			With("operation", "apply upgrade").
			With("user_id", userID).
			With("plan", newPlan).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "plan upgraded", "user_id", userID, "from", previous, "to", newPlan)
	s.activity.Record(ctx, userID, activity.PlanUpgraded, map[string]any{
		"from": previous,
		"to":   newPlan,
	})
	return sub, nil
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
