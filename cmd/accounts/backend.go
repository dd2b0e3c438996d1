// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/account"
	"github.com/holomush/accounts/internal/account/postgres"
	"github.com/holomush/accounts/internal/account/remote"
	"github.com/holomush/accounts/internal/activity"
	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/config"
	"github.com/holomush/accounts/internal/store"
	"github.com/holomush/accounts/internal/store/docstore"
	"github.com/holomush/accounts/internal/subscription"
)

// Backend bundles the repositories of one storage backend.
type Backend struct {
	Users         account.UserRepository
	Subscriptions account.SubscriptionRepository
	Activities    account.ActivityRepository
	Sessions      auth.WebSessionRepository

	// Ping reports whether the store is reachable.
	Ping func(ctx context.Context) error
	// Close releases backend resources. May be nil.
	Close func()
}

func (b *Backend) close() {
	if b.Close != nil {
		b.Close()
	}
}

// openBackend opens the backend selected by store.backend.
func openBackend(ctx context.Context, cfg *config.Config) (*Backend, error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		pool, err := store.OpenPool(ctx, cfg.Database.URL, store.PoolOptions{})
		if err != nil {
			return nil, oops.With("backend", cfg.Store.Backend).Wrap(err)
		}
		return &Backend{
			Users:         postgres.NewUserRepository(pool),
			Subscriptions: postgres.NewSubscriptionRepository(pool),
			Activities:    postgres.NewActivityRepository(pool),
			Sessions:      postgres.NewSessionRepository(pool),
			Ping:          pool.Ping,
			Close:         pool.Close,
		}, nil
	case config.BackendDocstore:
		client, err := docstore.New(cfg.Store.URL, cfg.Store.Secret,
			docstore.WithTimeout(cfg.Store.Timeout),
			docstore.WithRetries(uint64(cfg.Store.Retries)), //nolint:gosec // validated non-negative
		)
		if err != nil {
			return nil, oops.With("backend", cfg.Store.Backend).Wrap(err)
		}
		return &Backend{
			Users:         remote.NewUserRepository(client),
			Subscriptions: remote.NewSubscriptionRepository(client),
			Activities:    remote.NewActivityRepository(client),
			Sessions:      remote.NewSessionRepository(client),
			Ping:          client.Ping,
		}, nil
	default:
		return nil, oops.Code("CONFIG_INVALID").With("backend", cfg.Store.Backend).Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// Services holds the account services built over a backend.
type Services struct {
	Auth          *auth.Service
	Subscriptions *subscription.Service
}

func newServices(cfg *config.Config, b *Backend, logger *slog.Logger) (*Services, error) {
	recorder := activity.NewRecorder(b.Activities, activity.WithLogger(logger))

	subs, err := subscription.NewService(b.Subscriptions, b.Users,
		subscription.WithValidity(cfg.Subscription.Validity),
		subscription.WithActivity(recorder),
		subscription.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	policy, err := auth.PolicyByName(cfg.Password.Policy)
	if err != nil {
		return nil, err
	}

	authSvc, err := auth.NewService(b.Users, subs, b.Sessions, auth.NewArgon2idHasher(),
		auth.WithPolicy(policy),
		auth.WithActivity(recorder),
		auth.WithLogger(logger),
		auth.WithSessionTTL(cfg.Session.TTL),
	)
	if err != nil {
		return nil, err
	}
	return &Services{Auth: authSvc, Subscriptions: subs}, nil
}
