// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/account"
)

const upsertSubscription = `
	INSERT INTO subscriptions (user_id, plan, status, created_at, expires_at, upgraded_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (user_id) DO UPDATE SET
		plan        = EXCLUDED.plan,
		status      = EXCLUDED.status,
		created_at  = EXCLUDED.created_at,
		expires_at  = EXCLUDED.expires_at,
		upgraded_at = EXCLUDED.upgraded_at
`

// SubscriptionRepository implements account.SubscriptionRepository using
// PostgreSQL.
type SubscriptionRepository struct {
	db DB
}

// NewSubscriptionRepository creates a new SubscriptionRepository.
func NewSubscriptionRepository(db DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Put creates or replaces the subscription of sub.UserID.
func (r *SubscriptionRepository) Put(ctx context.Context, sub *account.Subscription) error {
	if _, err := r.db.Exec(ctx, upsertSubscription, subscriptionArgs(sub)...); err != nil {
		return oops.With("operation", "put subscription").With("user_id", sub.UserID).Wrap(err)
	}
	return nil
}

// Get retrieves the subscription of a user.
func (r *SubscriptionRepository) Get(ctx context.Context, userID string) (*account.Subscription, error) {
	var (
		sub        account.Subscription
		upgradedAt *time.Time
	)
	err := r.db.QueryRow(ctx, `
		SELECT user_id, plan, status, created_at, expires_at, upgraded_at
		FROM subscriptions
		WHERE user_id = $1
	`, userID).Scan(&sub.UserID, &sub.Plan, &sub.Status, &sub.CreatedAt, &sub.ExpiresAt, &upgradedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With("user_id", userID).Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "get subscription").With("user_id", userID).Wrap(err)
	}

	sub.CreatedAt = sub.CreatedAt.UTC()
	sub.ExpiresAt = sub.ExpiresAt.UTC()
	if upgradedAt != nil {
		t := upgradedAt.UTC()
		sub.UpgradedAt = &t
	}
	return &sub, nil
}

// ApplyUpgrade writes the subscription and the user's plan in one
// transaction.
func (r *SubscriptionRepository) ApplyUpgrade(ctx context.Context, sub *account.Subscription) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertSubscription, subscriptionArgs(sub)...); err != nil {
			return oops.With("operation", "upsert subscription").Wrap(err)
		}
		result, err := tx.Exec(ctx, `UPDATE users SET plan = $2 WHERE id = $1`, sub.UserID, sub.Plan)
		if err != nil {
			return oops.With("operation", "update user plan").Wrap(err)
		}
		if result.RowsAffected() == 0 {
			return oops.Wrap(account.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return oops.With("operation", "apply upgrade").With("user_id", sub.UserID).Wrap(err)
	}
	return nil
}

func subscriptionArgs(sub *account.Subscription) []any {
	var upgradedAt *time.Time
	if sub.UpgradedAt != nil {
		t := sub.UpgradedAt.UTC()
		upgradedAt = &t
	}
	return []any{sub.UserID, sub.Plan, sub.Status, sub.CreatedAt.UTC(), sub.ExpiresAt.UTC(), upgradedAt}
}

var _ account.SubscriptionRepository = (*SubscriptionRepository)(nil)
