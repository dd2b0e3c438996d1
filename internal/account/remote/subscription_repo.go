// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package remote

import (
	"context"

	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/account"
	"github.com/holomush/accounts/internal/store/docstore"
)

type subscriptionDoc struct {
	UserID     string     `json:"user_id"`
	Plan       string     `json:"plan"`
	Status     string     `json:"status"`
	CreatedAt  timestamp  `json:"created_at"`
	ExpiresAt  timestamp  `json:"expires_at"`
	UpgradedAt *timestamp `json:"upgraded_at,omitempty"`
}

func newSubscriptionDoc(sub *account.Subscription) subscriptionDoc {
	doc := subscriptionDoc{
		UserID:    sub.UserID,
		Plan:      sub.Plan,
		Status:    sub.Status,
		CreatedAt: newTimestamp(sub.CreatedAt),
		ExpiresAt: newTimestamp(sub.ExpiresAt),
	}
	if sub.UpgradedAt != nil {
		ts := newTimestamp(*sub.UpgradedAt)
		doc.UpgradedAt = &ts
	}
	return doc
}

// SubscriptionRepository implements account.SubscriptionRepository over the
// document store.
type SubscriptionRepository struct {
	store Store
}

// NewSubscriptionRepository creates a new SubscriptionRepository.
func NewSubscriptionRepository(store Store) *SubscriptionRepository {
	return &SubscriptionRepository{store: store}
}

// Put creates or replaces the subscription of sub.UserID.
func (r *SubscriptionRepository) Put(ctx context.Context, sub *account.Subscription) error {
	if err := r.store.Set(ctx, path(subscriptionsPath, sub.UserID), newSubscriptionDoc(sub)); err != nil {
		return oops.With("operation", "put subscription").With("user_id", sub.UserID).Wrap(err)
	}
	return nil
}

// Get retrieves the subscription of a user.
func (r *SubscriptionRepository) Get(ctx context.Context, userID string) (*account.Subscription, error) {
	if !docstore.ValidKey(userID) {
		return nil, oops.With("user_id", userID).Wrap(account.ErrNotFound)
	}
	var doc subscriptionDoc
	found, err := r.store.Get(ctx, path(subscriptionsPath, userID), &doc)
	if err != nil {
		return nil, oops.With("operation", "get subscription").With("user_id", userID).Wrap(err)
	}
	if !found {
		return nil, oops.With("user_id", userID).Wrap(account.ErrNotFound)
	}
	sub := &account.Subscription{
		UserID:     userID,
		Plan:       doc.Plan,
		Status:     doc.Status,
		CreatedAt:  doc.CreatedAt.Time,
		ExpiresAt:  doc.ExpiresAt.Time,
		UpgradedAt: doc.UpgradedAt.ptr(),
	}
	return sub, nil
}

// ApplyUpgrade writes every subscription field and the user's plan as one
// multi-path update, so both change together or not at all.
func (r *SubscriptionRepository) ApplyUpgrade(ctx context.Context, sub *account.Subscription) error {
	doc := newSubscriptionDoc(sub)
	base := path(subscriptionsPath, sub.UserID)
	fields := map[string]any{
		path(base, "user_id"):    doc.UserID,
		path(base, "plan"):       doc.Plan,
		path(base, "status"):     doc.Status,
		path(base, "created_at"): doc.CreatedAt,
		path(base, "expires_at"): doc.ExpiresAt,

		path(usersPath, sub.UserID, "plan"): doc.Plan,
	}
	if doc.UpgradedAt != nil {
		fields[path(base, "upgraded_at")] = doc.UpgradedAt
	}
	if err := r.store.Update(ctx, "", fields); err != nil {
		return oops.With("operation", "apply upgrade").With("user_id", sub.UserID).Wrap(err)
	}
	return nil
}
