// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package remote

import (
	"context"

	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/account"
)

type activityDoc struct {
	UserID    string         `json:"user_id"`
	Activity  string         `json:"activity"`
	Details   map[string]any `json:"details"`
	Timestamp timestamp      `json:"timestamp"`
}

// ActivityRepository appends activity entries under activities/.
type ActivityRepository struct {
	store Store
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(store Store) *ActivityRepository {
	return &ActivityRepository{store: store}
}

// Append stores an activity entry with a store-generated key.
func (r *ActivityRepository) Append(ctx context.Context, a *account.Activity) error {
	doc := activityDoc{
		UserID:    a.UserID,
		Activity:  a.Activity,
		Details:   a.Details,
		Timestamp: newTimestamp(a.Timestamp),
	}
	if _, err := r.store.Push(ctx, activitiesPath, doc); err != nil {
		return oops.With("operation", "append activity").With("user_id", a.UserID).Wrap(err)
	}
	return nil
}
