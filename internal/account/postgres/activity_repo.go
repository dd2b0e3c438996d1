// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"encoding/json"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/account"
)

// ActivityRepository appends activity records to the activities table.
type ActivityRepository struct {
	db DB
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(db DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Append inserts one activity record.
func (r *ActivityRepository) Append(ctx context.Context, a *account.Activity) error {
	details := a.Details
	if details == nil {
		details = map[string]any{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return oops.With("operation", "encode activity details").With("activity", a.Activity).Wrap(err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO activities (id, user_id, activity, details, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ulid.Make().String(), a.UserID, a.Activity, payload, a.Timestamp.UTC())
	if err != nil {
		return oops.With("operation", "insert activity").
			With("user_id", a.UserID).
			With("activity", a.Activity).
			Wrap(err)
	}
	return nil
}

var _ account.ActivityRepository = (*ActivityRepository)(nil)
