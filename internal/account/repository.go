// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package account

import (
	"context"
)

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user and returns the store-assigned ID.
	// CreatedAt and LastLogin are set at write time and IsActive is forced
	// to true. Returns ErrDuplicateEmail if the normalized email is taken.
	Create(ctx context.Context, user *User) (string, error)

	// GetByID retrieves a user by ID.
	// Returns ErrNotFound if no user has the given ID.
	GetByID(ctx context.Context, id string) (*User, error)

	// FindByEmail retrieves a user by normalized email, including the
	// password hash. Returns ErrNotFound if no user matches.
	FindByEmail(ctx context.Context, email string) (*User, error)

	// Update merges the named fields into an existing user.
	// Returns ErrNotFound if no user has the given ID.
	Update(ctx context.Context, id string, update UserUpdate) error

	// Delete removes a user and releases its email.
	Delete(ctx context.Context, id string) error

	// Stats summarizes all stored users.
	Stats(ctx context.Context) (*Stats, error)
}

// SubscriptionRepository manages subscription persistence.
type SubscriptionRepository interface {
	// Put creates or replaces the subscription for sub.UserID.
	Put(ctx context.Context, sub *Subscription) error

	// Get retrieves the subscription of a user.
	// Returns ErrNotFound if the user has none.
	Get(ctx context.Context, userID string) (*Subscription, error)

	// ApplyUpgrade writes sub and sets the owning user's plan to sub.Plan
	// as one atomic operation.
	ApplyUpgrade(ctx context.Context, sub *Subscription) error
}

// ActivityRepository appends activity records.
type ActivityRepository interface {
	Append(ctx context.Context, activity *Activity) error
}
