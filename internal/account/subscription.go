// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package account

import (
	"time"

	"github.com/samber/oops"
)

// StatusActive is the only subscription status currently modeled.
const StatusActive = "active"

// DefaultValidity is how long a subscription runs from creation or upgrade.
const DefaultValidity = 30 * 24 * time.Hour

// Subscription is the plan bookkeeping record for a user, keyed by UserID.
type Subscription struct {
	UserID     string
	Plan       string
	Status     string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	UpgradedAt *time.Time
}

// NewSubscription creates an active subscription starting at now.
func NewSubscription(userID, plan string, now time.Time, validity time.Duration) (*Subscription, error) {
	if userID == "" {
		return nil, oops.Code(CodeInvalidInput).Errorf("user ID cannot be empty")
	}
	if plan == "" {
		return nil, oops.Code(CodeInvalidInput).Errorf("plan cannot be empty")
	}
	if validity <= 0 {
		validity = DefaultValidity
	}
	return &Subscription{
		UserID:    userID,
		Plan:      plan,
		Status:    StatusActive,
		CreatedAt: now,
		ExpiresAt: now.Add(validity),
	}, nil
}

// Upgrade moves the subscription to plan and restarts the validity window
// at now. CreatedAt is kept.
func (s *Subscription) Upgrade(plan string, now time.Time, validity time.Duration) {
	if validity <= 0 {
		validity = DefaultValidity
	}
	s.Plan = plan
	s.Status = StatusActive
	s.UpgradedAt = &now
	s.ExpiresAt = now.Add(validity)
}

// IsExpiredAt reports whether the subscription has lapsed at t.
func (s *Subscription) IsExpiredAt(t time.Time) bool {
	return t.After(s.ExpiresAt)
}
