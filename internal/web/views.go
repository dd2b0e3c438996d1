// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"time"

	"github.com/holomush/accounts/internal/account"
)

type userView struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Company   string     `json:"company"`
	Plan      string     `json:"plan"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	IsActive  bool       `json:"is_active"`
}

func newUserView(u *account.User) userView {
	return userView{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Company:   u.Company,
		Plan:      u.Plan,
		CreatedAt: u.CreatedAt,
		LastLogin: u.LastLogin,
		IsActive:  u.IsActive,
	}
}

type subscriptionView struct {
	Plan       string     `json:"plan"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	UpgradedAt *time.Time `json:"upgraded_at,omitempty"`
}

// newSubscriptionView returns nil for a user without a subscription.
func newSubscriptionView(s *account.Subscription) *subscriptionView {
	if s == nil {
		return nil
	}
	return &subscriptionView{
		Plan:       s.Plan,
		Status:     s.Status,
		CreatedAt:  s.CreatedAt,
		ExpiresAt:  s.ExpiresAt,
		UpgradedAt: s.UpgradedAt,
	}
}
