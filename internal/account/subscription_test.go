// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package account_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accounts/internal/account"
	"github.com/holomush/accounts/pkg/errutil"
)

func TestNewSubscription(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	sub, err := account.NewSubscription("u1", account.PlanFree, now, 0)
	require.NoError(t, err)
	assert.Equal(t, "u1", sub.UserID)
	assert.Equal(t, account.StatusActive, sub.Status)
	assert.Equal(t, now, sub.CreatedAt)
	assert.Equal(t, now.Add(30*24*time.Hour), sub.ExpiresAt)
	assert.Nil(t, sub.UpgradedAt)

	sub, err = account.NewSubscription("u1", account.PlanFree, now, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), sub.ExpiresAt)

	_, err = account.NewSubscription("", account.PlanFree, now, 0)
	errutil.AssertErrorCode(t, err, account.CodeInvalidInput)

	_, err = account.NewSubscription("u1", "", now, 0)
	errutil.AssertErrorCode(t, err, account.CodeInvalidInput)
}

func TestSubscription_Upgrade(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sub, err := account.NewSubscription("u1", account.PlanFree, created, 0)
	require.NoError(t, err)

	later := created.Add(10 * 24 * time.Hour)
	sub.Upgrade(account.PlanPremium, later, 0)

	assert.Equal(t, account.PlanPremium, sub.Plan)
	assert.Equal(t, created, sub.CreatedAt)
	require.NotNil(t, sub.UpgradedAt)
	assert.Equal(t, later, *sub.UpgradedAt)
	assert.Equal(t, later.Add(account.DefaultValidity), sub.ExpiresAt, "upgrade restarts the countdown")
	assert.False(t, sub.IsExpiredAt(later))
	assert.True(t, sub.IsExpiredAt(later.Add(account.DefaultValidity+time.Second)))
}
