// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accounts/internal/account"
)

func testSubscription() *account.Subscription {
	upgraded := fixedNow
	return &account.Subscription{
		UserID:     "u1",
		Plan:       account.PlanPremium,
		Status:     account.StatusActive,
		CreatedAt:  fixedNow.Add(-24 * time.Hour),
		ExpiresAt:  fixedNow.Add(account.DefaultValidity),
		UpgradedAt: &upgraded,
	}
}

func upsertArgs(sub *account.Subscription) []any {
	return []any{sub.UserID, sub.Plan, sub.Status, sub.CreatedAt, sub.ExpiresAt, sub.UpgradedAt}
}

func TestSubscriptionRepository_Put(t *testing.T) {
	mock := newMockPool(t)
	sub := testSubscription()
	mock.ExpectExec(`INSERT INTO subscriptions .+ ON CONFLICT \(user_id\) DO UPDATE`).
		WithArgs(upsertArgs(sub)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewSubscriptionRepository(mock).Put(context.Background(), sub))
}

func TestSubscriptionRepository_Get(t *testing.T) {
	columns := []string{"user_id", "plan", "status", "created_at", "expires_at", "upgraded_at"}

	t.Run("found", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT .+ FROM subscriptions`).
			WithArgs("u1").
			WillReturnRows(pgxmock.NewRows(columns).
				AddRow("u1", "free", "active", fixedNow, fixedNow.Add(account.DefaultValidity), (*time.Time)(nil)))

		sub, err := NewSubscriptionRepository(mock).Get(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, "free", sub.Plan)
		assert.Nil(t, sub.UpgradedAt)
		assert.Equal(t, fixedNow.Add(account.DefaultValidity), sub.ExpiresAt)
	})

	t.Run("missing", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT .+ FROM subscriptions`).
			WithArgs("u9").
			WillReturnRows(pgxmock.NewRows(columns))

		_, err := NewSubscriptionRepository(mock).Get(context.Background(), "u9")
		require.ErrorIs(t, err, account.ErrNotFound)
	})
}

func TestSubscriptionRepository_ApplyUpgrade(t *testing.T) {
	t.Run("commits both writes", func(t *testing.T) {
		mock := newMockPool(t)
		sub := testSubscription()
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO subscriptions`).
			WithArgs(upsertArgs(sub)...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`UPDATE users SET plan = \$2 WHERE id = \$1`).
			WithArgs("u1", "premium").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		require.NoError(t, NewSubscriptionRepository(mock).ApplyUpgrade(context.Background(), sub))
	})

	t.Run("rolls back when the user plan write fails", func(t *testing.T) {
		mock := newMockPool(t)
		sub := testSubscription()
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO subscriptions`).
			WithArgs(upsertArgs(sub)...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`UPDATE users SET plan`).
			WithArgs("u1", "premium").
			WillReturnError(errors.New("deadlock detected"))
		mock.ExpectRollback()
		mock.ExpectRollback()

		err := NewSubscriptionRepository(mock).ApplyUpgrade(context.Background(), sub)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "deadlock detected")
	})

	t.Run("rolls back when the user is gone", func(t *testing.T) {
		mock := newMockPool(t)
		sub := testSubscription()
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO subscriptions`).
			WithArgs(upsertArgs(sub)...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`UPDATE users SET plan`).
			WithArgs("u1", "premium").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectRollback()
		mock.ExpectRollback()

		err := NewSubscriptionRepository(mock).ApplyUpgrade(context.Background(), sub)
		require.ErrorIs(t, err, account.ErrNotFound)
	})
}
