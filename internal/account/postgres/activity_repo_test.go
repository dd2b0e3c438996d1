// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accounts/internal/account"
)

func TestActivityRepository_Append(t *testing.T) {
	t.Run("stores details as json", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`INSERT INTO activities`).
			WithArgs(pgxmock.AnyArg(), "u1", "plan_upgraded", []byte(`{"from":"free","to":"premium"}`), fixedNow).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := NewActivityRepository(mock).Append(context.Background(), &account.Activity{
			UserID:    "u1",
			Activity:  "plan_upgraded",
			Details:   map[string]any{"from": "free", "to": "premium"},
			Timestamp: fixedNow,
		})
		require.NoError(t, err)
	})

	t.Run("nil details become an empty object", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`INSERT INTO activities`).
			WithArgs(pgxmock.AnyArg(), "u1", "user_logged_in", []byte(`{}`), fixedNow).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := NewActivityRepository(mock).Append(context.Background(), &account.Activity{
			UserID: "u1", Activity: "user_logged_in", Timestamp: fixedNow,
		})
		require.NoError(t, err)
	})

	t.Run("database error", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`INSERT INTO activities`).
			WithArgs(pgxmock.AnyArg(), "u1", "x", pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(errors.New("disk full"))

		err := NewActivityRepository(mock).Append(context.Background(), &account.Activity{UserID: "u1", Activity: "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
	})
}
