// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package account_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accounts/internal/account"
	"github.com/holomush/accounts/pkg/errutil"
)

func TestDefaultCatalog(t *testing.T) {
	c := account.DefaultCatalog()

	plans := c.Plans()
	require.Len(t, plans, 3)
	assert.Equal(t, account.PlanFree, plans[0].ID)
	assert.Equal(t, account.PlanPremium, plans[1].ID)
	assert.Equal(t, account.PlanEnterprise, plans[2].ID)

	premium, ok := c.Get(account.PlanPremium)
	require.True(t, ok)
	assert.Equal(t, 29, premium.Price)
	assert.Equal(t, []string{"100 users", "10GB storage", "Priority support"}, premium.Features)

	enterprise, _ := c.Get(account.PlanEnterprise)
	assert.Equal(t, 99, enterprise.Price)

	_, ok = c.Get("platinum")
	assert.False(t, ok)
}

func TestCatalog_ReturnsCopies(t *testing.T) {
	c := account.DefaultCatalog()
	p, _ := c.Get(account.PlanFree)
	p.Features[0] = "tampered"

	again, _ := c.Get(account.PlanFree)
	assert.Equal(t, "10 users", again.Features[0])
}

func TestCatalog_Validate(t *testing.T) {
	c := account.DefaultCatalog()
	for _, id := range []string{account.PlanFree, account.PlanPremium, account.PlanEnterprise} {
		assert.NoError(t, c.Validate(id))
	}

	err := c.Validate("platinum")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, account.CodeUnknownPlan)
	errutil.AssertErrorContext(t, err, "plan", "platinum")
}

func TestNewCatalog_Rejects(t *testing.T) {
	_, err := account.NewCatalog(account.Plan{ID: ""})
	errutil.AssertErrorCode(t, err, account.CodeInvalidInput)

	_, err = account.NewCatalog(account.Plan{ID: "a"}, account.Plan{ID: "a"})
	errutil.AssertErrorCode(t, err, account.CodeInvalidInput)
}
