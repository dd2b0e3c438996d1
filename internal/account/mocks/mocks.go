// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package mocks provides testify mocks of the account repositories.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/holomush/accounts/internal/account"
)

// T is the subset of testing.TB the constructors need.
type T interface {
	mock.TestingT
	Cleanup(func())
}

// MockUserRepository is a mock of account.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

// NewMockUserRepository creates a mock whose expectations are asserted on cleanup.
func NewMockUserRepository(t T) *MockUserRepository {
	m := &MockUserRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockUserRepository) Create(ctx context.Context, user *account.User) (string, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*account.User, error) {
	args := m.Called(ctx, id)
	return user(args.Get(0)), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*account.User, error) {
	args := m.Called(ctx, email)
	return user(args.Get(0)), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, id string, update account.UserUpdate) error {
	return m.Called(ctx, id, update).Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockUserRepository) Stats(ctx context.Context) (*account.Stats, error) {
	args := m.Called(ctx)
	stats, _ := args.Get(0).(*account.Stats)
	return stats, args.Error(1)
}

// MockSubscriptionRepository is a mock of account.SubscriptionRepository.
type MockSubscriptionRepository struct {
	mock.Mock
}

// NewMockSubscriptionRepository creates a mock whose expectations are asserted on cleanup.
func NewMockSubscriptionRepository(t T) *MockSubscriptionRepository {
	m := &MockSubscriptionRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSubscriptionRepository) Put(ctx context.Context, sub *account.Subscription) error {
	return m.Called(ctx, sub).Error(0)
}

func (m *MockSubscriptionRepository) Get(ctx context.Context, userID string) (*account.Subscription, error) {
	args := m.Called(ctx, userID)
	sub, _ := args.Get(0).(*account.Subscription)
	return sub, args.Error(1)
}

func (m *MockSubscriptionRepository) ApplyUpgrade(ctx context.Context, sub *account.Subscription) error {
	return m.Called(ctx, sub).Error(0)
}

// MockActivityRepository is a mock of account.ActivityRepository.
type MockActivityRepository struct {
	mock.Mock
}

// NewMockActivityRepository creates a mock whose expectations are asserted on cleanup.
func NewMockActivityRepository(t T) *MockActivityRepository {
	m := &MockActivityRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockActivityRepository) Append(ctx context.Context, a *account.Activity) error {
	return m.Called(ctx, a).Error(0)
}

func user(v any) *account.User {
	u, _ := v.(*account.User)
	return u
}
