// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package mocks provides testify mocks of the auth interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/holomush/accounts/internal/account"
	"github.com/holomush/accounts/internal/auth"
)

// T is the subset of testing.TB the constructors need.
type T interface {
	mock.TestingT
	Cleanup(func())
}

// MockPasswordHasher is a mock of auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a mock whose expectations are asserted on cleanup.
func NewMockPasswordHasher(t T) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(password, hash string) bool {
	return m.Called(password, hash).Bool(0)
}

func (m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	return m.Called(hash).Bool(0)
}

// MockWebSessionRepository is a mock of auth.WebSessionRepository.
type MockWebSessionRepository struct {
	mock.Mock
}

// NewMockWebSessionRepository creates a mock whose expectations are asserted on cleanup.
func NewMockWebSessionRepository(t T) *MockWebSessionRepository {
	m := &MockWebSessionRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockWebSessionRepository) Create(ctx context.Context, session *auth.WebSession) error {
	return m.Called(ctx, session).Error(0)
}

func (m *MockWebSessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.WebSession, error) {
	args := m.Called(ctx, tokenHash)
	s, _ := args.Get(0).(*auth.WebSession)
	return s, args.Error(1)
}

func (m *MockWebSessionRepository) Touch(ctx context.Context, id ulid.ULID, lastSeen time.Time) error {
	return m.Called(ctx, id, lastSeen).Error(0)
}

func (m *MockWebSessionRepository) Delete(ctx context.Context, session *auth.WebSession) error {
	return m.Called(ctx, session).Error(0)
}

func (m *MockWebSessionRepository) DeleteByUser(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *MockWebSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}

// MockSubscriptions is a mock of auth.Subscriptions.
type MockSubscriptions struct {
	mock.Mock
}

// NewMockSubscriptions creates a mock whose expectations are asserted on cleanup.
func NewMockSubscriptions(t T) *MockSubscriptions {
	m := &MockSubscriptions{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSubscriptions) CreateDefault(ctx context.Context, userID, plan string) (*account.Subscription, error) {
	args := m.Called(ctx, userID, plan)
	sub, _ := args.Get(0).(*account.Subscription)
	return sub, args.Error(1)
}
