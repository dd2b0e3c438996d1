// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package account

import (
	"strings"
	"time"

	"github.com/samber/oops"
)

// User represents a registered account.
type User struct {
	ID           string
	Name         string
	Email        string
	Company      string
	Plan         string
	PasswordHash string
	CreatedAt    time.Time
	LastLogin    *time.Time
	IsActive     bool
}

// HasPassword reports whether a credential has been set for the user.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// NormalizeEmail trims and lower-cases an email. The result is the
// uniqueness key for users.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewUser creates a validated, active User that has not been persisted yet.
// An empty plan defaults to PlanFree. Plan membership in the catalog is
// checked by the caller.
func NewUser(name, email, company, plan, passwordHash string) (*User, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if name == "" {
		return nil, oops.Code(CodeInvalidInput).Errorf("name is required")
	}
	if email == "" {
		return nil, oops.Code(CodeInvalidInput).Errorf("email is required")
	}
	if !strings.Contains(email, "@") {
		return nil, oops.Code(CodeInvalidInput).Errorf("email address is not valid")
	}
	if plan == "" {
		plan = PlanFree
	}
	return &User{
		Name:         name,
		Email:        email,
		Company:      strings.TrimSpace(company),
		Plan:         plan,
		PasswordHash: passwordHash,
		IsActive:     true,
	}, nil
}

// UserUpdate is a partial update. Only non-nil fields are written.
type UserUpdate struct {
	Name         *string
	Company      *string
	Plan         *string
	PasswordHash *string
	LastLogin    *time.Time
	IsActive     *bool
}

// IsEmpty reports whether the update names no field.
func (u UserUpdate) IsEmpty() bool {
	return u.Name == nil && u.Company == nil && u.Plan == nil &&
		u.PasswordHash == nil && u.LastLogin == nil && u.IsActive == nil
}

// Apply merges the named fields into user.
func (u UserUpdate) Apply(user *User) {
	if u.Name != nil {
		user.Name = *u.Name
	}
	if u.Company != nil {
		user.Company = *u.Company
	}
	if u.Plan != nil {
		user.Plan = *u.Plan
	}
	if u.PasswordHash != nil {
		user.PasswordHash = *u.PasswordHash
	}
	if u.LastLogin != nil {
		t := *u.LastLogin
		user.LastLogin = &t
	}
	if u.IsActive != nil {
		user.IsActive = *u.IsActive
	}
}
