// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"strings"
	"unicode"

	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/account"
)

// Policy names accepted by PolicyByName.
const (
	PolicyStrict = "strict"
	PolicySimple = "simple"
)

// PasswordSpecialChars is the set the strict policy requires one of.
const PasswordSpecialChars = `!@#$%^&*()_+-=[]{}|;:,.<>?`

// PasswordPolicy checks a candidate password. A rejection carries
// WEAK_PASSWORD and a message naming the unmet rule.
type PasswordPolicy interface {
	Check(password string) error
}

// PolicyFunc adapts a function to PasswordPolicy.
type PolicyFunc func(password string) error

// Check calls f(password).
func (f PolicyFunc) Check(password string) error {
	return f(password)
}

// StrictPolicy requires at least 8 characters with an uppercase letter, a
// lowercase letter, a digit and a special character. Rules are checked in
// that order and the first failure is reported.
var StrictPolicy PasswordPolicy = PolicyFunc(func(password string) error {
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
		if strings.ContainsRune(PasswordSpecialChars, r) {
			special = true
		}
	}

	switch {
	case len([]rune(password)) < 8:
		return weakPassword("Password must be at least 8 characters long")
	case !upper:
		return weakPassword("Password must contain at least one uppercase letter")
	case !lower:
		return weakPassword("Password must contain at least one lowercase letter")
	case !digit:
		return weakPassword("Password must contain at least one number")
	case !special:
		return weakPassword("Password must contain at least one special character")
	}
	return nil
})

// SimplePolicy only requires at least 6 characters.
var SimplePolicy PasswordPolicy = PolicyFunc(func(password string) error {
	if len([]rune(password)) < 6 {
		return weakPassword("Password must be at least 6 characters long")
	}
	return nil
})

// PolicyByName returns the policy registered under name. An empty name
// selects the strict policy.
func PolicyByName(name string) (PasswordPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyStrict:
		return StrictPolicy, nil
	case PolicySimple:
		return SimplePolicy, nil
	default:
		return nil, oops.Code(account.CodeInvalidInput).
			With("policy", name).
			Errorf("unknown password policy %q", name)
	}
}

func weakPassword(msg string) error {
	return oops.Code(account.CodeWeakPassword).Errorf("%s", msg)
}
