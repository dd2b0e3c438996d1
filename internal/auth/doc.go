// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth provides registration, login and session management.
//
// # Domain Types
//
// WebSession should be created with NewWebSession, which validates the
// owner and expiry. Only the SHA-256 hash of a session token is persisted;
// the plaintext token is returned once to the caller.
//
// # Services
//
// Service coordinates the account repositories, the password hasher and the
// session store:
//   - Register - validation, password policy, user and subscription creation
//   - Login - credential check with uniform timing for unknown emails
//   - OpenSession, ValidateSession, CurrentUser, Logout - session lifecycle
//
// Errors carry the codes declared in package account.
package auth
