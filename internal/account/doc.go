// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package account defines the account domain for the accounts service.
//
// # Domain Types
//
// User and Subscription are independent top-level records related only by
// the user id. They should be created with their constructors:
//   - NewUser - validates name and email, normalizes the email
//   - NewSubscription - validates the plan and computes the expiry
//
// The plan Catalog is immutable once built and is shared process-wide.
//
// # Repositories
//
// Storage backends implement UserRepository, SubscriptionRepository and
// ActivityRepository. Implementations live in the remote (document store)
// and postgres sub-packages.
//
// # Errors
//
// Every failure surfaced by the services carries exactly one error code from
// errors.go. Reason turns such an error into a message that is safe to show
// to an end user.
package account
