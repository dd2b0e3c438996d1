// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package activity records best-effort user activity entries.
package activity

import (
	"context"
	"log/slog"
	"time"

	"github.com/holomush/accounts/internal/account"
	"github.com/holomush/accounts/pkg/errutil"
)

// DefaultTimeout bounds a single Record call.
const DefaultTimeout = 2 * time.Second

// Names of the activities recorded by the services.
const (
	UserRegistered = "User registered."
	UserLoggedIn   = "User logged in."
	PlanUpgraded   = "Plan upgraded."
)

// Recorder appends activity entries. Failures are logged and never returned.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	repo    account.ActivityRepository
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the logger failures are reported to.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithClock sets the time source for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRecorder creates a Recorder writing to repo. A nil repo yields a nil
// Recorder.
func NewRecorder(repo account.ActivityRepository, opts ...Option) *Recorder {
	if repo == nil {
		return nil
	}
	r := &Recorder{
		repo:    repo,
		logger:  slog.Default(),
		timeout: DefaultTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends an entry for userID. It runs synchronously under its own
// timeout and survives cancellation of ctx so a finished request still
// leaves its trace.
func (r *Recorder) Record(ctx context.Context, userID, name string, details map[string]any) {
	if r == nil {
		return
	}
	if details == nil {
		details = map[string]any{}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	entry := &account.Activity{
		UserID:    userID,
		Activity:  name,
		Details:   details,
		Timestamp: r.now().UTC(),
	}
	if err := r.repo.Append(ctx, entry); err != nil {
		errutil.LogWarn(r.logger.With("user_id", userID, "activity", name), "activity not recorded", err)
	}
}
