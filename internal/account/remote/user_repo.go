// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package remote

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/account"
	"github.com/holomush/accounts/internal/store/docstore"
)

// claimTTL is how long an email claim without a user may block
// registration before it is treated as abandoned.
const claimTTL = time.Minute

type userDoc struct {
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Company      string     `json:"company"`
	Plan         string     `json:"plan"`
	PasswordHash string     `json:"password_hash"`
	CreatedAt    timestamp  `json:"created_at"`
	LastLogin    *timestamp `json:"last_login"`
	IsActive     *bool      `json:"is_active"`
}

func (d *userDoc) toUser(id string) *account.User {
	u := &account.User{
		ID:           id,
		Name:         d.Name,
		Email:        account.NormalizeEmail(d.Email),
		Company:      d.Company,
		Plan:         d.Plan,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt.Time,
		LastLogin:    d.LastLogin.ptr(),
		IsActive:     d.IsActive == nil || *d.IsActive,
	}
	if u.Plan == "" {
		u.Plan = account.PlanFree
	}
	return u
}

type emailClaim struct {
	Email     string    `json:"email"`
	UserID    string    `json:"user_id,omitempty"`
	ClaimedAt timestamp `json:"claimed_at"`
}

// UserRepository implements account.UserRepository over the document store.
type UserRepository struct {
	store Store
	now   func() time.Time
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(store Store) *UserRepository {
	return &UserRepository{store: store, now: time.Now}
}

// Create stores a user after claiming its email with a compare-and-swap
// write, so two concurrent registrations cannot both succeed.
func (r *UserRepository) Create(ctx context.Context, user *account.User) (string, error) {
	email := account.NormalizeEmail(user.Email)
	claimPath := path(emailIndexPath, emailKey(email))
	now := r.now().UTC()

	if err := r.claimEmail(ctx, claimPath, email, now); err != nil {
		return "", err
	}

	active := true
	lastLogin := newTimestamp(now)
	doc := userDoc{
		Name:         user.Name,
		Email:        email,
		Company:      user.Company,
		Plan:         user.Plan,
		PasswordHash: user.PasswordHash,
		CreatedAt:    newTimestamp(now),
		LastLogin:    &lastLogin,
		IsActive:     &active,
	}
	id, err := r.store.Push(ctx, usersPath, doc)
	if err != nil {
		// Release the claim so the email can be retried.
		_ = r.store.Delete(ctx, claimPath) //nolint:errcheck // expires via claimTTL otherwise
		return "", oops.With("operation", "create user").With("email", email).Wrap(err)
	}

	// Linking the claim lets a later registration detect a deleted owner.
	// A pending claim with a live user is still a valid duplicate marker.
	_ = r.store.Update(ctx, claimPath, map[string]any{"user_id": id}) //nolint:errcheck // best effort

	user.ID = id
	user.Email = email
	user.CreatedAt = now
	user.LastLogin = &now
	user.IsActive = true
	return id, nil
}

func (r *UserRepository) claimEmail(ctx context.Context, claimPath, email string, now time.Time) error {
	var existing emailClaim
	etag, found, err := r.store.GetWithETag(ctx, claimPath, &existing)
	if err != nil {
		return oops.With("operation", "read email claim").With("email", email).Wrap(err)
	}
	if found {
		stale, err := r.claimIsStale(ctx, &existing, now)
		if err != nil {
			return err
		}
		if !stale {
			return oops.With("email", email).Wrap(account.ErrDuplicateEmail)
		}
	}

	claim := emailClaim{Email: email, ClaimedAt: newTimestamp(now)}
	err = r.store.SetIfMatch(ctx, claimPath, etag, claim)
	if errors.Is(err, docstore.ErrPreconditionFailed) {
		return oops.With("email", email).Wrap(account.ErrDuplicateEmail)
	}
	if err != nil {
		return oops.With("operation", "claim email").With("email", email).Wrap(err)
	}
	return nil
}

// claimIsStale reports whether a claim may be taken over: its user was
// deleted, or it was never linked to a user and is older than claimTTL.
func (r *UserRepository) claimIsStale(ctx context.Context, claim *emailClaim, now time.Time) (bool, error) {
	if claim.UserID == "" {
		return now.Sub(claim.ClaimedAt.Time) > claimTTL, nil
	}
	exists, err := r.store.Get(ctx, path(usersPath, claim.UserID), nil)
	if err != nil {
		return false, oops.With("operation", "check claim owner").With("user_id", claim.UserID).Wrap(err)
	}
	return !exists, nil
}

// GetByID retrieves a user by ID. An ID the store cannot address names no
// user.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*account.User, error) {
	if !docstore.ValidKey(id) {
		return nil, oops.With("user_id", id).Wrap(account.ErrNotFound)
	}
	var doc userDoc
	found, err := r.store.Get(ctx, path(usersPath, id), &doc)
	if err != nil {
		return nil, oops.With("operation", "get user").With("user_id", id).Wrap(err)
	}
	if !found {
		return nil, oops.With("user_id", id).Wrap(account.ErrNotFound)
	}
	return doc.toUser(id), nil
}

// FindByEmail scans the users collection for a normalized email. Entries
// that do not decode as users are skipped. The earliest key wins.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*account.User, error) {
	email = account.NormalizeEmail(email)
	if email == "" {
		return nil, oops.With("email", email).Wrap(account.ErrNotFound)
	}

	users, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, oops.With("email", email).Wrap(account.ErrNotFound)
}

// scan returns all decodable users ordered by key.
func (r *UserRepository) scan(ctx context.Context) ([]*account.User, error) {
	var raw map[string]json.RawMessage
	if _, err := r.store.Get(ctx, usersPath, &raw); err != nil {
		return nil, oops.With("operation", "scan users").Wrap(err)
	}

	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	users := make([]*account.User, 0, len(ids))
	for _, id := range ids {
		var doc userDoc
		if err := json.Unmarshal(raw[id], &doc); err != nil || doc.Email == "" {
			continue
		}
		users = append(users, doc.toUser(id))
	}
	return users, nil
}

// Update merges the named fields into an existing user.
func (r *UserRepository) Update(ctx context.Context, id string, update account.UserUpdate) error {
	if update.IsEmpty() {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}

	fields := map[string]any{}
	if update.Name != nil {
		fields["name"] = *update.Name
	}
	if update.Company != nil {
		fields["company"] = *update.Company
	}
	if update.Plan != nil {
		fields["plan"] = *update.Plan
	}
	if update.PasswordHash != nil {
		fields["password_hash"] = *update.PasswordHash
	}
	if update.LastLogin != nil {
		fields["last_login"] = newTimestamp(*update.LastLogin)
	}
	if update.IsActive != nil {
		fields["is_active"] = *update.IsActive
	}

	if err := r.store.Update(ctx, path(usersPath, id), fields); err != nil {
		return oops.With("operation", "update user").With("user_id", id).Wrap(err)
	}
	return nil
}

// Delete removes a user and its email claim in one write.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	user, err := r.GetByID(ctx, id)
	if errors.Is(err, account.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	fields := map[string]any{
		path(usersPath, id): nil,
	}
	var claim emailClaim
	claimPath := path(emailIndexPath, emailKey(user.Email))
	found, err := r.store.Get(ctx, claimPath, &claim)
	if err != nil {
		return oops.With("operation", "read email claim").With("user_id", id).Wrap(err)
	}
	if found && (claim.UserID == "" || claim.UserID == id) {
		fields[claimPath] = nil
	}

	if err := r.store.Update(ctx, "", fields); err != nil {
		return oops.With("operation", "delete user").With("user_id", id).Wrap(err)
	}
	return nil
}

// Stats summarizes all stored users.
func (r *UserRepository) Stats(ctx context.Context) (*account.Stats, error) {
	users, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}
	stats := &account.Stats{PlansCount: map[string]int{}}
	for _, u := range users {
		stats.Count(u)
	}
	return stats, nil
}
