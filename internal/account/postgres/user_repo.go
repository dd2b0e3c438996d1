// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/account"
)

const userColumns = `id, name, email, company, plan, password_hash, created_at, last_login, is_active`

// UserRepository implements account.UserRepository using PostgreSQL.
type UserRepository struct {
	db  DB
	now func() time.Time
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db, now: time.Now}
}

// Create inserts a user. Email uniqueness is enforced by the users_email_key
// index, so concurrent registrations cannot both succeed.
func (r *UserRepository) Create(ctx context.Context, user *account.User) (string, error) {
	id := ulid.Make().String()
	email := account.NormalizeEmail(user.Email)
	now := r.now().UTC()

	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, name, email, company, plan, password_hash, created_at, last_login, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7, TRUE)
	`, id, user.Name, email, user.Company, user.Plan, user.PasswordHash, now)
	if isUniqueViolation(err, usersEmailKey) {
		return "", oops.With("email", email).Wrap(account.ErrDuplicateEmail)
	}
	if err != nil {
		return "", oops.With("operation", "insert user").With("email", email).Wrap(err)
	}

	user.ID = id
	user.Email = email
	user.CreatedAt = now
	user.LastLogin = &now
	user.IsActive = true
	return id, nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*account.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With("user_id", id).Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "get user").With("user_id", id).Wrap(err)
	}
	return user, nil
}

// FindByEmail retrieves a user by normalized email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*account.User, error) {
	email = account.NormalizeEmail(email)
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With("email", email).Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "find user by email").Wrap(err)
	}
	return user, nil
}

// Update writes the named fields of an existing user.
func (r *UserRepository) Update(ctx context.Context, id string, update account.UserUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	var (
		sets []string
		args = []any{id}
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.Name != nil {
		set("name", *update.Name)
	}
	if update.Company != nil {
		set("company", *update.Company)
	}
	if update.Plan != nil {
		set("plan", *update.Plan)
	}
	if update.PasswordHash != nil {
		set("password_hash", *update.PasswordHash)
	}
	if update.LastLogin != nil {
		set("last_login", update.LastLogin.UTC())
	}
	if update.IsActive != nil {
		set("is_active", *update.IsActive)
	}

	result, err := r.db.Exec(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = $1`, args...)
	if err != nil {
		return oops.With("operation", "update user").With("user_id", id).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.With("user_id", id).Wrap(account.ErrNotFound)
	}
	return nil
}

// Delete removes a user. Subscriptions and sessions go with it by cascade.
// Deleting an unknown user succeeds.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return oops.With("operation", "delete user").With("user_id", id).Wrap(err)
	}
	return nil
}

// Stats summarizes all stored users.
func (r *UserRepository) Stats(ctx context.Context) (*account.Stats, error) {
	rows, err := r.db.Query(ctx, `
		SELECT plan, is_active, count(*)
		FROM users
		GROUP BY plan, is_active
	`)
	if err != nil {
		return nil, oops.With("operation", "user stats").Wrap(err)
	}
	defer rows.Close()

	stats := &account.Stats{PlansCount: map[string]int{}}
	for rows.Next() {
		var (
			plan   string
			active bool
			count  int
		)
		if err := rows.Scan(&plan, &active, &count); err != nil {
			return nil, oops.With("operation", "scan user stats").Wrap(err)
		}
		if plan == "" {
			plan = account.PlanFree
		}
		stats.TotalUsers += count
		if active {
			stats.ActiveUsers += count
		}
		stats.PlansCount[plan] += count
	}
	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", "iterate user stats").Wrap(err)
	}
	return stats, nil
}

// scanUser scans a single row. pgx.ErrNoRows is returned unwrapped.
func scanUser(row pgx.Row) (*account.User, error) {
	var (
		u         account.User
		lastLogin *time.Time
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Company, &u.Plan, &u.PasswordHash,
		&u.CreatedAt, &lastLogin, &u.IsActive)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context
	}
	u.CreatedAt = u.CreatedAt.UTC()
	if lastLogin != nil {
		t := lastLogin.UTC()
		u.LastLogin = &t
	}
	return &u, nil
}

var _ account.UserRepository = (*UserRepository)(nil)
