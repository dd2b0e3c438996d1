// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/account"
	"github.com/holomush/accounts/internal/auth"
)

// SessionRepository implements auth.WebSessionRepository using PostgreSQL.
type SessionRepository struct {
	db DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create stores a new web session.
func (r *SessionRepository) Create(ctx context.Context, s *auth.WebSession) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO web_sessions (id, user_id, token_hash, user_agent, ip_address, expires_at, created_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		s.ID.String(),
		s.UserID,
		s.TokenHash,
		s.UserAgent,
		s.IPAddress,
		s.ExpiresAt.UTC(),
		s.CreatedAt.UTC(),
		s.LastSeenAt.UTC(),
	)
	if err != nil {
		return oops.With("operation", "insert web_session").With("user_id", s.UserID).Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.WebSession, error) {
	var (
		s         auth.WebSession
		idStr     string
		expiresAt time.Time
		createdAt time.Time
		lastSeen  time.Time
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, token_hash, user_agent, ip_address, expires_at, created_at, last_seen_at
		FROM web_sessions
		WHERE token_hash = $1
	`, tokenHash).Scan(&idStr, &s.UserID, &s.TokenHash, &s.UserAgent, &s.IPAddress, &expiresAt, &createdAt, &lastSeen)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "get session by token hash").Wrap(err)
	}

	s.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.With("operation", "parse session id").With("id", idStr).Wrap(err)
	}
	s.ExpiresAt = expiresAt.UTC()
	s.CreatedAt = createdAt.UTC()
	s.LastSeenAt = lastSeen.UTC()
	return &s, nil
}

// Touch updates the LastSeenAt timestamp of a session.
func (r *SessionRepository) Touch(ctx context.Context, id ulid.ULID, lastSeen time.Time) error {
	result, err := r.db.Exec(ctx, `UPDATE web_sessions SET last_seen_at = $2 WHERE id = $1`,
		id.String(), lastSeen.UTC())
	if err != nil {
		return oops.With("operation", "touch session").With("session_id", id.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.With("session_id", id.String()).Wrap(account.ErrNotFound)
	}
	return nil
}

// Delete removes a session. Deleting an unknown session succeeds.
func (r *SessionRepository) Delete(ctx context.Context, s *auth.WebSession) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM web_sessions WHERE id = $1`, s.ID.String()); err != nil {
		return oops.With("operation", "delete session").With("session_id", s.ID.String()).Wrap(err)
	}
	return nil
}

// DeleteByUser removes all sessions of a user.
func (r *SessionRepository) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM web_sessions WHERE user_id = $1`, userID); err != nil {
		return oops.With("operation", "delete sessions by user").With("user_id", userID).Wrap(err)
	}
	return nil
}

// DeleteExpired removes sessions expired at now and returns the count.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM web_sessions WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, oops.With("operation", "delete expired sessions").Wrap(err)
	}
	return result.RowsAffected(), nil
}

var _ auth.WebSessionRepository = (*SessionRepository)(nil)
