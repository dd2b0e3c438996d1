// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package remote

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/account"
	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/store/docstore"
)

type sessionDoc struct {
	UserID     string    `json:"user_id"`
	TokenHash  string    `json:"token_hash"`
	UserAgent  string    `json:"user_agent"`
	IPAddress  string    `json:"ip_address"`
	ExpiresAt  timestamp `json:"expires_at"`
	CreatedAt  timestamp `json:"created_at"`
	LastSeenAt timestamp `json:"last_seen_at"`
}

// SessionRepository implements auth.WebSessionRepository over the document
// store. A session and its token index entry are always written together.
type SessionRepository struct {
	store Store
}

var _ auth.WebSessionRepository = (*SessionRepository)(nil)

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(store Store) *SessionRepository {
	return &SessionRepository{store: store}
}

// Create stores a session and its token index entry.
func (r *SessionRepository) Create(ctx context.Context, s *auth.WebSession) error {
	id := s.ID.String()
	doc := sessionDoc{
		UserID:     s.UserID,
		TokenHash:  s.TokenHash,
		UserAgent:  s.UserAgent,
		IPAddress:  s.IPAddress,
		ExpiresAt:  newTimestamp(s.ExpiresAt),
		CreatedAt:  newTimestamp(s.CreatedAt),
		LastSeenAt: newTimestamp(s.LastSeenAt),
	}
	err := r.store.Update(ctx, "", map[string]any{
		path(sessionsPath, id):               doc,
		path(sessionTokensPath, s.TokenHash): id,
	})
	if err != nil {
		return oops.With("operation", "create session").With("session_id", id).Wrap(err)
	}
	return nil
}

// GetByTokenHash resolves a token hash through the index.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.WebSession, error) {
	var id string
	found, err := r.store.Get(ctx, path(sessionTokensPath, tokenHash), &id)
	if err != nil {
		return nil, oops.With("operation", "get session token").Wrap(err)
	}
	if !found || id == "" {
		return nil, oops.Wrap(account.ErrNotFound)
	}

	var doc sessionDoc
	found, err = r.store.Get(ctx, path(sessionsPath, id), &doc)
	if err != nil {
		return nil, oops.With("operation", "get session").With("session_id", id).Wrap(err)
	}
	if !found || doc.TokenHash != tokenHash {
		return nil, oops.With("session_id", id).Wrap(account.ErrNotFound)
	}
	return doc.toSession(id)
}

func (d *sessionDoc) toSession(id string) (*auth.WebSession, error) {
	parsed, err := ulid.Parse(id)
	if err != nil {
		return nil, oops.With("session_id", id).Wrapf(err, "parse session id")
	}
	return &auth.WebSession{
		ID:         parsed,
		UserID:     d.UserID,
		TokenHash:  d.TokenHash,
		UserAgent:  d.UserAgent,
		IPAddress:  d.IPAddress,
		ExpiresAt:  d.ExpiresAt.Time,
		CreatedAt:  d.CreatedAt.Time,
		LastSeenAt: d.LastSeenAt.Time,
	}, nil
}

// Touch updates the LastSeenAt timestamp of a session. The write is
// conditional on the document read, so a touch racing a logout cannot
// recreate the deleted session. A touch that loses such a race is dropped.
func (r *SessionRepository) Touch(ctx context.Context, id ulid.ULID, lastSeen time.Time) error {
	sessionPath := path(sessionsPath, id.String())

	var doc map[string]json.RawMessage
	etag, found, err := r.store.GetWithETag(ctx, sessionPath, &doc)
	if err != nil {
		return oops.With("operation", "read session").With("session_id", id.String()).Wrap(err)
	}
	if !found {
		return oops.With("session_id", id.String()).Wrap(account.ErrNotFound)
	}

	seen, err := json.Marshal(newTimestamp(lastSeen))
	if err != nil {
		return oops.With("operation", "encode last_seen_at").Wrap(err)
	}
	doc["last_seen_at"] = seen

	err = r.store.SetIfMatch(ctx, sessionPath, etag, doc)
	if errors.Is(err, docstore.ErrPreconditionFailed) {
		return nil
	}
	if err != nil {
		return oops.With("operation", "touch session").With("session_id", id.String()).Wrap(err)
	}
	return nil
}

// Delete removes a session and its token index entry.
func (r *SessionRepository) Delete(ctx context.Context, s *auth.WebSession) error {
	err := r.store.Update(ctx, "", map[string]any{
		path(sessionsPath, s.ID.String()):    nil,
		path(sessionTokensPath, s.TokenHash): nil,
	})
	if err != nil {
		return oops.With("operation", "delete session").With("session_id", s.ID.String()).Wrap(err)
	}
	return nil
}

// DeleteByUser removes all sessions of a user.
func (r *SessionRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.deleteWhere(ctx, func(d *sessionDoc) bool { return d.UserID == userID })
	return err
}

// DeleteExpired removes sessions expired at now. Entries without a valid
// expiry are removed too.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.deleteWhere(ctx, func(d *sessionDoc) bool {
		return d.ExpiresAt.IsZero() || !now.Before(d.ExpiresAt.Time)
	})
}

func (r *SessionRepository) deleteWhere(ctx context.Context, match func(*sessionDoc) bool) (int64, error) {
	var raw map[string]json.RawMessage
	if _, err := r.store.Get(ctx, sessionsPath, &raw); err != nil {
		return 0, oops.With("operation", "scan sessions").Wrap(err)
	}

	fields := map[string]any{}
	var n int64
	for id, data := range raw {
		var doc sessionDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			doc = sessionDoc{}
		}
		if !match(&doc) {
			continue
		}
		fields[path(sessionsPath, id)] = nil
		if doc.TokenHash != "" {
			fields[path(sessionTokensPath, doc.TokenHash)] = nil
		}
		n++
	}
	if n == 0 {
		return 0, nil
	}
	if err := r.store.Update(ctx, "", fields); err != nil {
		return 0, oops.With("operation", "delete sessions").With("count", n).Wrap(err)
	}
	return n, nil
}
