// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/account"
)

// Session token configuration.
const (
	SessionTokenBytes  = 32             // 32 bytes = 64 hex chars
	SessionTokenExpiry = 24 * time.Hour // default TTL
)

// WebSession is a server-side login session. Only the hash of the token
// handed to the client is kept.
type WebSession struct {
	ID         ulid.ULID
	UserID     string
	TokenHash  string
	UserAgent  string
	IPAddress  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// NewWebSession creates a validated WebSession instance created at now.
// UserAgent and IPAddress are optional and may be empty.
func NewWebSession(userID, tokenHash, userAgent, ipAddress string, now, expiresAt time.Time) (*WebSession, error) {
	if userID == "" {
		return nil, oops.Code(account.CodeInvalidInput).Errorf("user ID cannot be empty")
	}
	if tokenHash == "" {
		return nil, oops.Code(account.CodeInvalidInput).Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() || !expiresAt.After(now) {
		return nil, oops.Code(account.CodeInvalidInput).Errorf("expiry must be after creation")
	}

	return &WebSession{
		ID:         ulid.Make(),
		UserID:     userID,
		TokenHash:  tokenHash,
		UserAgent:  userAgent,
		IPAddress:  ipAddress,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
		LastSeenAt: now,
	}, nil
}

// IsExpiredAt returns true if the session would be expired at the given time.
func (s *WebSession) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// GenerateSessionToken creates a secure random token and its hash.
// The plaintext token is sent to the client; the hash is stored.
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashSessionToken(token), nil
}

// HashSessionToken computes the SHA256 hash of a session token.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// WebSessionRepository manages web session persistence.
type WebSessionRepository interface {
	// Create stores a new web session.
	Create(ctx context.Context, session *WebSession) error

	// GetByTokenHash retrieves a session by its token hash.
	// Returns account.ErrNotFound if no session matches.
	GetByTokenHash(ctx context.Context, tokenHash string) (*WebSession, error)

	// Touch updates the LastSeenAt timestamp for a session.
	Touch(ctx context.Context, id ulid.ULID, lastSeen time.Time) error

	// Delete removes a session. Deleting an unknown session succeeds.
	Delete(ctx context.Context, session *WebSession) error

	// DeleteByUser removes all sessions of a user.
	DeleteByUser(ctx context.Context, userID string) error

	// DeleteExpired removes all sessions expired at now and returns how
	// many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
