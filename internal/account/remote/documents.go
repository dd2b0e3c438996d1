// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package remote implements the account repositories over the document
// store.
//
// Layout:
//
//	users/<id>                 user documents, ids assigned by the store
//	email_index/<b64(email)>   uniqueness claims on normalized emails
//	subscriptions/<user id>    one subscription per user
//	activities/<id>            activity entries
//	sessions/<ulid>            web sessions
//	session_tokens/<hash>      token hash -> session id
package remote

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/holomush/accounts/internal/store/docstore"
)

// Collection names.
const (
	usersPath         = "users"
	emailIndexPath    = "email_index"
	subscriptionsPath = "subscriptions"
	activitiesPath    = "activities"
	sessionsPath      = "sessions"
	sessionTokensPath = "session_tokens"
)

// Store is the subset of docstore.Client the repositories use.
type Store interface {
	Get(ctx context.Context, path string, out any) (bool, error)
	GetWithETag(ctx context.Context, path string, out any) (string, bool, error)
	Push(ctx context.Context, path string, doc any) (string, error)
	Set(ctx context.Context, path string, doc any) error
	SetIfMatch(ctx context.Context, path, etag string, doc any) error
	Update(ctx context.Context, path string, fields map[string]any) error
	Delete(ctx context.Context, path string) error
}

var _ Store = (*docstore.Client)(nil)

func path(segments ...string) string {
	return docstore.JoinPath(segments...)
}

// emailKey encodes a normalized email as a store-safe key.
func emailKey(email string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(email))
}

// timestamp decodes the time formats found in stored documents: RFC 3339,
// ISO 8601 without a zone (read as UTC) and epoch milliseconds. It encodes
// as RFC 3339 in UTC.
type timestamp struct {
	time.Time
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func newTimestamp(t time.Time) timestamp {
	return timestamp{Time: t.UTC()}
}

func (t timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *timestamp) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		t.Time = time.Time{}
		return nil
	}
	if !strings.HasPrefix(s, `"`) {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		t.Time = time.UnixMilli(ms).UTC()
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var lastErr error
	for _, layout := range isoLayouts {
		parsed, err := time.Parse(layout, raw)
		if err == nil {
			t.Time = parsed.UTC()
			return nil
		}
		lastErr = err
	}
	return lastErr
}

// ptr returns a pointer to the timestamp's time, or nil for the zero value.
func (t *timestamp) ptr() *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}
