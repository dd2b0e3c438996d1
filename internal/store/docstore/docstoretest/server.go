// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package docstoretest provides an in-memory document store that speaks the
// same REST dialect as the production store, for tests.
package docstoretest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
)

// Request records one request the server handled.
type Request struct {
	Method string
	Path   string
}

// FailureFunc decides whether a request fails. A non-zero return is used as
// the response status.
type FailureFunc func(method, path string) int

// Server is an in-memory document store behind an httptest.Server.
type Server struct {
	srv    *httptest.Server
	secret string

	mu       sync.Mutex
	root     map[string]any
	requests []Request
	fail     FailureFunc
}

// NewServer starts a store that requires secret as the auth query parameter.
// An empty secret disables the check. Callers must Close the server.
func NewServer(secret string) *Server {
	s := &Server{secret: secret, root: map[string]any{}}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// URL returns the base URL of the store.
func (s *Server) URL() string { return s.srv.URL }

// Close shuts the server down.
func (s *Server) Close() { s.srv.Close() }

// Fail installs a failure hook; nil removes it.
func (s *Server) Fail(fn FailureFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fn
}

// FailOn makes every request with method on a path starting with prefix
// fail with status.
func (s *Server) FailOn(method, prefix string, status int) {
	s.Fail(func(m, p string) int {
		if m == method && strings.HasPrefix(p, prefix) {
			return status
		}
		return 0
	})
}

// Seed stores value at path, bypassing HTTP. The value is round-tripped
// through JSON.
func (s *Server) Seed(path string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		panic(err)
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(split(path), decoded)
}

// Value returns the decoded JSON value at path, or nil if absent.
func (s *Server) Value(path string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(split(path))
}

// Children returns the number of children at path.
func (s *Server) Children(path string) int {
	m, _ := s.Value(path).(map[string]any)
	return len(m)
}

// Requests returns the requests handled so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Writes returns the handled requests that are not reads.
func (s *Server) Writes() []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Method != http.MethodGet {
			out = append(out, r)
		}
	}
	return out
}

// ResetRequests forgets recorded requests.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, ".json") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	path := strings.Trim(strings.TrimSuffix(r.URL.Path, ".json"), "/")

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, Request{Method: r.Method, Path: path})

	if s.secret != "" && r.URL.Query().Get("auth") != s.secret {
		writeError(w, http.StatusUnauthorized, "Permission denied")
		return
	}
	if s.fail != nil {
		if status := s.fail(r.Method, path); status != 0 {
			writeError(w, status, http.StatusText(status))
			return
		}
	}

	segments := split(path)
	var body any
	if r.Body != nil {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable body")
			return
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &body); err != nil {
				writeError(w, http.StatusBadRequest, "Invalid data; couldn't parse JSON object")
				return
			}
		}
	}

	switch r.Method {
	case http.MethodGet:
		current := s.get(segments)
		if r.Header.Get("X-Firebase-ETag") == "true" {
			w.Header().Set("ETag", etag(current))
		}
		writeJSON(w, http.StatusOK, current)

	case http.MethodPut:
		if match := r.Header.Get("if-match"); match != "" {
			current := s.get(segments)
			if match != etag(current) {
				w.Header().Set("ETag", etag(current))
				writeJSON(w, http.StatusPreconditionFailed, current)
				return
			}
		}
		s.set(segments, body)
		writeJSON(w, http.StatusOK, body)

	case http.MethodPost:
		key := "-" + ulid.Make().String()
		s.set(append(segments, key), body)
		writeJSON(w, http.StatusOK, map[string]string{"name": key})

	case http.MethodPatch:
		fields, ok := body.(map[string]any)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid data; couldn't parse JSON object")
			return
		}
		for k, v := range fields {
			s.set(append(append([]string{}, segments...), split(k)...), v)
		}
		writeJSON(w, http.StatusOK, fields)

	case http.MethodDelete:
		s.set(segments, nil)
		writeJSON(w, http.StatusOK, nil)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) get(segments []string) any {
	var node any = s.root
	for _, seg := range segments {
		m, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node, ok = m[seg]
		if !ok {
			return nil
		}
	}
	return node
}

// set writes value at segments. Nil values and empty objects delete, and
// parents left empty are pruned.
func (s *Server) set(segments []string, value any) {
	if m, ok := value.(map[string]any); ok && len(m) == 0 {
		value = nil
	}
	if len(segments) == 0 {
		m, ok := value.(map[string]any)
		if !ok {
			m = map[string]any{}
		}
		s.root = m
		return
	}
	setIn(s.root, segments, value)
}

func setIn(parent map[string]any, segments []string, value any) {
	key := segments[0]
	if len(segments) == 1 {
		if value == nil {
			delete(parent, key)
		} else {
			parent[key] = value
		}
		return
	}
	child, ok := parent[key].(map[string]any)
	if !ok {
		if value == nil {
			return
		}
		child = map[string]any{}
		parent[key] = child
	}
	setIn(child, segments[1:], value)
	if len(child) == 0 {
		delete(parent, key)
	}
}

func split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func etag(v any) string {
	data, _ := json.Marshal(v)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
