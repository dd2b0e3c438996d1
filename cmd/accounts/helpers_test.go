// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accounts/internal/account/remote"
	"github.com/holomush/accounts/internal/config"
	"github.com/holomush/accounts/internal/observability"
	"github.com/holomush/accounts/internal/store/docstore"
	"github.com/holomush/accounts/internal/store/docstore/docstoretest"
)

const testSecret = "test-secret"

// isolateEnv hides user config and ACCOUNTS_* variables and resets the
// global --config value.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, config.EnvPrefix) {
			t.Setenv(name, "")
			require.NoError(t, os.Unsetenv(name))
		}
	}
	configFile = ""
	t.Cleanup(func() { configFile = "" })
}

// useConfig writes content to a temp file and points --config at it.
func useConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	configFile = path
	return path
}

// docstoreConfig returns a config file body for a docstore at url.
func docstoreConfig(url string) string {
	return "http:\n  addr: \"127.0.0.1:0\"\nmetrics:\n  addr: \"127.0.0.1:1\"\nstore:\n  url: " + url +
		"\n  secret: " + testSecret + "\n  retries: 0\npassword:\n  policy: simple\n"
}

// newTestBackend starts an in-memory document store and wraps it in a Backend.
func newTestBackend(t *testing.T) (*Backend, *docstoretest.Server) {
	t.Helper()
	srv := docstoretest.NewServer(testSecret)
	t.Cleanup(srv.Close)

	client, err := docstore.New(srv.URL(), testSecret, docstore.WithRetries(0))
	require.NoError(t, err)

	return &Backend{
		Users:         remote.NewUserRepository(client),
		Subscriptions: remote.NewSubscriptionRepository(client),
		Activities:    remote.NewActivityRepository(client),
		Sessions:      remote.NewSessionRepository(client),
		Ping:          client.Ping,
	}, srv
}

func staticBackend(b *Backend) func(context.Context, *config.Config) (*Backend, error) {
	return func(context.Context, *config.Config) (*Backend, error) { return b, nil }
}

// newTestCmd returns a command whose output is captured in the returned buffer.
func newTestCmd() (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{Use: "test"}
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetContext(context.Background())
	return cmd, buf
}

// fakeServer stands in for both the HTTP and observability servers.
type fakeServer struct {
	mu        sync.Mutex
	addr      string
	handler   http.Handler
	readiness observability.ReadinessChecker
	metrics   *observability.Metrics
	startErr  error
	started   bool
	stopped   bool
}

func (f *fakeServer) Start() (<-chan error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.started = true
	return make(chan error), nil
}

func (f *fakeServer) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeServer) Addr() string { return f.addr }

func (f *fakeServer) Metrics() *observability.Metrics { return f.metrics }

func (f *fakeServer) state() (started, stopped bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started, f.stopped
}
