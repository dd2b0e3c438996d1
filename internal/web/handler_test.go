// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accounts/internal/account/remote"
	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/observability"
	"github.com/holomush/accounts/internal/store/docstore"
	"github.com/holomush/accounts/internal/store/docstore/docstoretest"
	"github.com/holomush/accounts/internal/subscription"
	"github.com/holomush/accounts/internal/web"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// plainHasher keeps handler tests fast; hashing has its own tests.
type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "plain$" + p, nil }
func (plainHasher) Verify(p, h string) bool       { return h == "plain$"+p }
func (plainHasher) NeedsUpgrade(string) bool      { return false }

type api struct {
	t       *testing.T
	store   *docstoretest.Server
	router  http.Handler
	metrics *observability.Metrics
}

func newAPI(t *testing.T, cfg web.Config) *api {
	t.Helper()
	srv := docstoretest.NewServer("secret")
	t.Cleanup(srv.Close)

	client, err := docstore.New(srv.URL(), "secret", docstore.WithRetries(0))
	require.NoError(t, err)

	users := remote.NewUserRepository(client)
	subs, err := subscription.NewService(remote.NewSubscriptionRepository(client), users)
	require.NoError(t, err)
	accounts, err := auth.NewService(users, subs, remote.NewSessionRepository(client), plainHasher{})
	require.NoError(t, err)

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h, err := web.NewHandler(accounts, subs, cfg, web.WithLogger(logger), web.WithMetrics(metrics))
	require.NoError(t, err)

	return &api{t: t, store: srv, router: h.Router(), metrics: metrics}
}

func (a *api) do(method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == web.SessionCookie {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", web.SessionCookie)
	return nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

const aliceJSON = `{"name":"Alice","email":"Alice@Ex.com","company":"Acme","password":"Aa1!aaaa"}`

func TestRegisterLoginDashboardUpgrade(t *testing.T) {
	a := newAPI(t, web.Config{})

	rec := a.do(http.MethodPost, "/register", aliceJSON, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	userID := decode(t, rec)["user_id"]
	assert.NotEmpty(t, userID)

	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.False(t, cookie.Secure)
	assert.Positive(t, cookie.MaxAge)

	rec = a.do(http.MethodPost, "/login", `{"email":"alice@ex.com","password":"Aa1!aaaa"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, userID, decode(t, rec)["user_id"])
	cookie = sessionCookie(t, rec)

	rec = a.do(http.MethodGet, "/dashboard", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	user := body["user"].(map[string]any)
	assert.Equal(t, "alice@ex.com", user["email"])
	assert.Equal(t, "free", user["plan"])
	assert.NotContains(t, user, "password_hash")
	assert.Equal(t, "free", body["subscription"].(map[string]any)["plan"])
	assert.Len(t, body["plans"], 3)

	rec = a.do(http.MethodPost, "/upgrade", `{"plan":"premium"}`, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "premium", decode(t, rec)["subscription"].(map[string]any)["plan"])

	rec = a.do(http.MethodGet, "/dashboard", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "premium", decode(t, rec)["user"].(map[string]any)["plan"])

	assert.InDelta(t, 1, testutil.ToFloat64(a.metrics.RequestsTotal.WithLabelValues("/upgrade", "200")), 0.001)
}

func TestRegister_Errors(t *testing.T) {
	a := newAPI(t, web.Config{})
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/register", aliceJSON, nil).Code)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"duplicate email", `{"name":"A2","email":" ALICE@ex.com","password":"Aa1!aaaa"}`, http.StatusConflict, "Email already registered."},
		{"weak password", `{"name":"Bob","email":"bob@ex.com","password":"short"}`, http.StatusBadRequest, ""},
		{"unknown plan", `{"name":"Bob","email":"bob@ex.com","password":"Aa1!aaaa","plan":"gold"}`, http.StatusBadRequest, "Unknown plan"},
		{"missing name", `{"email":"bob@ex.com","password":"Aa1!aaaa"}`, http.StatusBadRequest, ""},
		{"malformed body", `{"name":`, http.StatusBadRequest, "request body is not valid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(http.MethodPost, "/register", tt.body, nil)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			msg, _ := decode(t, rec)["error"].(string)
			assert.NotEmpty(t, msg)
			if tt.wantError != "" {
				assert.Contains(t, msg, tt.wantError)
			}
			assert.Empty(t, rec.Result().Cookies())
		})
	}
}

func TestRegister_FormBody(t *testing.T) {
	a := newAPI(t, web.Config{})
	form := url.Values{
		"name":     {"Carol"},
		"email":    {"carol@ex.com"},
		"password": {"Aa1!aaaa"},
		"plan":     {"enterprise"},
	}
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestLogin_Errors(t *testing.T) {
	a := newAPI(t, web.Config{})
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/register", aliceJSON, nil).Code)
	writes := len(a.store.Writes())

	rec := a.do(http.MethodPost, "/login", `{"email":"alice@ex.com","password":"nope"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Wrong password", decode(t, rec)["error"])
	assert.Len(t, a.store.Writes(), writes, "a failed login writes nothing")

	rec = a.do(http.MethodPost, "/login", `{"email":"nobody@ex.com","password":"Aa1!aaaa"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "User not found", decode(t, rec)["error"])
}

func TestStoreFailureHidesDetails(t *testing.T) {
	a := newAPI(t, web.Config{})
	a.store.FailOn(http.MethodGet, "users", http.StatusServiceUnavailable)

	rec := a.do(http.MethodPost, "/login", `{"email":"alice@ex.com","password":"Aa1!aaaa"}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	msg := decode(t, rec)["error"].(string)
	assert.Equal(t, "Service temporarily unavailable, please try again.", msg)
	assert.NotContains(t, msg, "secret")
	assert.NotContains(t, msg, "users")
}

func TestRequireSession(t *testing.T) {
	a := newAPI(t, web.Config{})

	rec := a.do(http.MethodGet, "/dashboard", "", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = a.do(http.MethodGet, "/dashboard", "", &http.Cookie{Name: web.SessionCookie, Value: "forged"})
	assert.Equal(t, http.StatusFound, rec.Code)
	cleared := sessionCookie(t, rec)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)

	rec = a.do(http.MethodPost, "/upgrade", `{"plan":"premium"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Please log in.", decode(t, rec)["error"])
}

func TestUpgrade_UnknownPlan(t *testing.T) {
	a := newAPI(t, web.Config{})
	cookie := sessionCookie(t, a.do(http.MethodPost, "/register", aliceJSON, nil))

	rec := a.do(http.MethodPost, "/upgrade", `{"plan":"platinum"}`, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Unknown plan", decode(t, rec)["error"])

	rec = a.do(http.MethodGet, "/dashboard", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "free", decode(t, rec)["subscription"].(map[string]any)["plan"])
}

func TestLogout(t *testing.T) {
	a := newAPI(t, web.Config{})
	cookie := sessionCookie(t, a.do(http.MethodPost, "/register", aliceJSON, nil))

	rec := a.do(http.MethodGet, "/logout", "", cookie)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Empty(t, sessionCookie(t, rec).Value)

	rec = a.do(http.MethodGet, "/dashboard", "", cookie)
	assert.Equal(t, http.StatusFound, rec.Code, "the old token no longer works")

	rec = a.do(http.MethodPost, "/logout", "", nil)
	assert.Equal(t, http.StatusFound, rec.Code, "logout without a session is harmless")
}

func TestIndex(t *testing.T) {
	a := newAPI(t, web.Config{})

	rec := a.do(http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	plans := decode(t, rec)["plans"].([]any)
	require.Len(t, plans, 3)
	assert.Equal(t, "free", plans[0].(map[string]any)["id"])

	cookie := sessionCookie(t, a.do(http.MethodPost, "/register", aliceJSON, nil))
	rec = a.do(http.MethodGet, "/", "", cookie)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))

	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/plans", "", nil).Code)
}

func TestSecureCookie(t *testing.T) {
	a := newAPI(t, web.Config{SecureCookie: true})
	cookie := sessionCookie(t, a.do(http.MethodPost, "/register", aliceJSON, nil))
	assert.True(t, cookie.Secure)
}

func TestNewHandler_Validation(t *testing.T) {
	_, err := web.NewHandler(nil, nil, web.Config{})
	require.ErrorContains(t, err, "accounts service is required")
}
