// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package docstore is a client for a path-addressed JSON document store with
// Firebase Realtime Database REST semantics.
//
// Documents live at slash-separated paths and are addressed as
// <base>/<path>.json?auth=<secret>. JSON null is the absence of a document.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/accounts/internal/observability"
)

var tracer = otel.Tracer("accounts/docstore")

var (
	// ErrUnavailable is returned for transport failures, non-success statuses,
	// timeouts and malformed responses.
	ErrUnavailable = errors.New("document store unavailable")

	// ErrPreconditionFailed is returned by SetIfMatch when the document changed
	// since its ETag was read.
	ErrPreconditionFailed = errors.New("document store precondition failed")
)

// Defaults applied by New.
const (
	DefaultTimeout = 10 * time.Second
	DefaultRetries = 2
	defaultBackoff = 100 * time.Millisecond

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 32 << 20
)

const (
	headerETag        = "ETag"
	headerIfMatch     = "if-match"
	headerRequestETag = "X-Firebase-ETag"
)

// Client talks to the document store over HTTP. It is safe for concurrent use.
type Client struct {
	base       *url.URL
	secret     string
	httpClient *http.Client
	timeout    time.Duration
	retries    uint64
	backoff    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds every call, retries included.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetries sets how many times an idempotent request is retried after a
// transport error or 5xx. Zero disables retries.
func WithRetries(n uint64) Option {
	return func(c *Client) {
		c.retries = n
	}
}

// WithBackoff sets the base delay of the exponential retry backoff.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.backoff = d
		}
	}
}

// New creates a client for the store rooted at baseURL. An empty secret sends
// unauthenticated requests.
func New(baseURL, secret string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, oops.In("docstore").Errorf("base URL is required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, oops.In("docstore").With("url", baseURL).Wrapf(err, "parse base URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, oops.In("docstore").With("scheme", u.Scheme).Errorf("base URL must be http or https")
	}

	c := &Client{
		base:       u,
		secret:     secret,
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		retries:    DefaultRetries,
		backoff:    defaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get decodes the document at path into out. It reports false if the
// document does not exist, leaving out untouched.
func (c *Client) Get(ctx context.Context, path string, out any) (bool, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return false, err
	}
	return c.decode(path, resp.body, out)
}

// GetWithETag is Get that also returns the document's ETag for a later
// SetIfMatch. Absent documents have an ETag too.
func (c *Client) GetWithETag(ctx context.Context, path string, out any) (string, bool, error) {
	h := http.Header{}
	h.Set(headerRequestETag, "true")
	resp, err := c.do(ctx, http.MethodGet, path, h, nil)
	if err != nil {
		return "", false, err
	}
	etag := resp.header.Get(headerETag)
	if etag == "" {
		return "", false, c.unavailable(http.MethodGet, path, resp.status, errors.New("response carried no ETag"))
	}
	found, err := c.decode(path, resp.body, out)
	return etag, found, err
}

// Push appends doc under the collection at path and returns the generated key.
func (c *Client) Push(ctx context.Context, path string, doc any) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, path, nil, doc)
	if err != nil {
		return "", err
	}
	var created struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(resp.body, &created); err != nil || created.Name == "" {
		if err == nil {
			err = errors.New("response carried no key")
		}
		return "", c.unavailable(http.MethodPost, path, resp.status, err)
	}
	return created.Name, nil
}

// Set replaces the document at path.
func (c *Client) Set(ctx context.Context, path string, doc any) error {
	_, err := c.do(ctx, http.MethodPut, path, nil, doc)
	return err
}

// SetIfMatch replaces the document at path only if its current ETag equals
// etag. It returns ErrPreconditionFailed if the document changed.
func (c *Client) SetIfMatch(ctx context.Context, path, etag string, doc any) error {
	h := http.Header{}
	h.Set(headerIfMatch, etag)
	_, err := c.do(ctx, http.MethodPut, path, h, doc)
	return err
}

// Update merges fields into the document at path. At the root path ("")
// keys may be multi-segment paths and all of them are written atomically.
// A nil field value deletes that child.
func (c *Client) Update(ctx context.Context, path string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	_, err := c.do(ctx, http.MethodPatch, path, nil, fields)
	return err
}

// Delete removes the document at path. Deleting an absent document succeeds.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil, nil)
	return err
}

// Ping checks that the store is reachable and accepts the secret.
func (c *Client) Ping(ctx context.Context) error {
	var ignored json.RawMessage
	_, err := c.getShallow(ctx, &ignored)
	return err
}

func (c *Client) getShallow(ctx context.Context, out any) (bool, error) {
	resp, err := c.doQuery(ctx, http.MethodGet, "", url.Values{"shallow": {"true"}}, nil, nil)
	if err != nil {
		return false, err
	}
	return c.decode("", resp.body, out)
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (c *Client) do(ctx context.Context, method, path string, header http.Header, body any) (*response, error) {
	return c.doQuery(ctx, method, path, nil, header, body)
}

func (c *Client) doQuery(ctx context.Context, method, path string, query url.Values, header http.Header, body any) (resp *response, err error) {
	ctx, span := tracer.Start(ctx, "docstore."+strings.ToLower(method),
		trace.WithAttributes(
			attribute.String("docstore.method", method),
			attribute.String("docstore.path", path),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	target, err := c.endpoint(path, query)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, oops.In("docstore").With("path", path).Wrapf(err, "encode document")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// POST creates a new key each time and a conditional PUT would fail its
	// own precondition on replay, so neither is retried.
	retryable := method != http.MethodPost && header.Get(headerIfMatch) == ""
	retries := c.retries
	if !retryable {
		retries = 0
	}
	backoff := retry.WithMaxRetries(retries, retry.NewExponential(c.backoff))

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		r, attemptErr := c.attempt(ctx, method, path, target, header, payload)
		if attemptErr != nil {
			return attemptErr
		}
		resp = r
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrPreconditionFailed) {
			return nil, err
		}
		// Context expiry while waiting between attempts.
		return nil, c.unavailable(method, path, 0, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.status))
	return resp, nil
}

// attempt performs one HTTP exchange. Errors worth repeating are marked
// with retry.RetryableError.
func (c *Client) attempt(ctx context.Context, method, path, target string, header http.Header, payload []byte) (*response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, c.unavailable(method, path, 0, redactURL(err))
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordStoreRequest(method, "error")
		return nil, retry.RetryableError(c.unavailable(method, path, 0, redactURL(err)))
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	observability.RecordStoreRequest(method, strconv.Itoa(httpResp.StatusCode))
	if err != nil {
		return nil, retry.RetryableError(c.unavailable(method, path, httpResp.StatusCode, redactURL(err)))
	}

	switch {
	case httpResp.StatusCode == http.StatusPreconditionFailed && header.Get(headerIfMatch) != "":
		return nil, oops.In("docstore").
			With("method", method).
			With("path", path).
			Wrap(ErrPreconditionFailed)
	case httpResp.StatusCode >= http.StatusInternalServerError:
		return nil, retry.RetryableError(c.unavailable(method, path, httpResp.StatusCode, statusError(data)))
	case httpResp.StatusCode < 200 || httpResp.StatusCode > 299:
		return nil, c.unavailable(method, path, httpResp.StatusCode, statusError(data))
	}

	return &response{status: httpResp.StatusCode, header: httpResp.Header, body: data}, nil
}

// endpoint builds <base>/<path>.json with the secret and query attached.
func (c *Client) endpoint(path string, query url.Values) (string, error) {
	segments, err := splitPath(path)
	if err != nil {
		return "", err
	}
	u := *c.base
	u.RawPath = ""
	u.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.Join(segments, "/") + ".json"

	q := url.Values{}
	for k, vs := range query {
		q[k] = vs
	}
	if c.secret != "" {
		q.Set("auth", c.secret)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) decode(path string, body []byte, out any) (bool, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return false, c.unavailable(http.MethodGet, path, http.StatusOK, err)
	}
	return true, nil
}

func (c *Client) unavailable(method, path string, status int, cause error) error {
	return oops.In("docstore").
		With("method", method).
		With("path", path).
		With("status", status).
		Wrap(errors.Join(ErrUnavailable, cause))
}

// splitPath validates a slash-separated document path. Keys may not contain
// the characters the store reserves.
func splitPath(path string) ([]string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, nil
	}
	segments := strings.Split(path, "/")
	for _, s := range segments {
		if !ValidKey(s) {
			return nil, oops.In("docstore").With("path", path).Errorf("invalid document path segment %q", s)
		}
	}
	return segments, nil
}

// ValidKey reports whether s can name a single document key: non-empty and
// free of '/' and the characters the store reserves.
func ValidKey(s string) bool {
	return s != "" && !strings.ContainsAny(s, "/.$#[]")
}

// JoinPath joins document path segments with slashes.
func JoinPath(segments ...string) string {
	return strings.Join(segments, "/")
}

// statusError extracts the store's {"error": "..."} message when present.
func statusError(body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return errors.New(payload.Error)
	}
	return errors.New("unexpected response status")
}

// redactURL drops the request URL from transport errors so the secret
// carried in the query string never reaches logs.
func redactURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return oops.With("op", urlErr.Op).Wrap(urlErr.Err)
	}
	return err
}
