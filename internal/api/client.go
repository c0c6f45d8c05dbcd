// Package api implements service.Service and service.AuthService against the
// task REST API.
//
// Every request carries the current access token in a custom header. A 401
// response triggers a single token refresh; requests failing while the
// refresh is in flight wait for it and are replayed with the new token.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"tasky/internal/logging"
	"tasky/internal/session"
)

const (
	// DefaultTokenHeader is the header the API reads the access token from.
	DefaultTokenHeader = "AccessToken"

	// DefaultTimeout bounds a single HTTP exchange.
	DefaultTimeout = 10 * time.Second

	// DefaultRefreshTimeout bounds the refresh call.
	DefaultRefreshTimeout = 15 * time.Second
)

// Options configures a Client.
type Options struct {
	BaseURL        string
	TokenHeader    string
	Timeout        time.Duration
	RefreshTimeout time.Duration
	HTTPClient     *http.Client
	Logger         *zap.Logger
}

// Client talks to the task API on behalf of the session in Store.
type Client struct {
	base           *url.URL
	header         string
	timeout        time.Duration
	refreshTimeout time.Duration
	http           *http.Client
	session        *session.Store
	logger         *zap.Logger

	mu         sync.Mutex
	refreshing bool
	waiters    []chan refreshResult
}

type refreshResult struct {
	token string
	err   error
}

// request describes one logical API call. retried is set once the call has
// been replayed after a refresh; a retried call never triggers another one.
type request struct {
	method  string
	path    string
	query   url.Values
	body    any
	retried bool
}

// New creates a client for opts.BaseURL using store for credentials.
func New(opts Options, store *session.Store) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("api base URL is required")
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid api base URL: unsupported scheme %q", base.Scheme)
	}
	if store == nil {
		store = session.New()
	}

	c := &Client{
		base:           base,
		header:         opts.TokenHeader,
		timeout:        opts.Timeout,
		refreshTimeout: opts.RefreshTimeout,
		http:           opts.HTTPClient,
		session:        store,
		logger:         logging.OrNop(opts.Logger),
	}
	if c.header == "" {
		c.header = DefaultTokenHeader
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.refreshTimeout <= 0 {
		c.refreshTimeout = DefaultRefreshTimeout
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	return c, nil
}

// Session returns the store the client reads credentials from.
func (c *Client) Session() *session.Store {
	return c.session
}

// do sends req with the current access token. A 401 response is answered by
// refreshing the session (or waiting for the refresh already in flight) and
// replaying req once with the new token.
func (c *Client) do(ctx context.Context, req *request, out any) error {
	// A token known to be expired is refreshed before sending instead of
	// waiting for the server to reject it.
	if !req.retried && c.session.Expired() && c.session.RefreshToken() != "" {
		c.logger.Debug("access token expired, refreshing before request")
		token, err := c.awaitToken(ctx, nil)
		if err != nil {
			return err
		}
		if token != "" {
			req.retried = true
			return c.send(ctx, req, token, out)
		}
	}

	sent := c.session.AccessToken()
	err := c.send(ctx, req, sent, out)
	if err == nil || !IsUnauthorized(err) || req.retried {
		return err
	}

	// A refresh finished while this request was on the wire.
	if current := c.session.AccessToken(); current != "" && current != sent {
		req.retried = true
		return c.send(ctx, req, current, out)
	}

	token, err := c.awaitToken(ctx, err)
	if err != nil {
		return err
	}

	req.retried = true
	return c.send(ctx, req, token, out)
}

// awaitToken returns a fresh access token after a 401 or for an expired
// token. cause is returned as-is when there is no refresh token to use.
func (c *Client) awaitToken(ctx context.Context, cause error) (string, error) {
	refreshToken := c.session.RefreshToken()
	if refreshToken == "" {
		c.logger.Debug("unauthorized without refresh token, logging out")
		c.session.Logout()
		return "", cause
	}

	c.mu.Lock()
	if c.refreshing {
		ch := make(chan refreshResult, 1)
		c.waiters = append(c.waiters, ch)
		queued := len(c.waiters)
		c.mu.Unlock()

		c.logger.Debug("waiting for token refresh", zap.Int("queued", queued))
		select {
		case r := <-ch:
			return r.token, r.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	c.refreshing = true
	c.mu.Unlock()

	return c.refreshAndRelease(ctx, refreshToken)
}

// refreshAndRelease performs the refresh and settles every waiter queued
// behind it. The refreshing flag is cleared on every path.
func (c *Client) refreshAndRelease(ctx context.Context, refreshToken string) (token string, err error) {
	defer func() {
		c.mu.Lock()
		waiters := c.waiters
		c.waiters = nil
		c.refreshing = false
		c.mu.Unlock()

		for _, w := range waiters {
			w <- refreshResult{token: token, err: err}
		}
	}()

	// The refresh outlives the caller that triggered it: other requests may
	// be waiting on it, and a cancelled caller must not log the user out.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
	defer cancel()

	start := time.Now()
	res, err := c.Refresh(rctx, c.session.AccessToken(), refreshToken)
	if err != nil {
		c.logger.Warn("token refresh failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		c.session.Logout()
		return "", &sessionEndedError{err: err}
	}

	c.session.SetAccessToken(res.AccessToken)
	if res.RefreshToken != "" {
		c.session.SetRefreshToken(res.RefreshToken)
	}
	if expiry := session.ExpiryIn(res.ExpiresIn, time.Now()); !expiry.IsZero() {
		c.session.SetTokenExpiry(expiry)
	}
	c.logger.Debug("token refreshed", zap.Duration("took", time.Since(start)))
	return res.AccessToken, nil
}

// send performs one HTTP exchange. token, if set, goes in the token header.
func (c *Client) send(ctx context.Context, req *request, token string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	hreq, err := http.NewRequestWithContext(ctx, req.method, c.resolve(req.path, req.query), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	hreq.Header.Set("Accept", "application/json")
	if body != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		hreq.Header.Set(c.header, token)
	}

	start := time.Now()
	resp, err := c.http.Do(hreq)
	if err != nil {
		return wrapTransportError(err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api request",
		zap.String("method", req.method),
		zap.String("path", req.path),
		zap.Int("status", resp.StatusCode),
		zap.Bool("retried", req.retried),
		zap.Duration("took", time.Since(start)),
	)

	if err := checkResponse(resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", ErrInvalidResponse)
		}
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.base
	escaped := strings.TrimRight(u.EscapedPath(), "/") + path
	if unescaped, err := url.PathUnescape(escaped); err == nil {
		u.Path = unescaped
		u.RawPath = escaped
	} else {
		u.Path = escaped
		u.RawPath = ""
	}
	u.RawQuery = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// Ping reports whether the API host answers at all. Any HTTP response,
// whatever its status, counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	hreq, err := http.NewRequestWithContext(ctx, http.MethodHead, c.resolve("/", nil), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(hreq)
	if err != nil {
		return wrapTransportError(err)
	}
	resp.Body.Close()
	return nil
}
