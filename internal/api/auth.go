package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"tasky/internal/service"
)

// RefreshResult is the body of a successful refresh.
type RefreshResult struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int    `json:"expiresIn,omitempty"`
}

// Login implements service.AuthService.
// A 401 here means bad credentials and is returned without a refresh attempt.
func (c *Client) Login(ctx context.Context, creds service.Credentials) (service.AuthResult, error) {
	return c.authenticate(ctx, "/auth/login", creds)
}

// Register implements service.AuthService.
func (c *Client) Register(ctx context.Context, form service.SignupForm) (service.AuthResult, error) {
	return c.authenticate(ctx, "/auth/register", form)
}

func (c *Client) authenticate(ctx context.Context, path string, payload any) (service.AuthResult, error) {
	var res service.AuthResult
	req := &request{method: http.MethodPost, path: path, body: payload, retried: true}
	if err := c.do(ctx, req, &res); err != nil {
		return service.AuthResult{}, err
	}
	if res.AccessToken == "" {
		return service.AuthResult{}, fmt.Errorf("%w: missing accessToken", ErrInvalidResponse)
	}
	return res, nil
}

// Me implements service.AuthService.
func (c *Client) Me(ctx context.Context) (service.User, error) {
	var raw json.RawMessage
	if err := c.do(ctx, &request{method: http.MethodGet, path: "/auth/me"}, &raw); err != nil {
		return service.User{}, err
	}
	var user service.User
	if err := decodeEnvelope(raw, &user, "user", "data"); err != nil {
		return service.User{}, err
	}
	if user.ID == "" {
		return service.User{}, fmt.Errorf("%w: profile without id", ErrInvalidResponse)
	}
	return user, nil
}

// Refresh exchanges refreshToken for a new access token. It bypasses the
// 401 handling in do: the refresh endpoint itself must never trigger a
// refresh.
func (c *Client) Refresh(ctx context.Context, accessToken, refreshToken string) (RefreshResult, error) {
	var res RefreshResult
	req := &request{
		method:  http.MethodPost,
		path:    "/auth/refresh",
		body:    map[string]string{"refreshToken": refreshToken},
		retried: true,
	}
	if err := c.send(ctx, req, accessToken, &res); err != nil {
		return RefreshResult{}, err
	}
	if res.AccessToken == "" {
		return RefreshResult{}, fmt.Errorf("%w: missing accessToken", ErrInvalidResponse)
	}
	return res, nil
}
