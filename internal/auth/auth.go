// Package auth runs the login, signup, profile and logout flows on top of
// the session store.
package auth

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"tasky/internal/logging"
	"tasky/internal/service"
	"tasky/internal/session"
)

// ErrNotAuthenticated is returned by Profile when there is no access token.
var ErrNotAuthenticated = errors.New("not logged in")

// ValidationError is a rejected form field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	emailPattern   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	specialPattern = regexp.MustCompile(`[@$!%*?&]`)
)

// ValidateCredentials checks a login form.
func ValidateCredentials(c service.Credentials) error {
	if !emailPattern.MatchString(c.Email) {
		return &ValidationError{Field: "email", Message: "Enter a valid email address"}
	}
	if c.Password == "" {
		return &ValidationError{Field: "password", Message: "Password is required"}
	}
	return nil
}

// ValidateSignup checks a registration form.
func ValidateSignup(f service.SignupForm) error {
	if len(f.Name) < 3 {
		return &ValidationError{Field: "name", Message: "Full name is required"}
	}
	if len(strings.Fields(f.Name)) < 2 {
		return &ValidationError{Field: "name", Message: "Please enter both first and last name"}
	}
	if !emailPattern.MatchString(f.Email) {
		return &ValidationError{Field: "email", Message: "Enter a valid email address"}
	}
	if len(f.Password) < 6 {
		return &ValidationError{Field: "password", Message: "Password must be at least 6 characters"}
	}
	if !specialPattern.MatchString(f.Password) {
		return &ValidationError{Field: "password", Message: "Password must contain at least one special character (@, $, !, %, *, ?, &)"}
	}
	if f.ConfirmPassword != f.Password {
		return &ValidationError{Field: "confirmPassword", Message: "Passwords do not match"}
	}
	return nil
}

// Clearer drops locally cached data.
type Clearer interface {
	Clear(ctx context.Context)
}

// Manager binds the account endpoints to the session store.
type Manager struct {
	svc     service.AuthService
	session *session.Store
	cache   Clearer
	logger  *zap.Logger
}

// New creates a Manager. cache may be nil.
func New(svc service.AuthService, store *session.Store, cache Clearer, logger *zap.Logger) *Manager {
	return &Manager{svc: svc, session: store, cache: cache, logger: logging.OrNop(logger)}
}

// Login validates creds, authenticates and stores the new session.
func (m *Manager) Login(ctx context.Context, creds service.Credentials) (service.User, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	if err := ValidateCredentials(creds); err != nil {
		return service.User{}, err
	}
	res, err := m.svc.Login(ctx, creds)
	if err != nil {
		return service.User{}, err
	}
	return m.establish(ctx, res)
}

// Signup validates form, registers the account and stores its session.
func (m *Manager) Signup(ctx context.Context, form service.SignupForm) (service.User, error) {
	form.Name = strings.TrimSpace(form.Name)
	form.Email = strings.TrimSpace(form.Email)
	if err := ValidateSignup(form); err != nil {
		return service.User{}, err
	}
	res, err := m.svc.Register(ctx, form)
	if err != nil {
		return service.User{}, err
	}
	return m.establish(ctx, res)
}

// establish stores res. When the response carries no user, the profile is
// fetched with the new token.
func (m *Manager) establish(ctx context.Context, res service.AuthResult) (service.User, error) {
	m.session.SetSession(res.AccessToken, res.RefreshToken, res.User)
	if expiry := session.ExpiryIn(res.ExpiresIn, time.Now()); !expiry.IsZero() {
		m.session.SetTokenExpiry(expiry)
	}
	if res.User != nil {
		m.logger.Debug("session established", zap.String("user", res.User.ID))
		return *res.User, nil
	}
	return m.Profile(ctx)
}

// Profile fetches the authenticated user and stores it in the session.
func (m *Manager) Profile(ctx context.Context) (service.User, error) {
	if !m.session.Authenticated() {
		return service.User{}, ErrNotAuthenticated
	}
	u, err := m.svc.Me(ctx)
	if err != nil {
		return service.User{}, err
	}
	m.session.SetUser(&u)
	return u, nil
}

// Logout clears the session and the local task cache.
func (m *Manager) Logout(ctx context.Context) {
	m.session.Logout()
	if m.cache != nil {
		m.cache.Clear(ctx)
	}
	m.logger.Debug("logged out")
}
