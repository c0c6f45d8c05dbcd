package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"

	"tasky/internal/service"
)

// ErrInvalidResponse is returned when a 2xx response body cannot be used.
var ErrInvalidResponse = errors.New("invalid api response")

// StatusError is a non-2xx API response.
type StatusError struct {
	Code    int
	Message string

	cause *googleapi.Error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Code)
}

// Unwrap exposes the underlying *googleapi.Error (status, headers, raw body).
func (e *StatusError) Unwrap() error {
	return e.cause
}

// Is makes a 401 response match service.ErrUnauthorized.
func (e *StatusError) Is(target error) bool {
	return target == service.ErrUnauthorized && e.Code == http.StatusUnauthorized
}

// sessionEndedError is returned to every request that waited on a refresh
// that failed. The session has been logged out by then.
type sessionEndedError struct {
	err error
}

func (e *sessionEndedError) Error() string { return e.err.Error() }
func (e *sessionEndedError) Unwrap() error { return e.err }

func (e *sessionEndedError) Is(target error) bool {
	return target == service.ErrUnauthorized
}

// IsUnauthorized reports whether err is a 401 response.
func IsUnauthorized(err error) bool {
	return statusCode(err) == http.StatusUnauthorized
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	return statusCode(err) == http.StatusNotFound
}

func statusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// checkResponse turns a non-2xx response into a *StatusError.
func checkResponse(resp *http.Response) error {
	err := googleapi.CheckResponse(resp)
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	return &StatusError{
		Code:    gerr.Code,
		Message: errorMessage(gerr),
		cause:   gerr,
	}
}

// errorMessage picks the most useful human-readable message from an error
// body. The API answers {"message": "..."} (sometimes a list of messages)
// or {"error": "..."}.
func errorMessage(gerr *googleapi.Error) string {
	var body struct {
		Message json.RawMessage `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if json.Unmarshal([]byte(gerr.Body), &body) == nil {
		if msg := rawText(body.Message); msg != "" {
			return msg
		}
		if msg := rawText(body.Error); msg != "" {
			return msg
		}
	}
	if gerr.Message != "" {
		return gerr.Message
	}
	if text := http.StatusText(gerr.Code); text != "" {
		return strings.ToLower(text)
	}
	return "request failed"
}

func rawText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		return strings.Join(list, "; ")
	}
	return ""
}

// wrapTransportError gives transport failures a short message while keeping
// the cause for errors.Is.
func wrapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("request cancelled: %w", err)
	}
	return fmt.Errorf("request failed: %w", err)
}
