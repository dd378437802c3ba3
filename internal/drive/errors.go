// Package drive is a thin client for the Google Drive v3 API covering the
// three calls drivecast needs: list videos, fetch one file's metadata, and
// open a file's media (optionally a byte range of it).
package drive

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// Sentinel errors for remote failures. Use errors.Is(err, drive.ErrNotFound)
// to check. ErrForbidden, ErrThrottled and ErrServerError all match
// ErrUpstream as well.
var (
	ErrUnauthorized = errors.New("drive: unauthorized")
	ErrNotFound     = errors.New("drive: not found")
	ErrUpstream     = errors.New("drive: upstream failure")

	ErrForbidden   = fmt.Errorf("%w: forbidden", ErrUpstream)
	ErrThrottled   = fmt.Errorf("%w: throttled", ErrUpstream)
	ErrServerError = fmt.Errorf("%w: server error", ErrUpstream)
)

// Error wraps a sentinel with the remote status code and message.
type Error struct {
	StatusCode int
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("drive: HTTP %d", e.StatusCode)
	}

	return fmt.Sprintf("drive: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx success codes.
func classifyStatus(code int) error {
	switch {
	case code >= http.StatusOK && code < http.StatusMultipleChoices:
		return nil
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests:
		return ErrThrottled
	case code >= http.StatusInternalServerError:
		return ErrServerError
	default:
		return ErrUpstream
	}
}

// rateLimitReasons are the 403 reasons Drive uses for quota exhaustion.
var rateLimitReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
}

// classify turns an error from the Drive client library into an *Error, or
// wraps it in ErrUpstream when no HTTP status is available (network failure,
// cancellation, malformed response).
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return fmt.Errorf("drive: %s: %w: %w", op, ErrUpstream, err)
	}

	sentinel := classifyStatus(gerr.Code)
	if sentinel == nil {
		sentinel = ErrUpstream
	}

	if gerr.Code == http.StatusForbidden {
		for _, item := range gerr.Errors {
			if rateLimitReasons[item.Reason] {
				sentinel = ErrThrottled
				break
			}
		}
	}

	return &Error{
		StatusCode: gerr.Code,
		Message:    strings.TrimSpace(gerr.Message),
		Err:        sentinel,
	}
}
