package fetcher

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies page fetch failures.
type ErrorType string

const (
	ErrTypeRateLimited ErrorType = "rate_limited"
	ErrTypeForbidden   ErrorType = "forbidden"
	ErrTypeNotFound    ErrorType = "not_found"
	ErrTypeGone        ErrorType = "gone"
	ErrTypeUpstream    ErrorType = "upstream_failure"
	ErrTypeNetwork     ErrorType = "network"
	ErrTypeTooLarge    ErrorType = "too_large"
	ErrTypeUnexpected  ErrorType = "unexpected"
)

// FetchError is a classified fetch failure.
type FetchError struct {
	Type       ErrorType
	StatusCode int
	URL        string
	Cause      error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: HTTP %d for %s", e.Type, e.StatusCode, e.URL)
	}
	return fmt.Sprintf("fetch %s: %v for %s", e.Type, e.Cause, e.URL)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// Retryable reports whether another attempt may succeed.
func (e *FetchError) Retryable() bool {
	switch e.Type {
	case ErrTypeRateLimited, ErrTypeUpstream, ErrTypeNetwork:
		return true
	default:
		return false
	}
}

// ClassifyHTTPStatus creates a FetchError from a non-2xx status.
func ClassifyHTTPStatus(statusCode int, url string) *FetchError {
	cause := fmt.Errorf("HTTP %d", statusCode)

	var t ErrorType
	switch {
	case statusCode == http.StatusTooManyRequests:
		t = ErrTypeRateLimited
	case statusCode == http.StatusForbidden:
		t = ErrTypeForbidden
	case statusCode == http.StatusNotFound:
		t = ErrTypeNotFound
	case statusCode == http.StatusGone:
		t = ErrTypeGone
	case statusCode >= http.StatusInternalServerError && statusCode <= 599:
		t = ErrTypeUpstream
	default:
		t = ErrTypeUnexpected
	}

	return &FetchError{Type: t, StatusCode: statusCode, URL: url, Cause: cause}
}

// ClassifyNetworkError wraps a transport-level failure.
func ClassifyNetworkError(cause error, url string) *FetchError {
	return &FetchError{Type: ErrTypeNetwork, URL: url, Cause: cause}
}

// IsNotFound reports whether err is a 404 or 410 FetchError.
func IsNotFound(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && (fe.Type == ErrTypeNotFound || fe.Type == ErrTypeGone)
}
