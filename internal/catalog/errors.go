package catalog

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned by lookups that find nothing.
var ErrNotFound = errors.New("catalog entity not found")

// APIError is a non-2xx response from the catalog API.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("catalog API %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed if repeated.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// RateLimited reports a 429 response.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// ConflictError reports that the entity already existed. ID is the
// existing identity, or 0 for associations that have none.
type ConflictError struct {
	Entity string
	ID     int64
	Name   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q already exists with id %d", e.Entity, e.Name, e.ID)
}

// AsConflict returns the ConflictError in err's chain.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

func isStatus(err error, codes ...int) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, c := range codes {
		if apiErr.StatusCode == c {
			return true
		}
	}
	return false
}
