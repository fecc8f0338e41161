// Package llm adapts hosted language models to the two jobs the migrator
// needs from them: classifying URLs and extracting structured records from
// HTML. Both jobs share one retry contract, implemented by Invoker.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Jobs, used for metrics and logs.
const (
	JobClassify = "classify"
	JobExtract  = "extract"
)

// Request is a single structured-output call.
type Request struct {
	Job         string
	Instruction string
	// Schema is a JSON schema the response object must follow.
	Schema  map[string]any
	Payload string
}

// Service is a model provider. Generate returns the raw response text.
// Provider failures are returned as *ServiceError.
type Service interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
}

// ServiceError is a failed provider call.
type ServiceError struct {
	Provider    string
	StatusCode  int
	RateLimited bool
	// Retryable covers transient failures other than rate limiting.
	Retryable bool
	Err       error
}

func (e *ServiceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Transient reports whether the call may succeed if repeated.
func (e *ServiceError) Transient() bool {
	return e.RateLimited || e.Retryable
}

// NewStatusError classifies an HTTP status from a provider.
func NewStatusError(provider string, status int, err error) *ServiceError {
	return &ServiceError{
		Provider:    provider,
		StatusCode:  status,
		RateLimited: status == http.StatusTooManyRequests || status == statusOverloaded,
		Retryable:   status == http.StatusRequestTimeout || status >= http.StatusInternalServerError,
		Err:         err,
	}
}

// statusOverloaded is returned by some providers when capacity is exhausted.
const statusOverloaded = 529

// IsRateLimited reports whether err is a rate-limited ServiceError.
func IsRateLimited(err error) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.RateLimited
}

// SchemaValidationError is a response that did not parse or did not match
// the requested shape.
type SchemaValidationError struct {
	Reason string
	Raw    string
}

func (e *SchemaValidationError) Error() string {
	return "response failed validation: " + e.Reason
}

// ErrEmptyResponse is returned when a provider answers with no text.
var ErrEmptyResponse = errors.New("empty response")
