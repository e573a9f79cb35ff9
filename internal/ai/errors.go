// README: Provider error taxonomy; retry eligibility derives from the error class.
package ai

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoModelAvailable means every candidate in the preference list failed its
// availability probe. Retrying is futile until availability changes.
var ErrNoModelAvailable = errors.New("no ai model available")

// ErrNoAdapter means the catalog references a family with no registered adapter.
var ErrNoAdapter = errors.New("no adapter registered for model family")

// TimeoutError marks a generation call that exceeded the provider timeout.
type TimeoutError struct {
	Family  Family
	ModelID string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: model %s timed out", e.Family, e.ModelID)
}

// HTTPError marks a non-2xx provider response.
type HTTPError struct {
	Family     Family
	ModelID    string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: model %s returned status %d", e.Family, e.ModelID, e.StatusCode)
}

// ParseError marks a provider response whose envelope did not have the
// expected shape (missing field, empty array, wrong type).
type ParseError struct {
	Family  Family
	ModelID string
	Reason  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: model %s response parse failed: %s", e.Family, e.ModelID, e.Reason)
}

// Retryable reports whether an attempt failing with err is worth repeating
// with the same model. Timeouts and 5xx/network failures are transient; parse
// errors and 4xx responses indicate the request or model is the problem and
// need a different model or a fixed request, not a blind retry.
func Retryable(err error) bool {
	var te *TimeoutError
	if errors.As(err, &te) {
		return true
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode >= 500
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return false
	}
	if errors.Is(err, ErrNoModelAvailable) || errors.Is(err, ErrNoAdapter) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// Unclassified transport errors (connection reset, DNS) default to retryable.
	return true
}
