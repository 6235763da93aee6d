// Package apierr classifies model service failures into domain errors.
//
// Adapters call it so the core can tell a transient failure (connection
// refused, 5xx, 429, timeout) from a configuration problem (bad key,
// unknown model) without knowing the transport.
package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

// maxBodyInError bounds how much of a response body is quoted in errors.
const maxBodyInError = 512

// FromStatus converts a non-2xx HTTP status into an error.
// 429 becomes a *domain.RateLimitError, 408 and 5xx wrap
// domain.ErrServiceTransient, 401/403/404 wrap domain.ErrInvalidConfig.
func FromStatus(provider string, status int, header http.Header, body []byte) error {
	msg := fmt.Errorf("%s: API returned status %d: %s", provider, status, truncate(body))

	switch {
	case status == http.StatusTooManyRequests:
		return &domain.RateLimitError{RetryAfter: RetryAfter(header), Err: msg}
	case status == http.StatusRequestTimeout || status >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %w", domain.ErrServiceTransient, msg)
	case status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusNotFound:
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, msg)
	default:
		return msg
	}
}

// FromTransport wraps an error from sending a request. Cancellation passes
// through untouched; anything else is a transient connection failure.
func FromTransport(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%s: send request: %w: %w", provider, domain.ErrServiceTransient, err)
}

// RetryAfter parses a Retry-After header given in seconds or as an HTTP date.
// It returns 0 when the header is absent or unparseable.
func RetryAfter(header http.Header) time.Duration {
	if header == nil {
		return 0
	}
	v := strings.TrimSpace(header.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxBodyInError {
		return s[:maxBodyInError] + "..."
	}
	return s
}
