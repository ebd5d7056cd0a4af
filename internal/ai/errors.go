package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrUnavailable means the provider is not configured (no API key) and
// cannot be attempted at all.
var ErrUnavailable = errors.New("ai provider unavailable")

// FailureKind classifies a provider failure for failover and retry decisions.
type FailureKind string

const (
	FailureAuth      FailureKind = "auth"
	FailureRateLimit FailureKind = "rate_limit"
	FailureTimeout   FailureKind = "timeout"
	FailureNetwork   FailureKind = "network"
	FailureServer    FailureKind = "server"
	FailureBadInput  FailureKind = "bad_input"
	FailureOther     FailureKind = "other"
)

// ProviderError carries the provider name, failure classification and the
// last underlying error, enough for the caller to decide whether a whole
// retry is worth it.
type ProviderError struct {
	Provider string
	Kind     FailureKind
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Provider, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient: timeouts, network
// faults, rate limits and 5xx answers are worth another attempt, auth and
// malformed-input failures are not.
func (e *ProviderError) Retryable() bool {
	switch e.Kind {
	case FailureTimeout, FailureNetwork, FailureRateLimit, FailureServer:
		return true
	default:
		return false
	}
}

func classifyStatus(status int) FailureKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return FailureAuth
	case status == http.StatusTooManyRequests:
		return FailureRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return FailureTimeout
	case status >= 500:
		return FailureServer
	case status >= 400:
		return FailureBadInput
	default:
		return FailureOther
	}
}

func statusError(provider string, status int, body string) error {
	return &ProviderError{
		Provider: provider,
		Kind:     classifyStatus(status),
		Status:   status,
		Err:      fmt.Errorf("http status %d: %s", status, strings.TrimSpace(body)),
	}
}

func transportError(provider string, err error) error {
	kind := FailureNetwork
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = FailureTimeout
	case errors.Is(err, context.DeadlineExceeded):
		kind = FailureTimeout
	}
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

// IsRetryable reports whether err looks transient. Errors without a
// classification are treated as terminal.
func IsRetryable(err error) bool {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Retryable()
	}
	return false
}
