package serp

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies upstream SERP API failures. The orchestrator treats
// every kind as recoverable per keyword; the kind only decides retry and
// tracking behavior.
type ErrorKind int

const (
	// KindNetwork covers transport failures: timeouts, refused connections,
	// 5xx responses.
	KindNetwork ErrorKind = iota
	// KindRateLimited covers explicit throttling (HTTP 429 or the API's own
	// rate-limit status codes).
	KindRateLimited
	// KindMalformed covers responses that arrived but could not be decoded.
	KindMalformed
	// KindUnsupportedParams covers task rejections for invalid
	// location/language/device combinations.
	KindUnsupportedParams
)

// String returns a human-readable kind name
func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindRateLimited:
		return "rate_limited"
	case KindMalformed:
		return "malformed"
	case KindUnsupportedParams:
		return "unsupported_params"
	default:
		return "unknown"
	}
}

// UpstreamError is a typed failure from the SERP API.
type UpstreamError struct {
	Kind       ErrorKind
	Engine     string
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("serp %s: %s (%s): %v", e.Engine, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("serp %s: %s (%s)", e.Engine, e.Kind, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a second attempt could plausibly succeed.
// Malformed payloads and rejected parameters will not improve on retry.
func (e *UpstreamError) IsRetryable() bool {
	return e.Kind == KindNetwork || e.Kind == KindRateLimited
}

// ConfigurationError marks invalid input that must be rejected before any
// query is issued. Unlike UpstreamError it is fatal to the whole batch.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s %s", e.Field, e.Reason)
}

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// AsUpstreamError extracts an UpstreamError from an error chain.
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// classifyHTTPStatus maps a non-200 HTTP response to an error kind.
func classifyHTTPStatus(status int) ErrorKind {
	switch {
	case status == 429:
		return KindRateLimited
	case status == 400 || status == 404:
		return KindUnsupportedParams
	case status >= 500:
		return KindNetwork
	default:
		return KindNetwork
	}
}

// classifyTaskStatus maps the API's task-level status codes. 20000 is
// success; 40xxx codes are client-side task problems, 50xxx server-side.
func classifyTaskStatus(code int) ErrorKind {
	switch {
	case code == 40202 || code == 40209 || code == 40210:
		// "visits limit exceeded" family
		return KindRateLimited
	case code >= 40000 && code < 50000:
		return KindUnsupportedParams
	default:
		return KindNetwork
	}
}

// classifyTransportError maps fasthttp/network errors by message content,
// the same way failures were triaged operationally.
func classifyTransportError(err error) ErrorKind {
	if err == nil {
		return KindNetwork
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "too many requests") || strings.Contains(msg, "rate limit"):
		return KindRateLimited
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return KindNetwork
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host"):
		return KindNetwork
	case strings.Contains(msg, "unexpected end") || strings.Contains(msg, "invalid character"):
		return KindMalformed
	default:
		return KindNetwork
	}
}
