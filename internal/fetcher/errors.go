package fetcher

import (
	"errors"
	"fmt"
)

// Kind tags an upstream failure for retry classification.
type Kind int

const (
	// KindTransport covers network-level failures: timeouts, resets, DNS.
	KindTransport Kind = iota
	// KindRateLimited is an upstream 429.
	KindRateLimited
	// KindServer is an upstream 5xx.
	KindServer
	// KindClient is any other 4xx. Not retryable.
	KindClient
	// KindMalformed is a response body that could not be decoded.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRateLimited:
		return "rate_limited"
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// UpstreamError carries the failure kind so the retry executor can decide
// whether another attempt is worthwhile. Callers never branch on kinds
// themselves.
type UpstreamError struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s error (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream %s error: %v", e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is worth another attempt.
func (e *UpstreamError) Retryable() bool {
	return e.Kind != KindClient
}

// ExhaustedError is returned once every retry attempt has failed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d attempts failed: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// ErrEmptyResult indicates a well-formed response with no matching record.
var ErrEmptyResult = errors.New("fetcher: empty result")

func statusError(code int, err error) *UpstreamError {
	switch {
	case code == 429:
		return &UpstreamError{Kind: KindRateLimited, StatusCode: code, Err: err}
	case code >= 500 && code < 600:
		return &UpstreamError{Kind: KindServer, StatusCode: code, Err: err}
	default:
		return &UpstreamError{Kind: KindClient, StatusCode: code, Err: err}
	}
}
