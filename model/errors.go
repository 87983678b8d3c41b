package model

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind is the closed classification of provider failures.
type Kind string

const (
	KindTimeout           Kind = "timeout"
	KindRateLimited       Kind = "rate_limited"
	KindMalformedResponse Kind = "malformed_response"
	KindAuthFailure       Kind = "auth_failure"
	KindUnavailable       Kind = "unavailable"
)

// Retryable reports whether a second attempt against the same route may help.
// Auth failures never recover by retrying.
func (k Kind) Retryable() bool { return k != KindAuthFailure }

// Error is a classified provider failure.
type Error struct {
	Kind     Kind
	Provider string
	Err      error
}

// NewError wraps err with a kind and provider name.
func NewError(kind Kind, provider string, err error) *Error {
	return &Error{Kind: kind, Provider: provider, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindFromStatus maps an HTTP status code returned by a provider API.
func KindFromStatus(code int) Kind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuthFailure
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return KindTimeout
	case code >= 500:
		return KindUnavailable
	default:
		return KindMalformedResponse
	}
}

// Classify returns the Kind of err. Already classified errors keep their kind;
// deadline and network timeouts become KindTimeout and everything else is
// treated as KindUnavailable.
func Classify(err error) Kind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindUnavailable
}

// Wrap classifies err on behalf of provider. Nil stays nil and already
// classified errors are returned unchanged.
func Wrap(provider string, err error) error {
	if err == nil {
		return nil
	}
	var me *Error
	if errors.As(err, &me) {
		return err
	}
	return NewError(Classify(err), provider, err)
}
