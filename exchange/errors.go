// Copyright (c) 2025 BVK Chaitanya

package exchange

import "fmt"

// Taxonomy of exchange-facing failures. Callers distinguish them with
// errors.As, not string matching.

// TransportError wraps a network/transport-level failure (dial, timeout,
// non-2xx with no parseable envelope). Always retryable at the caller's
// discretion.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError wraps a malformed/unexpected response body.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string { return fmt.Sprintf("%s: protocol error: %v", e.Op, e.Err) }
func (e *ProtocolError) Unwrap() error { return e.Err }

// RejectedError is returned when the exchange validated and rejected an
// order-level request (precision, size, etc).
type RejectedError struct {
	Op     string
	Reason string
}

func (e *RejectedError) Error() string { return fmt.Sprintf("%s: rejected: %s", e.Op, e.Reason) }

// AuthenticationFailedError indicates the credential-revocation pattern was
// matched in an exchange response. Terminal for the affected user.
type AuthenticationFailedError struct {
	Op      string
	Message string
}

func (e *AuthenticationFailedError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %s", e.Op, e.Message)
}

// ConfigError indicates a missing symbol or other parameter discovered only
// at runtime. Terminal for the affected user.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return fmt.Sprintf("config error: %s", e.Reason) }
