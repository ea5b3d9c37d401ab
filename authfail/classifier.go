// Copyright (c) 2025 BVK Chaitanya

// Package authfail classifies exchange error payloads so that credential
// revocation is handled uniformly regardless of which of the exchange's
// many ways of saying "log back in" was used.
package authfail

import "strings"

// Classification is the outcome of classifying one exchange error payload.
type Classification int

const (
	Transient Classification = iota
	Rejected
	AuthenticationFailed
)

func (c Classification) String() string {
	switch c {
	case Rejected:
		return "Rejected"
	case AuthenticationFailed:
		return "AuthenticationFailed"
	default:
		return "Transient"
	}
}

// DefaultSessionInvalidationCodes lists exchange error codes that
// unambiguously mean "the session/credentials are no longer valid". Kept as
// a variable, not a const block, so deployments can extend it without a
// code change.
var DefaultSessionInvalidationCodes = []string{
	"100001", // session/signature invalid
	"100003", // login required
	"-1021",  // timestamp outside recv window, frequently paired with a stale session
}

// DefaultMessagePatterns lists case-insensitive substrings that indicate
// supplemental authentication or session expiration was demanded.
var DefaultMessagePatterns = []string{
	"supplemental authentication",
	"verification required",
	"session has expired",
	"session invalid",
	"please login again",
	"please log in again",
	"re-authenticate",
}

// Classifier classifies exchange error payloads.
type Classifier struct {
	codes    map[string]struct{}
	patterns []string
}

// New builds a Classifier from the given code list and message-substring
// patterns. A nil/empty argument falls back to the corresponding Default*
// list.
func New(codes, patterns []string) *Classifier {
	if len(codes) == 0 {
		codes = DefaultSessionInvalidationCodes
	}
	if len(patterns) == 0 {
		patterns = DefaultMessagePatterns
	}
	cm := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		cm[c] = struct{}{}
	}
	lowered := make([]string, len(patterns))
	for i, p := range patterns {
		lowered[i] = strings.ToLower(p)
	}
	return &Classifier{codes: cm, patterns: lowered}
}

// Classify inspects an exchange error code and message and returns the
// classification. structurallyRejected should be true when the caller
// already knows the failure was an order-level validation error (so a
// non-matching message is reported as Rejected rather than Transient).
func (c *Classifier) Classify(code, message string, structurallyRejected bool) Classification {
	if _, ok := c.codes[code]; ok {
		return AuthenticationFailed
	}
	lower := strings.ToLower(message)
	for _, p := range c.patterns {
		if strings.Contains(lower, p) {
			return AuthenticationFailed
		}
	}
	if structurallyRejected {
		return Rejected
	}
	return Transient
}
