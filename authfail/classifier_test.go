// Copyright (c) 2025 BVK Chaitanya

package authfail

import "testing"

func TestClassify(t *testing.T) {
	c := New(nil, nil)

	tests := []struct {
		name    string
		code    string
		message string
		want    Classification
	}{
		{"known code", "100001", "anything", AuthenticationFailed},
		{"message pattern case-insensitive", "", "Your Session Has Expired, please login", AuthenticationFailed},
		{"supplemental auth phrase", "0", "supplemental authentication is required for this action", AuthenticationFailed},
		{"unrelated error", "500", "internal server error", Transient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.code, tt.message, false); got != tt.want {
				t.Fatalf("Classify(%q, %q) = %v, want %v", tt.code, tt.message, got, tt.want)
			}
		})
	}
}

func TestClassifyRejectedFallback(t *testing.T) {
	c := New(nil, nil)
	if got := c.Classify("20001", "quantity precision exceeds limit", true); got != Rejected {
		t.Fatalf("got %v, want Rejected", got)
	}
}
