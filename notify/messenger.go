// Copyright (c) 2025 BVK Chaitanya

// Package notify implements the operator-facing notification channel used
// to surface per-user terminal causes as one-line, non-sensitive messages.
package notify

import (
	"context"
	"time"
)

// Messenger is the narrow interface the orchestrator depends on.
// Implementations must never be passed credentials or cookies -- only the
// rendered message string.
type Messenger interface {
	SendMessage(ctx context.Context, at time.Time, text string)
}

// Multi fans a notification out to every configured Messenger. Individual
// send failures are logged by each Messenger and otherwise ignored.
type Multi []Messenger

func (m Multi) SendMessage(ctx context.Context, at time.Time, text string) {
	for _, target := range m {
		target.SendMessage(ctx, at, text)
	}
}

// AuthRefreshPhrase is embedded verbatim in every AuthFailed notification
// so operators can grep/alert on one fixed string.
const AuthRefreshPhrase = "refresh the user's credentials"
