// Copyright (c) 2025 BVK Chaitanya

// Package creds declares the credential-store contract the orchestrator
// depends on without implementing it. The actual persistent store (file,
// database, secrets manager) lives outside this module.
package creds

import (
	"context"
	"fmt"

	"github.com/bvk/alphavol/exchange"
)

// UserID identifies an enrolled user within a strategy's user_ids set.
type UserID int64

// Store resolves a UserID to the exchange.Credentials needed to act on that
// user's behalf. Implementations never log the returned headers/cookies.
type Store interface {
	GetCredentials(ctx context.Context, id UserID) (exchange.Credentials, error)

	// Put updates the stored credentials for id, used by the operator-facing
	// credential-refresh command surface after an AuthFailed termination.
	Put(ctx context.Context, id UserID, creds exchange.Credentials) error
}

// ErrNotFound is returned by Store.GetCredentials when id has no stored
// credentials.
var ErrNotFound = fmt.Errorf("credentials not found")
