// Copyright (c) 2025 BVK Chaitanya

// Package catalog resolves TokenCatalogEntry values for the trade and
// batch packages, with a short-lived cache shared across users so a busy
// strategy does not hammer the exchange's catalog endpoint once per trade.
package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bvk/alphavol/exchange"
)

// CacheTTL bounds how long a fetched catalog snapshot is reused across
// callers. Never cached across a strategy's stop/start, since each Resolver
// is owned by one strategy run.
const CacheTTL = 5 * time.Second

// Resolver fetches and caches the token catalog, exposing lookup by symbol.
// One Resolver is shared by every user of a strategy run.
type Resolver struct {
	client exchange.Client

	mu       sync.Mutex
	fetched  time.Time
	entries  map[string]exchange.TokenCatalogEntry
}

func NewResolver(client exchange.Client) *Resolver {
	return &Resolver{client: client}
}

// Entry returns the current TokenCatalogEntry for symbol, refreshing the
// underlying catalog if the cache is stale or empty.
func (r *Resolver) Entry(ctx context.Context, symbol string) (exchange.TokenCatalogEntry, error) {
	entries, err := r.snapshot(ctx)
	if err != nil {
		return exchange.TokenCatalogEntry{}, err
	}
	e, ok := entries[symbol]
	if !ok {
		return exchange.TokenCatalogEntry{}, &exchange.ConfigError{Reason: fmt.Sprintf("symbol %q not found in catalog", symbol)}
	}
	return e, nil
}

func (r *Resolver) snapshot(ctx context.Context) (map[string]exchange.TokenCatalogEntry, error) {
	r.mu.Lock()
	if r.entries != nil && time.Since(r.fetched) < CacheTTL {
		entries := r.entries
		r.mu.Unlock()
		return entries, nil
	}
	r.mu.Unlock()

	list, err := r.client.FetchTokenCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not fetch token catalog: %w", err)
	}

	entries := make(map[string]exchange.TokenCatalogEntry, len(list))
	for _, e := range list {
		if e.MulPoint < 1 {
			e.MulPoint = 1
		}
		entries[e.Symbol] = e
	}

	r.mu.Lock()
	r.entries = entries
	r.fetched = time.Now()
	r.mu.Unlock()
	return entries, nil
}
