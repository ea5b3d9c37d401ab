// Copyright (c) 2025 BVK Chaitanya

// Package tracker bridges the push-based order event stream to the
// pull-based "await order completion" semantics the trade executor needs:
// a wait keyed by order id, fulfilled exactly once by the concurrently
// running stream reader.
package tracker

import (
	"context"
	"sync"

	"github.com/bvk/alphavol/exchange"
)

// Outcome is the result of AwaitCompletion.
type Outcome int

const (
	TimedOut Outcome = iota
	Filled
	NotFilled
)

func (o Outcome) String() string {
	switch o {
	case Filled:
		return "Filled"
	case NotFilled:
		return "NotFilled"
	case TimedOut:
		return "TimedOut"
	default:
		return "Unknown"
	}
}

type entry struct {
	registered bool
	status     string
	signal     chan struct{}
	fired      bool
}

// Tracker maps exchange order ids to their latest observed status, and lets
// callers wait for an order to reach a terminal state. It tolerates updates
// arriving before Register: Observe buffers the most recent update per
// order id, and Register consults that buffer immediately.
type Tracker struct {
	mu      sync.Mutex
	entries map[exchange.OrderID]*entry
}

func New() *Tracker {
	return &Tracker{entries: make(map[exchange.OrderID]*entry)}
}

func isTerminal(status string) bool {
	return exchange.IsTerminal(status)
}

// Register creates the tracking entry for id if one does not already exist.
// Idempotent. If Observe already buffered an update for id, that update's
// status is adopted immediately and, if terminal, the signal is fired.
func (t *Tracker) Register(id exchange.OrderID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok {
		e = &entry{signal: make(chan struct{})}
		t.entries[id] = e
	}
	e.registered = true
	if isTerminal(e.status) && !e.fired {
		e.fired = true
		close(e.signal)
	}
}

// Observe records the latest status for update.OrderID, called from the
// order event stream's sink. If the new status is terminal, the completion
// signal fires exactly once, regardless of whether Register has been called
// yet.
func (t *Tracker) Observe(update exchange.OrderUpdate) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[update.OrderID]
	if !ok {
		e = &entry{signal: make(chan struct{})}
		t.entries[update.OrderID] = e
	}
	if isTerminal(e.status) {
		// Once terminal, no further transitions are recorded.
		return
	}
	e.status = update.Status
	if isTerminal(e.status) && !e.fired {
		e.fired = true
		close(e.signal)
	}
}

// AwaitCompletion blocks until id reaches a terminal status or ctx is done
// (canceled or past its deadline), whichever comes first; a done ctx is
// reported as TimedOut. Multiple waiters on the same id all observe the
// same outcome.
func (t *Tracker) AwaitCompletion(ctx context.Context, id exchange.OrderID) Outcome {
	t.mu.Lock()
	e, ok := t.entries[id]
	if !ok {
		e = &entry{signal: make(chan struct{})}
		t.entries[id] = e
	}
	signal := e.signal
	t.mu.Unlock()

	select {
	case <-signal:
		t.mu.Lock()
		status := e.status
		t.mu.Unlock()
		if status == exchange.StatusFilled {
			return Filled
		}
		return NotFilled
	case <-ctx.Done():
		return TimedOut
	}
}

// Forget removes the tracking entry for id. Optional cleanup; safe to call
// even if id was never registered.
func (t *Tracker) Forget(id exchange.OrderID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
}
