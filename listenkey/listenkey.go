// Copyright (c) 2025 BVK Chaitanya

// Package listenkey obtains, periodically refreshes, and releases the
// token that authorizes one user's order-event stream subscription.
package listenkey

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bvk/alphavol/ctxutil"
	"github.com/bvk/alphavol/exchange"
)

const (
	// RefreshInterval is how often the background loop checks whether the
	// key needs renewal.
	RefreshInterval = 30 * time.Minute

	// EarlyRefreshMargin renews the key this long before its expected
	// expiry rather than racing the deadline.
	EarlyRefreshMargin = 5 * time.Minute

	// AssumedValidity is the minimum validity window the exchange declares
	// for a freshly obtained or refreshed key.
	AssumedValidity = 55 * time.Minute

	maxRefreshAttempts  = 3
	refreshRetryBackoff = 30 * time.Second
	failureWindow       = 5 * time.Minute
)

// State is the lifecycle's current observable state.
type State int

const (
	NotStarted State = iota
	Active
	Failed
)

func (s State) String() string {
	switch s {
	case Active:
		return "Active"
	case Failed:
		return "Failed"
	default:
		return "NotStarted"
	}
}

// Lifecycle keeps a valid listen key available to the order event stream
// for the duration of one user's run.
type Lifecycle struct {
	client exchange.Client
	creds  exchange.Credentials

	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu         sync.Mutex
	key        string
	expiresAt  time.Time
	state      State
	failureMsg string

	failedCh chan struct{}
	once     sync.Once
}

func New(client exchange.Client, creds exchange.Credentials) *Lifecycle {
	return &Lifecycle{client: client, creds: creds, failedCh: make(chan struct{})}
}

// Start obtains an initial listen key and begins the background refresh
// ticker. The ticker stops when ctx is canceled or Stop is called.
func (l *Lifecycle) Start(ctx context.Context) error {
	key, err := l.client.ObtainListenKey(ctx, l.creds)
	if err != nil {
		return fmt.Errorf("could not obtain initial listen key: %w", err)
	}

	l.mu.Lock()
	l.key = key
	l.expiresAt = time.Now().Add(AssumedValidity)
	l.state = Active
	l.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel

	l.wg.Add(1)
	go l.refreshLoop(runCtx)
	return nil
}

// Key returns the current listen key. Safe for concurrent use.
func (l *Lifecycle) Key() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.key
}

// State reports the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// FailedMessage returns the operator-facing message recorded when the
// lifecycle transitioned to Failed, or "" if it has not failed.
func (l *Lifecycle) FailedMessage() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failureMsg
}

// Done returns a channel that is closed when the lifecycle transitions to
// Failed, so the caller can treat it as equivalent to a stream GaveUp
// event.
func (l *Lifecycle) Done() <-chan struct{} {
	return l.failedCh
}

func (l *Lifecycle) refreshLoop(ctx context.Context) {
	defer l.wg.Done()

	for {
		ctxutil.Sleep(ctx, RefreshInterval)
		if ctx.Err() != nil {
			return
		}

		l.mu.Lock()
		needsRefresh := time.Until(l.expiresAt) <= RefreshInterval+EarlyRefreshMargin
		l.mu.Unlock()
		if !needsRefresh {
			continue
		}

		if err := l.refresh(ctx); err != nil {
			l.fail(fmt.Sprintf("listen key refresh failed after %d attempts: %v", maxRefreshAttempts, err))
			return
		}
	}
}

func (l *Lifecycle) refresh(ctx context.Context) error {
	deadline := time.Now().Add(failureWindow)
	var lastErr error
	for attempt := 1; attempt <= maxRefreshAttempts && time.Now().Before(deadline); attempt++ {
		l.mu.Lock()
		key := l.key
		l.mu.Unlock()

		if err := l.client.KeepAliveListenKey(ctx, l.creds, key); err != nil {
			lastErr = err
			slog.WarnContext(ctx, "listen key refresh attempt failed (will retry)", "attempt", attempt, "err", err)
			ctxutil.Sleep(ctx, refreshRetryBackoff)
			if ctx.Err() != nil {
				return context.Cause(ctx)
			}
			continue
		}

		l.mu.Lock()
		l.expiresAt = time.Now().Add(AssumedValidity)
		l.mu.Unlock()
		return nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("refresh window exceeded")
	}
	return lastErr
}

func (l *Lifecycle) fail(message string) {
	l.mu.Lock()
	l.state = Failed
	l.failureMsg = message
	l.mu.Unlock()
	l.once.Do(func() { close(l.failedCh) })
	slog.Error("listen key lifecycle failed", "message", message)
}

// Stop cancels the refresh schedule and issues CloseListenKey, ignoring a
// not-found response. Idempotent.
func (l *Lifecycle) Stop(ctx context.Context) {
	if l.cancel != nil {
		l.cancel()
	}
	l.wg.Wait()

	l.mu.Lock()
	key := l.key
	l.mu.Unlock()
	if key == "" {
		return
	}

	if err := l.client.CloseListenKey(ctx, l.creds, key); err != nil {
		slog.WarnContext(ctx, "could not close listen key (ignored, best-effort)", "err", err)
	}
}
