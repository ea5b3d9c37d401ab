// Copyright (c) 2025 BVK Chaitanya

// Package stopper implements the one-way cancellation latch that every
// suspension point in the orchestrator consults. It wraps
// context.WithCancelCause into a small latch with two scopes, per-user and
// per-strategy, so that a checkpoint can read the logical OR of both
// without threading two contexts around.
package stopper

import (
	"context"
)

// Cause enumerates why a Latch was tripped.
type Cause int

const (
	// NotStopped is the zero value; the latch has not been set.
	NotStopped Cause = iota
	Canceled
	AuthFailed
	StreamFailed
	ListenKeyFailed
	ConfigError
	Unexpected
)

func (c Cause) String() string {
	switch c {
	case NotStopped:
		return "NotStopped"
	case Canceled:
		return "Canceled"
	case AuthFailed:
		return "AuthFailed"
	case StreamFailed:
		return "StreamFailed"
	case ListenKeyFailed:
		return "ListenKeyFailed"
	case ConfigError:
		return "ConfigError"
	case Unexpected:
		return "Unexpected"
	default:
		return "Unknown"
	}
}

// Latch is a one-way cancellation flag. Set is idempotent: only the first
// call's cause and message are retained. A Latch is safe for concurrent use.
type Latch struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
}

// stopError carries the structured Cause alongside an operator message, so
// that context.Cause(latch.Context()) can be inspected with errors.As.
type stopError struct {
	cause   Cause
	message string
}

func (e *stopError) Error() string { return e.message }

// New returns a Latch that has not yet been tripped.
func New() *Latch {
	ctx, cancel := context.WithCancelCause(context.Background())
	return &Latch{ctx: ctx, cancel: cancel}
}

// Context returns a context.Context that is canceled exactly when the latch
// is set. Callers select on Context().Done() at every suspension point.
func (l *Latch) Context() context.Context {
	return l.ctx
}

// Set trips the latch with cause and message. Safe to call more than once;
// only the first call has any effect.
func (l *Latch) Set(cause Cause, message string) {
	l.cancel(&stopError{cause: cause, message: message})
}

// Stopped reports whether the latch has been tripped.
func (l *Latch) Stopped() bool {
	return l.ctx.Err() != nil
}

// Cause returns the Cause the latch was tripped with, or NotStopped if it
// has not been tripped yet.
func (l *Latch) Cause() Cause {
	err := context.Cause(l.ctx)
	if err == nil {
		return NotStopped
	}
	var se *stopError
	if as, ok := err.(*stopError); ok {
		se = as
		return se.cause
	}
	return Unexpected
}

// Message returns the operator-facing message the latch was tripped with,
// or the empty string if not yet tripped.
func (l *Latch) Message() string {
	err := context.Cause(l.ctx)
	if err == nil {
		return ""
	}
	if se, ok := err.(*stopError); ok {
		return se.message
	}
	return err.Error()
}

// Group is the logical OR of a per-strategy latch and a per-user latch: any
// checkpoint that reads Group.Context() observes cancellation as soon as
// either scope trips.
type Group struct {
	strategy *Latch
	user     *Latch

	ctx    context.Context
	cancel context.CancelCauseFunc
}

// NewGroup combines a per-strategy and a per-user Latch into one checkpoint
// context. The returned Group's context is canceled as soon as either input
// latch is canceled.
func NewGroup(strategy, user *Latch) *Group {
	ctx, cancel := context.WithCancelCause(context.Background())
	g := &Group{strategy: strategy, user: user, ctx: ctx, cancel: cancel}
	go g.watch()
	return g
}

func (g *Group) watch() {
	select {
	case <-g.strategy.Context().Done():
		g.cancel(context.Cause(g.strategy.Context()))
	case <-g.user.Context().Done():
		g.cancel(context.Cause(g.user.Context()))
	case <-g.ctx.Done():
	}
}

// Context returns a context canceled when either the strategy-scope or the
// user-scope latch trips.
func (g *Group) Context() context.Context {
	return g.ctx
}

// Close stops the Group's background watcher goroutine. Safe to call after
// either input latch has already tripped.
func (g *Group) Close() {
	g.cancel(nil)
}

// Stopped reports whether either scope has tripped.
func (g *Group) Stopped() bool {
	return g.strategy.Stopped() || g.user.Stopped()
}

// Cause returns the tripped cause, preferring the user scope since a
// per-user cause (AuthFailed, StreamFailed, ...) is more specific than a
// blanket strategy-level Canceled.
func (g *Group) Cause() Cause {
	if g.user.Stopped() {
		return g.user.Cause()
	}
	return g.strategy.Cause()
}

// Message returns the operator-facing message for whichever scope tripped.
func (g *Group) Message() string {
	if g.user.Stopped() {
		return g.user.Message()
	}
	return g.strategy.Message()
}
