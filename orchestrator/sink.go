// Copyright (c) 2025 BVK Chaitanya

package orchestrator

import (
	"github.com/bvk/alphavol/exchange"
	"github.com/bvk/alphavol/tracker"
)

// eventSink bridges one user's order event stream to its tracker and to
// the per-user stop latch: a GaveUp connection event is promoted to a
// StreamFailed stop cause, terminating that user.
type eventSink struct {
	tracker  *tracker.Tracker
	onGaveUp func(reason error)
}

func (s *eventSink) OnOrderUpdate(u exchange.OrderUpdate) {
	s.tracker.Observe(u)
}

func (s *eventSink) OnConnState(e exchange.ConnEvent) {
	if e.State == exchange.GaveUp && s.onGaveUp != nil {
		s.onGaveUp(e.Reason)
	}
}
