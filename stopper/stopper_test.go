// Copyright (c) 2025 BVK Chaitanya

package stopper

import (
	"testing"
	"time"
)

func TestLatchIdempotent(t *testing.T) {
	l := New()
	if l.Stopped() {
		t.Fatalf("new latch should not be stopped")
	}
	l.Set(Canceled, "stop requested")
	l.Set(AuthFailed, "should be ignored")

	if !l.Stopped() {
		t.Fatalf("latch should be stopped after Set")
	}
	if l.Cause() != Canceled {
		t.Errorf("want first Set to win (Canceled), got %v", l.Cause())
	}
	if l.Message() != "stop requested" {
		t.Errorf("want first message to win, got %q", l.Message())
	}
}

func TestLatchUnblocksWaiters(t *testing.T) {
	l := New()
	done := make(chan struct{})
	go func() {
		<-l.Context().Done()
		close(done)
	}()

	l.Set(Canceled, "stop")
	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("waiter did not unblock within 100ms")
	}
}

func TestGroupUnblocksOnEitherScope(t *testing.T) {
	strategy := New()
	user := New()
	g := NewGroup(strategy, user)
	defer g.Close()

	if g.Stopped() {
		t.Fatalf("group should not be stopped initially")
	}

	user.Set(AuthFailed, "refresh the user's credentials")

	select {
	case <-g.Context().Done():
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("group did not unblock within 100ms of user scope tripping")
	}
	if g.Cause() != AuthFailed {
		t.Errorf("want AuthFailed, got %v", g.Cause())
	}
}

func TestGroupPrefersUserCause(t *testing.T) {
	strategy := New()
	user := New()
	g := NewGroup(strategy, user)
	defer g.Close()

	strategy.Set(Canceled, "strategy stop")
	user.Set(StreamFailed, "stream gave up")

	time.Sleep(10 * time.Millisecond)
	if g.Cause() != StreamFailed {
		t.Errorf("want user-scope cause to take precedence, got %v", g.Cause())
	}
}
