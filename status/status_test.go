// Copyright (c) 2025 BVK Chaitanya

package status

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestStoreSetGet(t *testing.T) {
	s := NewStore()
	if _, ok := s.Get("s1", 1); ok {
		t.Fatalf("want no record before Set")
	}

	now := time.Unix(1700000000, 0)
	s.Set("s1", 1, Running, decimal.NewFromInt(10), "", now)

	r, ok := s.Get("s1", 1)
	if !ok {
		t.Fatalf("want record after Set")
	}
	if r.State != Running || !r.LastVolume.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected record: %+v", r)
	}

	s.Set("s1", 1, StoppedSuccess, decimal.NewFromInt(60), "", now.Add(time.Minute))
	r2, _ := s.Get("s1", 1)
	if r2.State != StoppedSuccess {
		t.Fatalf("want overwritten state, got %v", r2.State)
	}
}

func TestStoreSubscribeObservesChanges(t *testing.T) {
	s := NewStore()
	defer s.Close()

	receiver, err := s.Subscribe(0, false)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer receiver.Close()

	now := time.Now()
	s.Set("s1", 1, StoppedAuthFailed, decimal.Zero, "session invalid", now)

	r, err := receiver.Receive()
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if r.StrategyID != "s1" || r.UserID != 1 || r.State != StoppedAuthFailed {
		t.Fatalf("unexpected change record: %+v", r)
	}
}

func TestStoreListStrategyAndList(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.Set("s1", 1, Running, decimal.Zero, "", now)
	s.Set("s1", 2, FilteredSatisfied, decimal.Zero, "", now)
	s.Set("s2", 1, StoppedAuthFailed, decimal.Zero, "auth", now)

	if got := s.ListStrategy("s1"); len(got) != 2 {
		t.Fatalf("want 2 records for s1, got %d", len(got))
	}
	if got := s.ListStrategy("missing"); got != nil {
		t.Fatalf("want nil for unknown strategy, got %v", got)
	}
	if got := s.List(); len(got) != 3 {
		t.Fatalf("want 3 total records, got %d", len(got))
	}
}
