// Copyright (c) 2025 BVK Chaitanya

package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/bvk/alphavol/config"
	"github.com/bvk/alphavol/creds"
	"github.com/bvk/alphavol/exchange"
	"github.com/bvk/alphavol/status"

	"github.com/shopspring/decimal"
)

func twoStrategyConfigs() []config.StrategyConfig {
	mk := func(id string, enabled bool) config.StrategyConfig {
		return config.StrategyConfig{
			ID:                id,
			Enabled:           enabled,
			TargetTokenSymbol: "ALPHAUSDT",
			TargetVolume:      decimal.RequireFromString("100000"),
			UserIDs:           []creds.UserID{1},
			UserParams: map[creds.UserID]config.UserParams{
				1: {
					SingleTradeAmountUSDT: decimal.RequireFromString("30"),
					TradeIntervalSeconds:  5,
					OrderTimeoutSeconds:   1,
				},
			},
		}
	}
	return []config.StrategyConfig{mk("enabled-1", true), mk("disabled-1", false)}
}

func TestManagerStartAllSkipsDisabled(t *testing.T) {
	fc := newFakeClient("ALPHAUSDT", decimal.Zero, decimal.RequireFromString("1"))
	store := &fakeCredStore{creds: map[creds.UserID]exchange.Credentials{1: {}}}
	statusStore := status.NewStore()

	m := NewManager(fc, store, func() exchange.OrderEventStream { return newFakeStream(fc.events) }, nil, statusStore)
	m.LoadConfigs(twoStrategyConfigs())
	m.StartAll(context.Background())

	time.Sleep(20 * time.Millisecond)
	if !m.IsRunning("enabled-1") {
		t.Fatalf("want enabled-1 running")
	}
	if m.IsRunning("disabled-1") {
		t.Fatalf("want disabled-1 not running")
	}

	m.StopAll()
	if m.IsRunning("enabled-1") {
		t.Fatalf("want enabled-1 stopped after StopAll")
	}
}

func TestManagerStartUnknownAndAlreadyRunning(t *testing.T) {
	fc := newFakeClient("ALPHAUSDT", decimal.Zero, decimal.RequireFromString("1"))
	store := &fakeCredStore{creds: map[creds.UserID]exchange.Credentials{1: {}}}
	statusStore := status.NewStore()

	m := NewManager(fc, store, func() exchange.OrderEventStream { return newFakeStream(fc.events) }, nil, statusStore)
	m.LoadConfigs(twoStrategyConfigs())

	if err := m.Start(context.Background(), "missing"); err == nil {
		t.Fatalf("want error starting unknown strategy")
	}
	if err := m.Start(context.Background(), "disabled-1"); err == nil {
		t.Fatalf("want error starting disabled strategy")
	}

	if err := m.Start(context.Background(), "enabled-1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := m.Start(context.Background(), "enabled-1"); err == nil {
		t.Fatalf("want error starting an already-running strategy")
	}
	m.StopAll()
}

func TestManagerStopUser(t *testing.T) {
	fc := newFakeClient("ALPHAUSDT", decimal.Zero, decimal.RequireFromString("1"))
	store := &fakeCredStore{creds: map[creds.UserID]exchange.Credentials{1: {}}}
	statusStore := status.NewStore()

	m := NewManager(fc, store, func() exchange.OrderEventStream { return newFakeStream(fc.events) }, nil, statusStore)
	m.LoadConfigs(twoStrategyConfigs())
	if err := m.Start(context.Background(), "enabled-1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if err := m.StopUser("enabled-1", 1); err != nil {
		t.Fatalf("StopUser failed: %v", err)
	}
	if err := m.StopUser("enabled-1", 2); err == nil {
		t.Fatalf("want error stopping an inactive user")
	}
	m.StopAll()
}
