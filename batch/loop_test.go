// Copyright (c) 2025 BVK Chaitanya

package batch

import (
	"context"
	"testing"
	"time"

	"github.com/bvk/alphavol/catalog"
	"github.com/bvk/alphavol/config"
	"github.com/bvk/alphavol/creds"
	"github.com/bvk/alphavol/exchange"
	"github.com/bvk/alphavol/stopper"
	"github.com/bvk/alphavol/tracker"
	"github.com/bvk/alphavol/trade"

	"github.com/shopspring/decimal"
)

// fakeClient reports volume as FetchUserVolume; PlaceOTOOrder only hands out
// order ids, and the tests add tradeBump to volume as they fill each order,
// modeling an exchange whose ledger follows completed trades.
type fakeClient struct {
	exchange.Client
	entries   []exchange.TokenCatalogEntry
	volume    decimal.Decimal
	tradeBump decimal.Decimal
	symbol    string
	nextID    int
	placed    int
}

func (f *fakeClient) FetchTokenCatalog(ctx context.Context) ([]exchange.TokenCatalogEntry, error) {
	return f.entries, nil
}

func (f *fakeClient) FetchUserVolume(ctx context.Context, creds exchange.Credentials) (exchange.UserVolumeSnapshot, error) {
	return exchange.UserVolumeSnapshot{f.symbol: f.volume}, nil
}

func (f *fakeClient) PlaceOTOOrder(ctx context.Context, creds exchange.Credentials, clientOrderID, symbol string, quantity, buyPrice, sellPrice decimal.Decimal) (*exchange.OTOOrderPlacement, error) {
	f.nextID++
	f.placed++
	id := exchange.OrderID(decimal.NewFromInt(int64(f.nextID)).String())
	return &exchange.OTOOrderPlacement{WorkingOrderID: id + "-buy", PendingOrderID: id + "-sell"}, nil
}

func TestLoopScenarioAColdStartMulPointOne(t *testing.T) {
	fc := &fakeClient{
		entries:   []exchange.TokenCatalogEntry{{Symbol: "ALPHAUSDT", LastPrice: decimal.RequireFromString("1.00"), MulPoint: 1}},
		symbol:    "ALPHAUSDT",
		tradeBump: decimal.RequireFromString("30"),
	}
	tr := tracker.New()
	sc := config.StrategyConfig{TargetTokenSymbol: "ALPHAUSDT", TargetVolume: decimal.RequireFromString("60")}
	up := config.UserParams{
		SingleTradeAmountUSDT: decimal.RequireFromString("30"),
		BuyOffsetPercentage:   decimal.RequireFromString("10"),
		SellProfitPercentage:  decimal.RequireFromString("10"),
		OrderTimeoutSeconds:   1,
	}

	resolver := catalog.NewResolver(fc)
	ex := trade.NewExecutor(fc, resolver, tr, exchange.Credentials{}, "test/1")
	stop := stopper.NewGroup(stopper.New(), stopper.New())

	// Immediately fill both legs of every placed order, then bump volume by
	// 30 per completed trade -- mirrors the exchange re-anchoring the
	// orchestrator depends on.
	go func() {
		filled := make(map[exchange.OrderID]bool)
		for {
			time.Sleep(time.Millisecond)
			for j := 1; j <= fc.placed; j++ {
				id := exchange.OrderID(decimal.NewFromInt(int64(j)).String())
				buy, sell := id+"-buy", id+"-sell"
				if !filled[buy] {
					tr.Observe(exchange.OrderUpdate{OrderID: buy, Status: exchange.StatusFilled})
					filled[buy] = true
				}
				if !filled[sell] {
					tr.Observe(exchange.OrderUpdate{OrderID: sell, Status: exchange.StatusFilled})
					filled[sell] = true
					fc.volume = fc.volume.Add(fc.tradeBump)
				}
			}
		}
	}()

	loop := New(fc, exchange.Credentials{}, sc, up, func(ctx context.Context, symbol string) (exchange.TokenCatalogEntry, error) {
		return resolver.Entry(ctx, symbol)
	}, ex, stop)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res := loop.Run(ctx, creds.UserID(1))
	if res.Cause != stopper.NotStopped {
		t.Fatalf("want success, got cause %v (%s)", res.Cause, res.Message)
	}
	if fc.placed != 2 {
		t.Errorf("want exactly 2 PlaceOTOOrder calls, got %d", fc.placed)
	}
	if !fc.volume.Equal(decimal.RequireFromString("60")) {
		t.Errorf("want final volume 60, got %s", fc.volume.String())
	}
}

func TestLoopPreFilterSkipsSatisfiedUser(t *testing.T) {
	fc := &fakeClient{
		entries: []exchange.TokenCatalogEntry{{Symbol: "ALPHAUSDT", LastPrice: decimal.RequireFromString("1"), MulPoint: 1}},
		symbol:  "ALPHAUSDT",
		volume:  decimal.RequireFromString("100"),
	}
	tr := tracker.New()
	sc := config.StrategyConfig{TargetTokenSymbol: "ALPHAUSDT", TargetVolume: decimal.RequireFromString("60")}
	up := config.UserParams{SingleTradeAmountUSDT: decimal.RequireFromString("30"), OrderTimeoutSeconds: 1}
	resolver := catalog.NewResolver(fc)
	ex := trade.NewExecutor(fc, resolver, tr, exchange.Credentials{}, "test/1")
	stop := stopper.NewGroup(stopper.New(), stopper.New())
	loop := New(fc, exchange.Credentials{}, sc, up, func(ctx context.Context, symbol string) (exchange.TokenCatalogEntry, error) {
		return resolver.Entry(ctx, symbol)
	}, ex, stop)

	res := loop.Run(context.Background(), creds.UserID(1))
	if res.Cause != stopper.NotStopped {
		t.Fatalf("want immediate success, got %v", res.Cause)
	}
	if fc.placed != 0 {
		t.Errorf("want zero PlaceOTOOrder calls for an already-satisfied user, got %d", fc.placed)
	}
}

func TestLoopCountNeverZeroWhenRemainingPositive(t *testing.T) {
	cases := []struct {
		remaining, singleReal string
		want                  int
	}{
		{"10", "7.5", 2},
		{"7.5", "30", 1},
		{"0.001", "1000", 1},
	}
	for _, c := range cases {
		got := loopCount(decimal.RequireFromString(c.remaining), decimal.RequireFromString(c.singleReal))
		if got != c.want {
			t.Errorf("loopCount(%s, %s) = %d, want %d", c.remaining, c.singleReal, got, c.want)
		}
	}
}

func TestLoopStopDuringSleepReturnsWithin200ms(t *testing.T) {
	fc := &fakeClient{
		entries:   []exchange.TokenCatalogEntry{{Symbol: "ALPHAUSDT", LastPrice: decimal.RequireFromString("1"), MulPoint: 1}},
		symbol:    "ALPHAUSDT",
		tradeBump: decimal.RequireFromString("30"),
	}
	tr := tracker.New()
	sc := config.StrategyConfig{TargetTokenSymbol: "ALPHAUSDT", TargetVolume: decimal.RequireFromString("1000")}
	up := config.UserParams{
		SingleTradeAmountUSDT: decimal.RequireFromString("30"),
		TradeIntervalSeconds:  5,
		OrderTimeoutSeconds:   1,
	}
	resolver := catalog.NewResolver(fc)
	ex := trade.NewExecutor(fc, resolver, tr, exchange.Credentials{}, "test/1")
	userLatch := stopper.New()
	stop := stopper.NewGroup(stopper.New(), userLatch)

	go func() {
		filled := make(map[exchange.OrderID]bool)
		for {
			time.Sleep(time.Millisecond)
			for j := 1; j <= fc.placed; j++ {
				id := exchange.OrderID(decimal.NewFromInt(int64(j)).String())
				for _, leg := range []exchange.OrderID{id + "-buy", id + "-sell"} {
					if !filled[leg] {
						tr.Observe(exchange.OrderUpdate{OrderID: leg, Status: exchange.StatusFilled})
						filled[leg] = true
					}
				}
			}
		}
	}()

	loop := New(fc, exchange.Credentials{}, sc, up, func(ctx context.Context, symbol string) (exchange.TokenCatalogEntry, error) {
		return resolver.Entry(ctx, symbol)
	}, ex, stop)

	done := make(chan Result, 1)
	go func() { done <- loop.Run(context.Background(), creds.UserID(1)) }()

	time.Sleep(20 * time.Millisecond) // let the first trade complete and enter the interval sleep
	userLatch.Set(stopper.Canceled, "stop requested")

	select {
	case res := <-done:
		if res.Cause != stopper.Canceled {
			t.Errorf("want Canceled, got %v", res.Cause)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("loop did not return within 200ms of stop")
	}
}

func TestLoopAuthFailedPropagatesFromVolumeQuery(t *testing.T) {
	ac := &authFailingClient{}
	tr := tracker.New()
	sc := config.StrategyConfig{TargetTokenSymbol: "ALPHAUSDT", TargetVolume: decimal.RequireFromString("60")}
	up := config.UserParams{SingleTradeAmountUSDT: decimal.RequireFromString("30"), OrderTimeoutSeconds: 1}
	resolver := catalog.NewResolver(ac)
	ex := trade.NewExecutor(ac, resolver, tr, exchange.Credentials{}, "test/1")
	stop := stopper.NewGroup(stopper.New(), stopper.New())
	loop := New(ac, exchange.Credentials{}, sc, up, func(ctx context.Context, symbol string) (exchange.TokenCatalogEntry, error) {
		return resolver.Entry(ctx, symbol)
	}, ex, stop)

	res := loop.Run(context.Background(), creds.UserID(1))
	if res.Cause != stopper.AuthFailed {
		t.Fatalf("want AuthFailed, got %v", res.Cause)
	}
}

type authFailingClient struct {
	exchange.Client
}

func (a *authFailingClient) FetchUserVolume(ctx context.Context, creds exchange.Credentials) (exchange.UserVolumeSnapshot, error) {
	return nil, &exchange.AuthenticationFailedError{Op: "FetchUserVolume", Message: "session invalid"}
}

func (a *authFailingClient) FetchTokenCatalog(ctx context.Context) ([]exchange.TokenCatalogEntry, error) {
	return []exchange.TokenCatalogEntry{{Symbol: "ALPHAUSDT", LastPrice: decimal.RequireFromString("1"), MulPoint: 1}}, nil
}
