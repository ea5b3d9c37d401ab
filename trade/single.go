// Copyright (c) 2025 BVK Chaitanya

// Package trade executes one round-trip OTO order at a time: catalog
// lookup, price computation, placement, then fill confirmation for the
// working and pending legs.
package trade

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bvk/alphavol/catalog"
	"github.com/bvk/alphavol/exchange"
	"github.com/bvk/alphavol/idgen"
	"github.com/bvk/alphavol/tracker"

	"github.com/shopspring/decimal"
)

const (
	hundred = "100"
)

// Params is the per-trade parameter set resolved by the caller (the Batch
// Loop) from StrategyConfig and UserParams.
type Params struct {
	Symbol               string
	SingleTradeAmountUSDT decimal.Decimal
	BuyOffsetPercentage  decimal.Decimal
	SellProfitPercentage decimal.Decimal
	OrderTimeoutSeconds  int
}

// Executor runs single round-trip OTO trades for one user. Client order ids
// are drawn from an idgen.Generator seeded with the (strategy, user) pair,
// so a restarted run reproduces the same id sequence for reconciliation
// against the exchange's records.
type Executor struct {
	client  exchange.Client
	catalog *catalog.Resolver
	tracker *tracker.Tracker
	creds   exchange.Credentials
	idgen   *idgen.Generator
}

func NewExecutor(client exchange.Client, resolver *catalog.Resolver, tr *tracker.Tracker, creds exchange.Credentials, idSeed string) *Executor {
	return &Executor{client: client, catalog: resolver, tracker: tr, creds: creds, idgen: idgen.New(idSeed, 0)}
}

// Run executes exactly one round-trip OTO and returns the success flag
// plus the real volume the trade contributes. AuthenticationFailed and
// ConfigError are returned as errors; every other failure is folded into a
// (false, zero) result for the caller's retry pacing.
func (ex *Executor) Run(ctx context.Context, p Params) (bool, decimal.Decimal, error) {
	entry, err := ex.catalog.Entry(ctx, p.Symbol)
	if err != nil {
		return false, decimal.Zero, err
	}

	buyPrice, sellPrice, quantity := computePrices(entry.LastPrice, p)

	clientOrderID := ex.idgen.NextID().String()
	placement, err := ex.client.PlaceOTOOrder(ctx, ex.creds, clientOrderID, p.Symbol, quantity, buyPrice, sellPrice)
	if err != nil {
		if authErr := asAuthFailed(err); authErr != nil {
			return false, decimal.Zero, authErr
		}
		slog.WarnContext(ctx, "could not place OTO order (counted as failed trade)", "symbol", p.Symbol, "err", err)
		return false, decimal.Zero, nil
	}

	// Register both legs before returning to the event loop that feeds the
	// tracker; the tracker tolerates updates that arrived earlier by
	// buffering the most recent status per order id.
	ex.tracker.Register(placement.WorkingOrderID)
	ex.tracker.Register(placement.PendingOrderID)

	realVolume := p.SingleTradeAmountUSDT.Div(decimal.NewFromInt(entry.MulPoint))

	timeoutCtx, cancel := deadline(ctx, p.OrderTimeoutSeconds)
	defer cancel()
	switch ex.tracker.AwaitCompletion(timeoutCtx, placement.WorkingOrderID) {
	case tracker.Filled:
		// fall through to await the pending leg
	default:
		return false, decimal.Zero, nil
	}

	timeoutCtx2, cancel2 := deadline(ctx, p.OrderTimeoutSeconds)
	defer cancel2()
	// Either outcome counts the real volume: the buy leg already consumed
	// the notional, and the batch loop's next volume query corrects for any
	// pending-leg non-fill regardless.
	_ = ex.tracker.AwaitCompletion(timeoutCtx2, placement.PendingOrderID)
	return true, realVolume, nil
}

func computePrices(lastPrice decimal.Decimal, p Params) (buyPrice, sellPrice, quantity decimal.Decimal) {
	hundredD := decimal.RequireFromString(hundred)
	buyPrice = lastPrice.Mul(decimal.NewFromInt(1).Add(p.BuyOffsetPercentage.Div(hundredD))).Truncate(8)
	sellPrice = buyPrice.Mul(decimal.NewFromInt(1).Sub(p.SellProfitPercentage.Div(hundredD))).Truncate(8)
	quantity = p.SingleTradeAmountUSDT.Div(buyPrice).Truncate(8)
	return buyPrice, sellPrice, quantity
}

func deadline(ctx context.Context, seconds int) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
}

func asAuthFailed(err error) *exchange.AuthenticationFailedError {
	var authErr *exchange.AuthenticationFailedError
	if errors.As(err, &authErr) {
		return authErr
	}
	return nil
}
