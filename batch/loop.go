// Copyright (c) 2025 BVK Chaitanya

// Package batch implements the per-user control loop that re-anchors
// against FetchUserVolume after every batch of single trades, sizing the
// next batch from the authoritative remainder. The exchange's volume
// figure is the only input to the stopping decision; nothing is
// accumulated locally.
package batch

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/bvk/alphavol/config"
	"github.com/bvk/alphavol/creds"
	"github.com/bvk/alphavol/exchange"
	"github.com/bvk/alphavol/stopper"
	"github.com/bvk/alphavol/trade"

	"github.com/shopspring/decimal"
)

// CatalogEntryFunc resolves the current mul_point for symbol, read fresh at
// the top of every batch.
type CatalogEntryFunc func(ctx context.Context, symbol string) (exchange.TokenCatalogEntry, error)

// Loop drives one user toward StrategyConfig.TargetVolume.
type Loop struct {
	client      exchange.Client
	creds       exchange.Credentials
	strategy    config.StrategyConfig
	params      config.UserParams
	catalogFunc CatalogEntryFunc
	executor    *trade.Executor
	stop        *stopper.Group
}

// New builds a Loop for one (strategy, user) pair. stop is the
// per-user/per-strategy latch Group consulted at every checkpoint.
func New(client exchange.Client, uc exchange.Credentials, strategy config.StrategyConfig, params config.UserParams, catalogFunc CatalogEntryFunc, executor *trade.Executor, stop *stopper.Group) *Loop {
	return &Loop{
		client:      client,
		creds:       uc,
		strategy:    strategy,
		params:      params,
		catalogFunc: catalogFunc,
		executor:    executor,
		stop:        stop,
	}
}

// Result is the outcome of Run: Cause is stopper.NotStopped on success
// (target volume reached), or the terminal cause the loop exited with.
type Result struct {
	Cause      stopper.Cause
	LastVolume decimal.Decimal
	Message    string
}

// Run executes the batch loop until the target volume is reached or the
// stop latch trips. It never returns a Go error directly -- AuthFailed and
// other terminal causes are folded into Result.Cause so that the caller's
// per-user supervisor has one uniform exit path and errors cannot cross
// user boundaries.
func (l *Loop) Run(ctx context.Context, userID creds.UserID) Result {
	// Bind the stop latch into ctx so every suspension point below it --
	// FetchUserVolume, PlaceOTOOrder, AwaitCompletion -- unblocks as soon as
	// the latch trips, not just the explicit sleeps.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	unbind := context.AfterFunc(l.stop.Context(), cancel)
	defer unbind()

	for {
		if l.stop.Stopped() {
			return Result{Cause: l.stop.Cause(), Message: l.stop.Message()}
		}

		current, err := l.fetchVolume(ctx)
		if err != nil {
			if authErr := asAuthFailed(err); authErr != nil {
				return Result{Cause: stopper.AuthFailed, Message: authErr.Error(), LastVolume: current}
			}
			slog.WarnContext(ctx, "could not fetch user volume (will retry next batch)", "user", userID, "err", err)
			if !l.interruptibleSleep(ctx, l.params.RetryDelaySeconds) {
				return l.stoppedResult(current)
			}
			continue
		}

		if current.GreaterThanOrEqual(l.strategy.TargetVolume) {
			return Result{Cause: stopper.NotStopped, LastVolume: current}
		}

		remaining := l.strategy.TargetVolume.Sub(current)

		entry, err := l.catalogFunc(ctx, l.strategy.TargetTokenSymbol)
		if err != nil {
			return Result{Cause: stopper.ConfigError, Message: err.Error(), LastVolume: current}
		}
		singleReal := l.params.SingleTradeAmountUSDT.Div(decimal.NewFromInt(entry.MulPoint))
		count := loopCount(remaining, singleReal)

		for i := 0; i < count; i++ {
			if l.stop.Stopped() {
				return Result{Cause: l.stop.Cause(), Message: l.stop.Message(), LastVolume: current}
			}

			ok, _, err := l.executor.Run(ctx, trade.Params{
				Symbol:                l.strategy.TargetTokenSymbol,
				SingleTradeAmountUSDT: l.params.SingleTradeAmountUSDT,
				BuyOffsetPercentage:   l.params.BuyOffsetPercentage,
				SellProfitPercentage:  l.params.SellProfitPercentage,
				OrderTimeoutSeconds:   l.params.OrderTimeoutSeconds,
			})
			if err != nil {
				if authErr := asAuthFailed(err); authErr != nil {
					return Result{Cause: stopper.AuthFailed, Message: authErr.Error(), LastVolume: current}
				}
				slog.WarnContext(ctx, "single trade failed unexpectedly (counted as failed trade)", "user", userID, "err", err)
				ok = false
			}

			delaySeconds := l.params.RetryDelaySeconds
			if ok {
				delaySeconds = l.params.TradeIntervalSeconds
			}
			if !l.interruptibleSleep(ctx, delaySeconds) {
				return l.stoppedResult(current)
			}
		}
	}
}

// stoppedResult reports the latch's cause, or Canceled when the loop was
// stopped by its parent context without the latch being tripped.
func (l *Loop) stoppedResult(current decimal.Decimal) Result {
	if cause := l.stop.Cause(); cause != stopper.NotStopped {
		return Result{Cause: cause, Message: l.stop.Message(), LastVolume: current}
	}
	return Result{Cause: stopper.Canceled, Message: "context canceled", LastVolume: current}
}

func (l *Loop) fetchVolume(ctx context.Context) (decimal.Decimal, error) {
	snap, err := l.client.FetchUserVolume(ctx, l.creds)
	if err != nil {
		return decimal.Zero, err
	}
	v, ok := snap[l.strategy.TargetTokenSymbol]
	if !ok {
		return decimal.Zero, nil
	}
	return v, nil
}

// loopCount returns max(1, ceil(remaining / singleReal)). remaining is
// guaranteed > 0 by the caller.
func loopCount(remaining, singleReal decimal.Decimal) int {
	if singleReal.LessThanOrEqual(decimal.Zero) {
		return 1
	}
	ratio, _ := remaining.Div(singleReal).Float64()
	n := int(math.Ceil(ratio))
	if n < 1 {
		n = 1
	}
	return n
}

// interruptibleSleep sleeps for seconds, but unblocks immediately when the
// stop latch trips. Returns false if the caller should stop.
func (l *Loop) interruptibleSleep(ctx context.Context, seconds int) bool {
	if seconds <= 0 {
		return ctx.Err() == nil && !l.stop.Stopped()
	}
	timer := time.NewTimer(time.Duration(seconds) * time.Second)
	defer timer.Stop()
	select {
	case <-timer.C:
		return ctx.Err() == nil && !l.stop.Stopped()
	case <-l.stop.Context().Done():
		return false
	case <-ctx.Done():
		return false
	}
}

func asAuthFailed(err error) *exchange.AuthenticationFailedError {
	var authErr *exchange.AuthenticationFailedError
	if errors.As(err, &authErr) {
		return authErr
	}
	return nil
}
