// Copyright (c) 2025 BVK Chaitanya

// Package orchestrator implements the per-strategy supervisor that
// pre-filters users against their authoritative volume, then runs one
// isolated per-user pipeline (listen key, order event stream, tracker,
// batch loop) concurrently for every remaining user, and the multi-strategy
// Manager that fans this out across every enabled strategy.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bvk/alphavol/batch"
	"github.com/bvk/alphavol/catalog"
	"github.com/bvk/alphavol/config"
	"github.com/bvk/alphavol/creds"
	"github.com/bvk/alphavol/exchange"
	"github.com/bvk/alphavol/listenkey"
	"github.com/bvk/alphavol/notify"
	"github.com/bvk/alphavol/status"
	"github.com/bvk/alphavol/stopper"
	"github.com/bvk/alphavol/trade"
	"github.com/bvk/alphavol/tracker"

	"github.com/shopspring/decimal"
)

// TeardownGrace bounds how long closing a user's listen key is given once
// that user's run has ended, so an unresponsive exchange cannot hold up
// StopAll/Stop on that call. Stopping the order event stream is waited for
// without a time limit.
const TeardownGrace = 10 * time.Second

// StreamFactory builds a fresh exchange.OrderEventStream for one user. Tests
// inject a fake; production wires alpha.NewStream.
type StreamFactory func() exchange.OrderEventStream

// Strategy runs the batch loop concurrently for every user of one
// config.StrategyConfig. Users are fully isolated: one user's terminal
// cause never stops another user's loop.
type Strategy struct {
	cfg         config.StrategyConfig
	client      exchange.Client
	credStore   creds.Store
	catalog     *catalog.Resolver
	newStream   StreamFactory
	messenger   notify.Messenger
	statusStore *status.Store

	strategyLatch *stopper.Latch

	mu    sync.Mutex
	users map[creds.UserID]*userRun
	wg    sync.WaitGroup
}

// userRun holds one active user's per-run state, needed to target a
// single-user stop.
type userRun struct {
	latch *stopper.Latch
}

// New builds a Strategy supervisor for one strategy configuration.
func New(cfg config.StrategyConfig, client exchange.Client, credStore creds.Store, newStream StreamFactory, messenger notify.Messenger, statusStore *status.Store) *Strategy {
	return &Strategy{
		cfg:           cfg,
		client:        client,
		credStore:     credStore,
		catalog:       catalog.NewResolver(client),
		newStream:     newStream,
		messenger:     messenger,
		statusStore:   statusStore,
		strategyLatch: stopper.New(),
		users:         make(map[creds.UserID]*userRun),
	}
}

// Run pre-filters the strategy's users against their authoritative volume
// (one FetchUserVolume per user, issued concurrently) and then runs each
// remaining user's pipeline concurrently. Run blocks until every user has
// reached a terminal state or Stop is called.
func (s *Strategy) Run(ctx context.Context) {
	type prefiltered struct {
		userID  creds.UserID
		creds   exchange.Credentials
		current decimal.Decimal
	}

	var mu sync.Mutex
	var active []prefiltered

	var filterWG sync.WaitGroup
	for _, userID := range s.cfg.UserIDs {
		if _, ok := s.cfg.UserParams[userID]; !ok {
			continue
		}
		filterWG.Add(1)
		go func(userID creds.UserID) {
			defer filterWG.Done()

			userCreds, err := s.credStore.GetCredentials(ctx, userID)
			if err != nil {
				s.record(userID, status.StoppedError, decimal.Zero, fmt.Sprintf("could not load credentials: %v", err))
				return
			}

			snap, err := s.client.FetchUserVolume(ctx, userCreds)
			if err != nil {
				s.record(userID, status.StoppedError, decimal.Zero, fmt.Sprintf("could not pre-filter user volume: %v", err))
				return
			}
			current := snap[s.cfg.TargetTokenSymbol]
			if current.GreaterThanOrEqual(s.cfg.TargetVolume) {
				s.record(userID, status.FilteredSatisfied, current, "")
				return
			}

			mu.Lock()
			active = append(active, prefiltered{userID: userID, creds: userCreds, current: current})
			mu.Unlock()
		}(userID)
	}
	filterWG.Wait()

	for _, pf := range active {
		params := s.cfg.UserParams[pf.userID]

		userLatch := stopper.New()
		group := stopper.NewGroup(s.strategyLatch, userLatch)

		s.mu.Lock()
		s.users[pf.userID] = &userRun{latch: userLatch}
		s.mu.Unlock()

		s.statusStore.Set(s.cfg.ID, pf.userID, status.Running, pf.current, "", time.Now())

		s.wg.Add(1)
		go s.runUser(ctx, pf.userID, pf.creds, params, userLatch, group)
	}

	s.wg.Wait()
}

func (s *Strategy) runUser(ctx context.Context, userID creds.UserID, userCreds exchange.Credentials, params config.UserParams, userLatch *stopper.Latch, group *stopper.Group) {
	defer s.wg.Done()
	defer group.Close()
	defer func() {
		s.mu.Lock()
		delete(s.users, userID)
		s.mu.Unlock()
	}()

	lk := listenkey.New(s.client, userCreds)
	if err := lk.Start(ctx); err != nil {
		s.finish(userID, status.StoppedError, decimal.Zero, fmt.Sprintf("could not start listen key lifecycle: %v", err))
		return
	}
	defer func() {
		teardownCtx, cancel := context.WithTimeout(context.Background(), TeardownGrace)
		defer cancel()
		lk.Stop(teardownCtx)
	}()

	tr := tracker.New()
	stream := s.newStream()
	sink := &eventSink{
		tracker: tr,
		onGaveUp: func(reason error) {
			userLatch.Set(stopper.StreamFailed, fmt.Sprintf("order event stream gave up: %v", reason))
		},
	}
	if err := stream.Start(ctx, lk.Key(), sink); err != nil {
		s.finish(userID, status.StoppedError, decimal.Zero, fmt.Sprintf("could not start order event stream: %v", err))
		return
	}
	defer stream.Stop()

	go func() {
		select {
		case <-lk.Done():
			userLatch.Set(stopper.ListenKeyFailed, lk.FailedMessage())
		case <-group.Context().Done():
		}
	}()

	executor := trade.NewExecutor(s.client, s.catalog, tr, userCreds, fmt.Sprintf("%s/%d", s.cfg.ID, userID))
	loop := batch.New(s.client, userCreds, s.cfg, params, s.catalog.Entry, executor, group)

	result := loop.Run(ctx, userID)
	s.finishResult(userID, result)
}

func (s *Strategy) finishResult(userID creds.UserID, result batch.Result) {
	switch result.Cause {
	case stopper.NotStopped:
		s.finish(userID, status.StoppedSuccess, result.LastVolume, result.Message)
	case stopper.Canceled:
		s.finish(userID, status.StoppedCanceled, result.LastVolume, result.Message)
	case stopper.AuthFailed:
		s.notifyAuthFailed(userID, result.Message)
		s.finish(userID, status.StoppedAuthFailed, result.LastVolume, result.Message)
	case stopper.StreamFailed, stopper.ListenKeyFailed:
		s.finish(userID, status.StoppedStreamFailed, result.LastVolume, result.Message)
	default:
		s.finish(userID, status.StoppedError, result.LastVolume, result.Message)
	}
}

func (s *Strategy) notifyAuthFailed(userID creds.UserID, message string) {
	if s.messenger == nil {
		return
	}
	text := fmt.Sprintf("strategy %q user %d: authentication failed, %s: %s", s.cfg.ID, userID, notify.AuthRefreshPhrase, message)
	s.messenger.SendMessage(context.Background(), time.Now(), text)
}

func (s *Strategy) finish(userID creds.UserID, st status.State, lastVolume decimal.Decimal, message string) {
	s.statusStore.Set(s.cfg.ID, userID, st, lastVolume, message, time.Now())
	slog.Info("user run finished", "strategy", s.cfg.ID, "user", userID, "status", st.String())
}

func (s *Strategy) record(userID creds.UserID, st status.State, lastVolume decimal.Decimal, message string) {
	s.statusStore.Set(s.cfg.ID, userID, st, lastVolume, message, time.Now())
}

// Stop trips the strategy-wide latch, causing every active user's loop to
// exit with stopper.Canceled (unless a more specific cause has already
// fired), and blocks until all user goroutines have returned.
func (s *Strategy) Stop() {
	s.strategyLatch.Set(stopper.Canceled, "strategy stopped by operator")
	s.wg.Wait()
}

// StopUser trips only userID's latch, leaving the rest of the strategy
// running.
func (s *Strategy) StopUser(userID creds.UserID) bool {
	s.mu.Lock()
	run, ok := s.users[userID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	run.latch.Set(stopper.Canceled, "user stopped by operator")
	return true
}
