// Copyright (c) 2025 BVK Chaitanya

package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bvk/alphavol/config"
	"github.com/bvk/alphavol/creds"
	"github.com/bvk/alphavol/exchange"
	"github.com/bvk/alphavol/status"

	"github.com/shopspring/decimal"
)

// fakeClient drives a full OTO lifecycle end to end: PlaceOTOOrder
// schedules both legs' fill events onto a shared channel that the
// accompanying fakeStream replays to the sink, bumping the reported volume
// once the pending leg fills -- mirroring how the real exchange would
// re-anchor FetchUserVolume after a completed trade.
type fakeClient struct {
	exchange.Client

	symbol    string
	tradeBump decimal.Decimal

	mu     sync.Mutex
	volume decimal.Decimal
	nextID int
	placed int

	events chan exchange.OrderUpdate
}

func newFakeClient(symbol string, startVolume, tradeBump decimal.Decimal) *fakeClient {
	return &fakeClient{symbol: symbol, tradeBump: tradeBump, volume: startVolume, events: make(chan exchange.OrderUpdate, 64)}
}

func (f *fakeClient) FetchTokenCatalog(ctx context.Context) ([]exchange.TokenCatalogEntry, error) {
	return []exchange.TokenCatalogEntry{{Symbol: f.symbol, LastPrice: decimal.RequireFromString("1"), MulPoint: 1}}, nil
}

func (f *fakeClient) FetchUserVolume(ctx context.Context, creds exchange.Credentials) (exchange.UserVolumeSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return exchange.UserVolumeSnapshot{f.symbol: f.volume}, nil
}

func (f *fakeClient) PlaceOTOOrder(ctx context.Context, creds exchange.Credentials, clientOrderID, symbol string, quantity, buyPrice, sellPrice decimal.Decimal) (*exchange.OTOOrderPlacement, error) {
	f.mu.Lock()
	f.nextID++
	f.placed++
	id := f.nextID
	f.mu.Unlock()

	buy := exchange.OrderID(decimal.NewFromInt(int64(id)).String() + "-buy")
	sell := exchange.OrderID(decimal.NewFromInt(int64(id)).String() + "-sell")

	go func() {
		time.Sleep(time.Millisecond)
		f.events <- exchange.OrderUpdate{OrderID: buy, Status: exchange.StatusFilled}
		time.Sleep(time.Millisecond)
		f.mu.Lock()
		f.volume = f.volume.Add(f.tradeBump)
		f.mu.Unlock()
		f.events <- exchange.OrderUpdate{OrderID: sell, Status: exchange.StatusFilled}
	}()

	return &exchange.OTOOrderPlacement{WorkingOrderID: buy, PendingOrderID: sell}, nil
}

func (f *fakeClient) ObtainListenKey(ctx context.Context, creds exchange.Credentials) (string, error) {
	return "fake-listen-key", nil
}

func (f *fakeClient) KeepAliveListenKey(ctx context.Context, creds exchange.Credentials, key string) error {
	return nil
}

func (f *fakeClient) CloseListenKey(ctx context.Context, creds exchange.Credentials, key string) error {
	return nil
}

// fakeStream replays a fakeClient's events channel to whatever sink Start is
// given, until Stop is called or the context is canceled.
type fakeStream struct {
	events chan exchange.OrderUpdate
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newFakeStream(events chan exchange.OrderUpdate) *fakeStream {
	return &fakeStream{events: events}
}

func (s *fakeStream) Start(ctx context.Context, listenKey string, sink exchange.EventSink) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case u := <-s.events:
				sink.OnOrderUpdate(u)
			case <-runCtx.Done():
				return
			}
		}
	}()
	return nil
}

func (s *fakeStream) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

type fakeCredStore struct {
	creds map[creds.UserID]exchange.Credentials
}

func (f *fakeCredStore) GetCredentials(ctx context.Context, id creds.UserID) (exchange.Credentials, error) {
	c, ok := f.creds[id]
	if !ok {
		return exchange.Credentials{}, creds.ErrNotFound
	}
	return c, nil
}

func (f *fakeCredStore) Put(ctx context.Context, id creds.UserID, c exchange.Credentials) error {
	f.creds[id] = c
	return nil
}

func TestStrategyRunReachesStoppedSuccess(t *testing.T) {
	fc := newFakeClient("ALPHAUSDT", decimal.Zero, decimal.RequireFromString("30"))
	store := &fakeCredStore{creds: map[creds.UserID]exchange.Credentials{1: {}}}
	statusStore := status.NewStore()

	cfg := config.StrategyConfig{
		ID:                "s1",
		Enabled:           true,
		TargetTokenSymbol: "ALPHAUSDT",
		TargetVolume:      decimal.RequireFromString("60"),
		UserIDs:           []creds.UserID{1},
		UserParams: map[creds.UserID]config.UserParams{
			1: {
				SingleTradeAmountUSDT: decimal.RequireFromString("30"),
				BuyOffsetPercentage:   decimal.RequireFromString("10"),
				SellProfitPercentage:  decimal.RequireFromString("10"),
				OrderTimeoutSeconds:   1,
			},
		},
	}

	st := New(cfg, fc, store, func() exchange.OrderEventStream { return newFakeStream(fc.events) }, nil, statusStore)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	st.Run(ctx)

	rec, ok := statusStore.Get("s1", 1)
	if !ok {
		t.Fatalf("want a recorded status")
	}
	if rec.State != status.StoppedSuccess {
		t.Fatalf("want StoppedSuccess, got %v (%s)", rec.State, rec.Message)
	}
}

func TestStrategyPreFilterMarksSatisfiedUser(t *testing.T) {
	fc := newFakeClient("ALPHAUSDT", decimal.RequireFromString("100"), decimal.Zero)
	store := &fakeCredStore{creds: map[creds.UserID]exchange.Credentials{1: {}}}
	statusStore := status.NewStore()

	cfg := config.StrategyConfig{
		ID:                "s1",
		Enabled:           true,
		TargetTokenSymbol: "ALPHAUSDT",
		TargetVolume:      decimal.RequireFromString("60"),
		UserIDs:           []creds.UserID{1},
		UserParams: map[creds.UserID]config.UserParams{
			1: {SingleTradeAmountUSDT: decimal.RequireFromString("30"), OrderTimeoutSeconds: 1},
		},
	}

	st := New(cfg, fc, store, func() exchange.OrderEventStream { return newFakeStream(fc.events) }, nil, statusStore)
	st.Run(context.Background())

	rec, ok := statusStore.Get("s1", 1)
	if !ok || rec.State != status.FilteredSatisfied {
		t.Fatalf("want FilteredSatisfied, got %+v (ok=%v)", rec, ok)
	}
	if fc.placed != 0 {
		t.Errorf("want zero trades for an already-satisfied user, got %d", fc.placed)
	}
}

// authFailClient behaves like fakeClient except that placements for the user
// whose credentials carry the marked header fail with a credential-revocation
// error.
type authFailClient struct {
	*fakeClient
}

func (a *authFailClient) PlaceOTOOrder(ctx context.Context, creds exchange.Credentials, clientOrderID, symbol string, quantity, buyPrice, sellPrice decimal.Decimal) (*exchange.OTOOrderPlacement, error) {
	if creds.Headers["X-Test-User"] == "revoked" {
		return nil, &exchange.AuthenticationFailedError{Op: "PlaceOTOOrder", Message: "session has expired, please login again"}
	}
	return a.fakeClient.PlaceOTOOrder(ctx, creds, clientOrderID, symbol, quantity, buyPrice, sellPrice)
}

// streamHub fans one shared event channel out to every per-user stream the
// factory hands out, so concurrent users all observe every fill; each user's
// tracker simply ignores the other user's order ids.
type streamHub struct {
	events chan exchange.OrderUpdate
	done   chan struct{}
	once   sync.Once

	mu    sync.Mutex
	sinks []exchange.EventSink
}

func newStreamHub(events chan exchange.OrderUpdate) *streamHub {
	h := &streamHub{events: events, done: make(chan struct{})}
	go func() {
		for {
			select {
			case u := <-h.events:
				h.mu.Lock()
				sinks := append([]exchange.EventSink(nil), h.sinks...)
				h.mu.Unlock()
				for _, s := range sinks {
					s.OnOrderUpdate(u)
				}
			case <-h.done:
				return
			}
		}
	}()
	return h
}

func (h *streamHub) Close() { h.once.Do(func() { close(h.done) }) }

type hubStream struct{ hub *streamHub }

func (s *hubStream) Start(ctx context.Context, listenKey string, sink exchange.EventSink) error {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.hub.sinks = append(s.hub.sinks, sink)
	return nil
}

func (s *hubStream) Stop() {}

func TestStrategyAuthFailureDoesNotAffectOtherUsers(t *testing.T) {
	fc := newFakeClient("ALPHAUSDT", decimal.Zero, decimal.RequireFromString("30"))
	ac := &authFailClient{fakeClient: fc}
	store := &fakeCredStore{creds: map[creds.UserID]exchange.Credentials{
		1: {Headers: map[string]string{"X-Test-User": "revoked"}},
		2: {},
	}}
	statusStore := status.NewStore()

	params := config.UserParams{
		SingleTradeAmountUSDT: decimal.RequireFromString("30"),
		BuyOffsetPercentage:   decimal.RequireFromString("10"),
		SellProfitPercentage:  decimal.RequireFromString("10"),
		OrderTimeoutSeconds:   1,
	}
	cfg := config.StrategyConfig{
		ID:                "s1",
		Enabled:           true,
		TargetTokenSymbol: "ALPHAUSDT",
		TargetVolume:      decimal.RequireFromString("60"),
		UserIDs:           []creds.UserID{1, 2},
		UserParams:        map[creds.UserID]config.UserParams{1: params, 2: params},
	}

	hub := newStreamHub(fc.events)
	defer hub.Close()
	st := New(cfg, ac, store, func() exchange.OrderEventStream { return &hubStream{hub: hub} }, nil, statusStore)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st.Run(ctx)

	rec1, ok := statusStore.Get("s1", 1)
	if !ok || rec1.State != status.StoppedAuthFailed {
		t.Fatalf("user 1: want StoppedAuthFailed, got %+v (ok=%v)", rec1, ok)
	}
	rec2, ok := statusStore.Get("s1", 2)
	if !ok || rec2.State != status.StoppedSuccess {
		t.Fatalf("user 2: want StoppedSuccess despite user 1 failure, got %+v (ok=%v)", rec2, ok)
	}
}

func TestStrategyStopCancelsRunningUser(t *testing.T) {
	fc := newFakeClient("ALPHAUSDT", decimal.Zero, decimal.RequireFromString("1"))
	store := &fakeCredStore{creds: map[creds.UserID]exchange.Credentials{1: {}}}
	statusStore := status.NewStore()

	cfg := config.StrategyConfig{
		ID:                "s1",
		Enabled:           true,
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

	st := New(cfg, fc, store, func() exchange.OrderEventStream { return newFakeStream(fc.events) }, nil, statusStore)

	done := make(chan struct{})
	go func() { st.Run(context.Background()); close(done) }()

	time.Sleep(20 * time.Millisecond)
	st.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after Stop")
	}

	rec, ok := statusStore.Get("s1", 1)
	if !ok || rec.State != status.StoppedCanceled {
		t.Fatalf("want StoppedCanceled, got %+v (ok=%v)", rec, ok)
	}
}
