// Copyright (c) 2025 BVK Chaitanya

package alpha

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bvk/alphavol/exchange"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// Stream is the concrete exchange.OrderEventStream: one WebSocket
// connection per user, subscribed to the topic derived from that user's
// listen key, with a bounded reconnect-then-give-up loop.
type Stream struct {
	opts Options

	wg     sync.WaitGroup
	cancel context.CancelFunc

	stopped atomic.Bool
	nextID  atomic.Int64

	// dialURL overrides the computed wss:// endpoint; tests point it at a
	// local httptest-backed websocket listener.
	dialURL string
}

// NewStream creates a Stream. Call Start once per (strategy, user)
// lifetime; the caller is responsible for that uniqueness.
func NewStream(opts *Options) *Stream {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	return &Stream{opts: *opts}
}

var _ exchange.OrderEventStream = (*Stream)(nil)

func (s *Stream) Start(ctx context.Context, listenKey string, sink exchange.EventSink) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	connectedCh := make(chan struct{}, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.run(runCtx, listenKey, sink, connectedCh)
	}()

	select {
	case <-connectedCh:
		return nil
	case <-runCtx.Done():
		return fmt.Errorf("order event stream: %w", context.Cause(runCtx))
	}
}

// Stop closes the underlying connection and waits for in-flight sink
// writes to complete. Idempotent.
func (s *Stream) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Stream) run(ctx context.Context, listenKey string, sink exchange.EventSink, connectedCh chan struct{}) {
	backoff := s.opts.ReconnectMinBackoff
	for attempt := 1; ctx.Err() == nil; attempt++ {
		if attempt > s.opts.MaxReconnectAttempts {
			sink.OnConnState(exchange.ConnEvent{State: exchange.GaveUp, Attempt: attempt - 1, Reason: fmt.Errorf("exceeded %d reconnect attempts", s.opts.MaxReconnectAttempts)})
			return
		}

		err := s.session(ctx, listenKey, sink, connectedCh)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			// session returned cleanly only on ctx cancellation, handled above;
			// otherwise treat as disconnect and retry below.
			err = fmt.Errorf("session ended")
		}

		sink.OnConnState(exchange.ConnEvent{State: exchange.Disconnected, Reason: err})
		sink.OnConnState(exchange.ConnEvent{State: exchange.Reconnecting, Attempt: attempt, Backoff: backoff.Milliseconds()})
		slog.WarnContext(ctx, "order event stream disconnected (will retry)", "attempt", attempt, "backoff", backoff, "err", err)

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
		backoff *= 2
		if backoff > s.opts.ReconnectMaxBackoff {
			backoff = s.opts.ReconnectMaxBackoff
		}
	}
}

func (s *Stream) session(ctx context.Context, listenKey string, sink exchange.EventSink, connectedCh chan struct{}) error {
	dialURL := s.dialURL
	if dialURL == "" {
		dialURL = (&url.URL{Scheme: "wss", Host: s.opts.WebsocketHostname, Path: "/ws"}).String()
	}
	dialer := websocket.Dialer{EnableCompression: true}
	conn, _, err := dialer.DialContext(ctx, dialURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	id := s.nextID.Add(1)
	req := subscribeFrame{Method: "SUBSCRIBE", Params: []string{userTopic(listenKey)}, ID: id}
	if err := conn.WriteJSON(&req); err != nil {
		return err
	}

	if err := s.awaitAck(conn, id); err != nil {
		return err
	}

	sink.OnConnState(exchange.ConnEvent{State: exchange.Connected})
	select {
	case connectedCh <- struct{}{}:
	default:
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if update, ok := decodeExecutionReport(data); ok {
			sink.OnOrderUpdate(update)
		}
	}
}

func (s *Stream) awaitAck(conn *websocket.Conn, wantID int64) error {
	conn.SetReadDeadline(time.Now().Add(s.opts.SubscribeAckTimeout))
	defer conn.SetReadDeadline(time.Time{})

	_, data, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("subscribe ack: %w", err)
	}
	var ack subscribeAck
	if err := json.Unmarshal(data, &ack); err != nil {
		return fmt.Errorf("subscribe ack: %w", err)
	}
	if ack.ID == nil || *ack.ID != wantID {
		return fmt.Errorf("subscribe ack: id mismatch")
	}
	return nil
}

func userTopic(listenKey string) string {
	return fmt.Sprintf("listenKey@%s", listenKey)
}

func decodeExecutionReport(data []byte) (exchange.OrderUpdate, bool) {
	var frame executionReportFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return exchange.OrderUpdate{}, false
	}
	if frame.EventType != "executionReport" {
		return exchange.OrderUpdate{}, false
	}
	qty, err := decimal.NewFromString(frame.ExecQty)
	if err != nil {
		qty = decimal.Zero
	}
	return exchange.OrderUpdate{
		OrderID:     exchange.OrderID(frame.OrderID),
		Status:      frame.Status,
		ExecutedQty: qty,
		Side:        frame.Side,
		EventTime:   exchange.FromUnixMillis(frame.EventTime),
	}, true
}
