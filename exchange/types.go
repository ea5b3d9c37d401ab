// Copyright (c) 2025 BVK Chaitanya

// Package exchange defines the typed, credential-scoped contract the core
// orchestrator uses to talk to the Alpha-token exchange, and the data types
// that flow across that boundary. Concrete transports live in sibling
// packages (e.g. alpha/); this package only fixes the contract.
package exchange

import (
	"context"

	"github.com/shopspring/decimal"
)

// OrderID is the exchange-assigned identifier for one order leg.
type OrderID string

// Order sides.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Order statuses as reported on the order-events feed.
const (
	StatusNew             = "NEW"
	StatusPartiallyFilled = "PARTIALLY_FILLED"
	StatusFilled          = "FILLED"
	StatusCanceled        = "CANCELED"
	StatusRejected        = "REJECTED"
	StatusExpired         = "EXPIRED"
	StatusPending         = "PENDING"
)

// IsTerminal reports whether status is one from which no further order
// transitions occur.
func IsTerminal(status string) bool {
	switch status {
	case StatusFilled, StatusCanceled, StatusRejected, StatusExpired:
		return true
	default:
		return false
	}
}

// Credentials carries the opaque, per-user auth material required by every
// exchange call. Never logged; callers must not format this struct with
// %v/%+v into a log record.
type Credentials struct {
	Headers map[string]string
	Cookies string
}

// TokenCatalogEntry is one row of the exchange's token catalog.
type TokenCatalogEntry struct {
	Symbol string

	LastPrice decimal.Decimal

	// MulPoint is the exchange-side display multiplier: reported volume for a
	// trade equals nominal_notional * MulPoint. Defaults to 1.
	MulPoint int64

	Chain string
}

// OTOOrderPlacement is returned on successful OTO submission.
type OTOOrderPlacement struct {
	WorkingOrderID OrderID // buy leg
	PendingOrderID OrderID // sell leg
}

// OrderUpdate is one decoded order-event message from the exchange's
// order-events feed.
type OrderUpdate struct {
	OrderID     OrderID
	Status      string
	ExecutedQty decimal.Decimal
	Side        string
	EventTime   RemoteTime
}

// UserVolumeSnapshot maps token symbol to the exchange's authoritative
// reported volume for that token.
type UserVolumeSnapshot map[string]decimal.Decimal

// ConnState is a connection-state event emitted by an OrderEventStream
// alongside OrderUpdate values.
type ConnState int

const (
	Connected ConnState = iota
	Disconnected
	Reconnecting
	GaveUp
)

func (s ConnState) String() string {
	switch s {
	case Connected:
		return "Connected"
	case Disconnected:
		return "Disconnected"
	case Reconnecting:
		return "Reconnecting"
	case GaveUp:
		return "GaveUp"
	default:
		return "Unknown"
	}
}

// ConnEvent carries a connection-state transition plus any context about it.
type ConnEvent struct {
	State   ConnState
	Attempt int
	Backoff int64 // milliseconds, set for Reconnecting
	Reason  error
}

// Client is the typed, credential-scoped operation set the core needs from
// the exchange. Every method takes Credentials explicitly -- there is no
// ambient auth. Implementations are free to share an *http.Client across
// calls as long as concurrent calls for the same user remain safe.
type Client interface {
	// FetchTokenCatalog returns the current catalog snapshot. This call is
	// unauthenticated in the real exchange, but is still routed through the
	// Client so it can be faked/recorded identically to authenticated calls.
	FetchTokenCatalog(ctx context.Context) ([]TokenCatalogEntry, error)

	// FetchUserVolume returns the calling user's authoritative per-token
	// trading volume.
	FetchUserVolume(ctx context.Context, creds Credentials) (UserVolumeSnapshot, error)

	// PlaceOTOOrder submits one OTO order: a BUY working leg at buyPrice for
	// quantity, and a SELL pending leg at sellPrice for (approximately) the
	// same quantity, activated once the working leg fills. clientOrderID is a
	// caller-chosen identifier echoed back by the exchange; the exchange does
	// not deduplicate on it, so callers must not blind-retry a placement whose
	// outcome is unknown.
	PlaceOTOOrder(ctx context.Context, creds Credentials, clientOrderID, symbol string, quantity, buyPrice, sellPrice decimal.Decimal) (*OTOOrderPlacement, error)

	// ObtainListenKey returns a token authorizing subscription to this
	// user's order-event stream.
	ObtainListenKey(ctx context.Context, creds Credentials) (string, error)

	// KeepAliveListenKey extends the given listen key's validity.
	KeepAliveListenKey(ctx context.Context, creds Credentials, key string) error

	// CloseListenKey releases the given listen key. A not-found response
	// from the exchange is not an error.
	CloseListenKey(ctx context.Context, creds Credentials, key string) error
}

// EventSink receives decoded order events and connection-state transitions
// from an OrderEventStream.
type EventSink interface {
	OnOrderUpdate(OrderUpdate)
	OnConnState(ConnEvent)
}

// OrderEventStream delivers a lazy, ordered sequence of OrderUpdate values
// for one user, authorized by a listen key. At most one instance exists per
// (strategy, user) lifetime.
type OrderEventStream interface {
	// Start begins delivering events to sink. Start must not block past
	// establishing the connection; reconnection happens internally.
	Start(ctx context.Context, listenKey string, sink EventSink) error

	// Stop closes the underlying connection and returns once all in-flight
	// sink writes complete. Idempotent.
	Stop()
}
