// Copyright (c) 2025 BVK Chaitanya

// Package alpha implements the concrete REST + WebSocket exchange.Client
// and exchange.OrderEventStream for the Alpha-token exchange. This exchange
// authenticates with per-user headers+cookies rather than a shared API
// key/secret, so every call injects exchange.Credentials instead of signing
// a request.
package alpha

import "time"

var (
	// RestHostname is the default REST API hostname.
	RestHostname = "www.alphaex.example"

	// WebsocketHostname is the default order-events WebSocket hostname.
	WebsocketHostname = "stream.alphaex.example"
)

// Options configures an alpha Client and Stream.
type Options struct {
	RestHostname      string
	WebsocketHostname string

	// HttpClientTimeout bounds every REST call.
	HttpClientTimeout time.Duration

	// ReconnectMinBackoff / ReconnectMaxBackoff bound the order event
	// stream's reconnect backoff (1s doubling up to a 60s cap).
	ReconnectMinBackoff time.Duration
	ReconnectMaxBackoff time.Duration

	// MaxReconnectAttempts is the number of reconnect attempts before the
	// stream gives up.
	MaxReconnectAttempts int

	// SubscribeAckTimeout bounds how long Start waits for the subscription
	// acknowledgement frame before considering the connection failed.
	SubscribeAckTimeout time.Duration
}

func (o *Options) setDefaults() {
	if o.RestHostname == "" {
		o.RestHostname = RestHostname
	}
	if o.WebsocketHostname == "" {
		o.WebsocketHostname = WebsocketHostname
	}
	if o.HttpClientTimeout == 0 {
		o.HttpClientTimeout = 10 * time.Second
	}
	if o.ReconnectMinBackoff == 0 {
		o.ReconnectMinBackoff = time.Second
	}
	if o.ReconnectMaxBackoff == 0 {
		o.ReconnectMaxBackoff = 60 * time.Second
	}
	if o.MaxReconnectAttempts == 0 {
		o.MaxReconnectAttempts = 10
	}
	if o.SubscribeAckTimeout == 0 {
		o.SubscribeAckTimeout = 5 * time.Second
	}
}

// Check validates and fills in defaults.
func (o *Options) Check() error {
	o.setDefaults()
	return nil
}
