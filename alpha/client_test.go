// Copyright (c) 2025 BVK Chaitanya

package alpha

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/bvk/alphavol/exchange"

	"github.com/shopspring/decimal"
)

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	c, err := New(&Options{RestHostname: u.Host})
	if err != nil {
		t.Fatal(err)
	}
	// httptest serves plain HTTP; doJSON always builds https:// URLs, so
	// rewrite them in place for the duration of the test.
	c.httpClient = srv.Client()
	c.restURLScheme = "http"
	return c, srv.Close
}

func TestFetchUserVolumeSuccess(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-User"); got != "u1" {
			t.Errorf("want injected header X-User=u1, got %q", got)
		}
		json.NewEncoder(w).Encode(envelope{
			Success: true,
			Data:    json.RawMessage(`[{"tokenSymbol":"ALPHAUSDT","volume":"12.5"}]`),
		})
	})
	defer closeFn()

	snap, err := c.FetchUserVolume(context.Background(), exchange.Credentials{Headers: map[string]string{"X-User": "u1"}})
	if err != nil {
		t.Fatalf("FetchUserVolume failed: %v", err)
	}
	if got := snap["ALPHAUSDT"]; !got.Equal(mustDecimal("12.5")) {
		t.Errorf("want 12.5, got %s", got.String())
	}
}

func TestFetchUserVolumeAuthFailed(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(envelope{Success: false, Code: 1, Message: "session has expired, please login again"})
	})
	defer closeFn()

	_, err := c.FetchUserVolume(context.Background(), exchange.Credentials{})
	if _, ok := err.(*exchange.AuthenticationFailedError); !ok {
		t.Fatalf("want *exchange.AuthenticationFailedError, got %T: %v", err, err)
	}
}

func TestCloseListenKeyIgnoresNotFound(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(envelope{Success: false, Code: 404, Message: "listen key not found"})
	})
	defer closeFn()

	if err := c.CloseListenKey(context.Background(), exchange.Credentials{}, "stale-key"); err != nil {
		t.Fatalf("CloseListenKey should ignore not-found, got %v", err)
	}
}

func TestPlaceOTOOrderRejected(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(envelope{Success: false, Code: 400, Message: "quantity below minimum"})
	})
	defer closeFn()

	_, err := c.PlaceOTOOrder(context.Background(), exchange.Credentials{}, "cid-1", "ALPHAUSDT", mustDecimal("1"), mustDecimal("1"), mustDecimal("1"))
	if _, ok := err.(*exchange.RejectedError); !ok {
		t.Fatalf("want *exchange.RejectedError, got %T: %v", err, err)
	}
}
