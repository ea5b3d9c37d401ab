// Copyright (c) 2025 BVK Chaitanya

package alpha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/bvk/alphavol/authfail"
	"github.com/bvk/alphavol/exchange"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Client is the concrete REST implementation of exchange.Client. It holds
// no per-user state -- every method takes exchange.Credentials explicitly
// and injects them as request headers/cookie, so there is no ambient auth.
type Client struct {
	opts       Options
	httpClient *http.Client
	classifier *authfail.Classifier
	limiter    *rate.Limiter

	// restURLScheme defaults to "https"; tests point it at a local
	// httptest.Server, which only speaks plain HTTP.
	restURLScheme string
}

// New creates an alpha Client.
func New(opts *Options) (*Client, error) {
	if opts == nil {
		opts = new(Options)
	}
	if err := opts.Check(); err != nil {
		return nil, err
	}
	return &Client{
		opts:          *opts,
		httpClient:    &http.Client{Timeout: opts.HttpClientTimeout},
		classifier:    authfail.New(nil, nil),
		limiter:       rate.NewLimiter(25, 1),
		restURLScheme: "https",
	}, nil
}

var _ exchange.Client = (*Client)(nil)

func (c *Client) restURL(path string) *url.URL {
	return &url.URL{Scheme: c.restURLScheme, Host: c.opts.RestHostname, Path: path}
}

func (c *Client) FetchTokenCatalog(ctx context.Context) ([]exchange.TokenCatalogEntry, error) {
	var wire []catalogEntryWire
	if err := c.doJSON(ctx, http.MethodGet, c.restURL("/sapi/v1/catalog"), exchange.Credentials{}, nil, &wire, "FetchTokenCatalog"); err != nil {
		return nil, err
	}
	out := make([]exchange.TokenCatalogEntry, 0, len(wire))
	for _, w := range wire {
		mul := w.MulPoint
		if mul < 1 {
			mul = 1
		}
		out = append(out, exchange.TokenCatalogEntry{Symbol: w.Symbol, LastPrice: w.LastPrice, MulPoint: mul, Chain: w.Chain})
	}
	return out, nil
}

func (c *Client) FetchUserVolume(ctx context.Context, creds exchange.Credentials) (exchange.UserVolumeSnapshot, error) {
	var wire []volumeEntryWire
	if err := c.doJSON(ctx, http.MethodGet, c.restURL("/sapi/v1/user/volume"), creds, nil, &wire, "FetchUserVolume"); err != nil {
		return nil, err
	}
	snap := make(exchange.UserVolumeSnapshot, len(wire))
	for _, w := range wire {
		snap[w.TokenSymbol] = w.Volume
	}
	return snap, nil
}

func (c *Client) PlaceOTOOrder(ctx context.Context, creds exchange.Credentials, clientOrderID, symbol string, quantity, buyPrice, sellPrice decimal.Decimal) (*exchange.OTOOrderPlacement, error) {
	req := otoOrderRequest{
		ClientOrderID: clientOrderID,
		Symbol:        symbol,
		Side:          exchange.SideBuy,
		Type:          "OTO",
		Quantity:      quantity,
		BuyPrice:      buyPrice,
		SellPrice:     sellPrice,
	}
	var resp otoOrderResponse
	if err := c.doJSON(ctx, http.MethodPost, c.restURL("/sapi/v1/order/oto"), creds, req, &resp, "PlaceOTOOrder"); err != nil {
		return nil, err
	}
	return &exchange.OTOOrderPlacement{
		WorkingOrderID: exchange.OrderID(resp.WorkingOrderID),
		PendingOrderID: exchange.OrderID(resp.PendingOrderID),
	}, nil
}

func (c *Client) ObtainListenKey(ctx context.Context, creds exchange.Credentials) (string, error) {
	var resp listenKeyResponse
	if err := c.doJSON(ctx, http.MethodPost, c.restURL("/sapi/v1/userDataStream"), creds, nil, &resp, "ObtainListenKey"); err != nil {
		return "", err
	}
	return resp.ListenKey, nil
}

func (c *Client) KeepAliveListenKey(ctx context.Context, creds exchange.Credentials, key string) error {
	u := c.restURL("/sapi/v1/userDataStream")
	u.RawQuery = url.Values{"listenKey": {key}}.Encode()
	return c.doJSON(ctx, http.MethodPut, u, creds, nil, nil, "KeepAliveListenKey")
}

func (c *Client) CloseListenKey(ctx context.Context, creds exchange.Credentials, key string) error {
	u := c.restURL("/sapi/v1/userDataStream")
	u.RawQuery = url.Values{"listenKey": {key}}.Encode()
	err := c.doJSON(ctx, http.MethodDelete, u, creds, nil, nil, "CloseListenKey")
	if isNotFound(err) {
		// The key already expired or was closed elsewhere.
		return nil
	}
	return err
}

// doJSON performs one credential-scoped HTTP call against the exchange's
// JSON envelope protocol, classifying envelope-level failures into the
// exchange package's error taxonomy.
func (c *Client) doJSON(ctx context.Context, method string, u *url.URL, creds exchange.Credentials, body, result any, op string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &exchange.TransportError{Op: op, Err: err}
	}

	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &exchange.ProtocolError{Op: op, Err: err}
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), payload)
	if err != nil {
		return &exchange.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range creds.Headers {
		req.Header.Set(k, v)
	}
	if creds.Cookies != "" {
		req.Header.Set("Cookie", creds.Cookies)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &exchange.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &exchange.TransportError{Op: op, Err: err}
	}
	if resp.StatusCode >= 500 {
		return &exchange.TransportError{Op: op, Err: fmt.Errorf("http status %d", resp.StatusCode)}
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return &exchange.ProtocolError{Op: op, Err: err}
	}

	if !env.Success || (env.Code != 0 && env.Code != 200) {
		code := strconv.Itoa(env.Code)
		switch c.classifier.Classify(code, env.Message, resp.StatusCode == http.StatusBadRequest) {
		case authfail.AuthenticationFailed:
			return &exchange.AuthenticationFailedError{Op: op, Message: env.Message}
		case authfail.Rejected:
			return &exchange.RejectedError{Op: op, Reason: env.Message}
		default:
			if resp.StatusCode == http.StatusNotFound || strings.Contains(strings.ToLower(env.Message), "not found") {
				return &notFoundError{Op: op, Message: env.Message}
			}
			return &exchange.ProtocolError{Op: op, Err: fmt.Errorf("code=%s message=%q", code, env.Message)}
		}
	}

	if result != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return &exchange.ProtocolError{Op: op, Err: err}
		}
	}
	return nil
}

// notFoundError marks an envelope-level "not found" response, so
// CloseListenKey can special-case it.
type notFoundError struct {
	Op      string
	Message string
}

func (e *notFoundError) Error() string { return fmt.Sprintf("%s: not found: %s", e.Op, e.Message) }

func isNotFound(err error) bool {
	_, ok := err.(*notFoundError)
	return ok
}
