// Copyright (c) 2025 BVK Chaitanya

package alpha

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// envelope is the exchange's top-level REST response wrapper: every
// endpoint returns { code, message, data, success }.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type catalogEntryWire struct {
	Symbol    string          `json:"symbol"`
	LastPrice decimal.Decimal `json:"lastPrice"`
	MulPoint  int64           `json:"mulPoint"`
	Chain     string          `json:"chain"`
}

type volumeEntryWire struct {
	TokenSymbol string          `json:"tokenSymbol"`
	Volume      decimal.Decimal `json:"volume"`
}

type otoOrderRequest struct {
	ClientOrderID string          `json:"clientOrderId"`
	Symbol        string          `json:"symbol"`
	Side          string          `json:"side"`
	Type          string          `json:"type"`
	Quantity      decimal.Decimal `json:"quantity"`
	BuyPrice      decimal.Decimal `json:"price"`
	SellPrice     decimal.Decimal `json:"stopPrice"`
}

type otoOrderResponse struct {
	WorkingOrderID string `json:"workingOrderId"`
	PendingOrderID string `json:"pendingOrderId"`
}

type listenKeyResponse struct {
	ListenKey string `json:"listenKey"`
}

// subscribeFrame is the outbound WebSocket subscription request:
// `{ "method": "SUBSCRIBE", "params": ["<user-topic>"], "id": N }`.
type subscribeFrame struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// subscribeAck is the expected acknowledgement: `{ "result": null, "id": N }`.
type subscribeAck struct {
	Result json.RawMessage `json:"result"`
	ID     *int64          `json:"id"`
}

// executionReportFrame wraps one order-event data frame.
type executionReportFrame struct {
	EventType string `json:"e"`
	OrderID   string `json:"i"`
	Status    string `json:"X"`
	Side      string `json:"S"`
	ExecQty   string `json:"z"`
	EventTime int64  `json:"E"`
}
