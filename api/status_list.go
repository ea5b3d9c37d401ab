// Copyright (c) 2025 BVK Chaitanya

package api

import (
	"time"

	"github.com/shopspring/decimal"
)

const StatusListPath = "/status/list"

type StatusListRequest struct {
	// StrategyID restricts the listing to one strategy; empty lists every
	// strategy's users.
	StrategyID string
}

type StatusListResponseItem struct {
	StrategyID string
	UserID     int64
	State      string
	LastVolume decimal.Decimal
	Message    string
	UpdatedAt  time.Time
}

type StatusListResponse struct {
	Items []*StatusListResponseItem
}
