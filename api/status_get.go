// Copyright (c) 2025 BVK Chaitanya

package api

import (
	"time"

	"github.com/shopspring/decimal"
)

const StatusGetPath = "/status/get"

type StatusGetRequest struct {
	StrategyID string
	UserID     int64
}

type StatusGetResponse struct {
	Found      bool
	State      string
	LastVolume decimal.Decimal
	Message    string
	UpdatedAt  time.Time
}
