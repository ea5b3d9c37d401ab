// Copyright (c) 2025 BVK Chaitanya

package api

const StrategyStartPath = "/strategy/start"

type StrategyStartRequest struct {
	StrategyID string
}

type StrategyStartResponse struct {
	Started bool
}
