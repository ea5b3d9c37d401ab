// Copyright (c) 2025 BVK Chaitanya

package api

const StrategyStopPath = "/strategy/stop"

type StrategyStopRequest struct {
	StrategyID string
}

type StrategyStopResponse struct {
	Stopped bool
}
