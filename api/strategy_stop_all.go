// Copyright (c) 2025 BVK Chaitanya

package api

const StrategyStopAllPath = "/strategy/stopall"

type StrategyStopAllRequest struct{}

type StrategyStopAllResponse struct {
	Stopped bool
}
