// Copyright (c) 2025 BVK Chaitanya

package api

const UserStopPath = "/strategy/user/stop"

type UserStopRequest struct {
	StrategyID string
	UserID     int64
}

type UserStopResponse struct {
	Stopped bool
}
