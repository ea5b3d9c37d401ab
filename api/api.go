// Copyright (c) 2025 BVK Chaitanya

// Package api declares the control-plane request/response types for the
// orchestrator's HTTP surface, one file per endpoint: a path constant plus
// a Request/Response struct pair.
package api
