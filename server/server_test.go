// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/bvk/alphavol/api"
	"github.com/bvk/alphavol/creds"
	"github.com/bvk/alphavol/orchestrator"
	"github.com/bvk/alphavol/status"

	"github.com/shopspring/decimal"
)

func startTestServer(t *testing.T, manager *orchestrator.Manager, statusStore *status.Store) string {
	t.Helper()

	srv, err := New(manager, statusStore)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	addr := &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Start(ctx, addr); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return addr.String()
}

func postJSON[RESP any](t *testing.T, base, path string, req any) (*RESP, int) {
	t.Helper()

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("could not marshal request: %v", err)
	}
	resp, err := http.Post("http://"+base+path, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode
	}
	out := new(RESP)
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("could not decode response: %v", err)
	}
	return out, resp.StatusCode
}

func TestServerStatusGetAndList(t *testing.T) {
	statusStore := status.NewStore()
	statusStore.Set("demo", creds.UserID(1), status.Running, decimal.RequireFromString("12.5"), "running", time.Now())

	manager := orchestrator.NewManager(nil, nil, nil, nil, statusStore)
	base := startTestServer(t, manager, statusStore)

	get, code := postJSON[api.StatusGetResponse](t, base, api.StatusGetPath, &api.StatusGetRequest{StrategyID: "demo", UserID: 1})
	if code != http.StatusOK {
		t.Fatalf("status get: want 200, got %d", code)
	}
	if !get.Found || get.State != status.Running.String() {
		t.Fatalf("status get: unexpected response %+v", get)
	}

	miss, code := postJSON[api.StatusGetResponse](t, base, api.StatusGetPath, &api.StatusGetRequest{StrategyID: "demo", UserID: 2})
	if code != http.StatusOK || miss.Found {
		t.Fatalf("status get: want not-found response, got %+v (code %d)", miss, code)
	}

	list, code := postJSON[api.StatusListResponse](t, base, api.StatusListPath, &api.StatusListRequest{})
	if code != http.StatusOK {
		t.Fatalf("status list: want 200, got %d", code)
	}
	if len(list.Items) != 1 || list.Items[0].StrategyID != "demo" {
		t.Fatalf("status list: unexpected response %+v", list)
	}
}

func TestServerStrategyStartUnknown(t *testing.T) {
	statusStore := status.NewStore()
	manager := orchestrator.NewManager(nil, nil, nil, nil, statusStore)
	base := startTestServer(t, manager, statusStore)

	_, code := postJSON[api.StrategyStartResponse](t, base, api.StrategyStartPath, &api.StrategyStartRequest{StrategyID: "missing"})
	if code != http.StatusBadRequest {
		t.Fatalf("want 400 starting unknown strategy, got %d", code)
	}
}

func TestServerStrategyStopAllAndUserStop(t *testing.T) {
	statusStore := status.NewStore()
	manager := orchestrator.NewManager(nil, nil, nil, nil, statusStore)
	base := startTestServer(t, manager, statusStore)

	stopAll, code := postJSON[api.StrategyStopAllResponse](t, base, api.StrategyStopAllPath, &api.StrategyStopAllRequest{})
	if code != http.StatusOK || !stopAll.Stopped {
		t.Fatalf("stopall: unexpected response %+v (code %d)", stopAll, code)
	}

	_, code = postJSON[api.UserStopResponse](t, base, api.UserStopPath, &api.UserStopRequest{StrategyID: "missing", UserID: 1})
	if code != http.StatusBadRequest {
		t.Fatalf("want 400 stopping user of unknown strategy, got %d", code)
	}
}
