// Copyright (c) 2025 BVK Chaitanya

// Package server exposes the orchestrator's control plane over HTTP:
// Start/Stop/StopAll/StopUser and status queries, served as typed JSON
// handlers on a httputil.Server.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"

	"github.com/bvk/alphavol/api"
	"github.com/bvk/alphavol/creds"
	"github.com/bvk/alphavol/httputil"
	"github.com/bvk/alphavol/orchestrator"
	"github.com/bvk/alphavol/status"
)

// Server is the control-plane HTTP front end for one orchestrator.Manager.
type Server struct {
	http    *httputil.Server
	manager *orchestrator.Manager
	status  *status.Store

	listenerID int64
}

// New builds a Server and registers every control-plane handler. It does
// not start listening; call Start.
func New(manager *orchestrator.Manager, statusStore *status.Store) (*Server, error) {
	h, err := httputil.New(nil)
	if err != nil {
		return nil, fmt.Errorf("could not create http server: %w", err)
	}
	s := &Server{http: h, manager: manager, status: statusStore}
	s.registerHandlers()
	return s, nil
}

// Start begins listening on addr.
func (s *Server) Start(ctx context.Context, addr *net.TCPAddr) error {
	id, err := s.http.StartTCP(ctx, addr)
	if err != nil {
		return fmt.Errorf("could not start control plane listener: %w", err)
	}
	s.listenerID = id
	return nil
}

// Close stops the control-plane listener.
func (s *Server) Close() error {
	return s.http.Close()
}

func (s *Server) registerHandlers() {
	s.http.AddHandler(api.StrategyStartPath, jsonHandler(s.handleStrategyStart))
	s.http.AddHandler(api.StrategyStopPath, jsonHandler(s.handleStrategyStop))
	s.http.AddHandler(api.StrategyStopAllPath, jsonHandler(s.handleStrategyStopAll))
	s.http.AddHandler(api.UserStopPath, jsonHandler(s.handleUserStop))
	s.http.AddHandler(api.StatusGetPath, jsonHandler(s.handleStatusGet))
	s.http.AddHandler(api.StatusListPath, jsonHandler(s.handleStatusList))
	s.http.AddHandler("/pid", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, "%d", os.Getpid())
	}))
}

func (s *Server) handleStrategyStart(ctx context.Context, req *api.StrategyStartRequest) (*api.StrategyStartResponse, error) {
	if err := s.manager.Start(context.WithoutCancel(ctx), req.StrategyID); err != nil {
		return nil, err
	}
	return &api.StrategyStartResponse{Started: true}, nil
}

func (s *Server) handleStrategyStop(ctx context.Context, req *api.StrategyStopRequest) (*api.StrategyStopResponse, error) {
	if err := s.manager.Stop(req.StrategyID); err != nil {
		return nil, err
	}
	return &api.StrategyStopResponse{Stopped: true}, nil
}

func (s *Server) handleStrategyStopAll(ctx context.Context, req *api.StrategyStopAllRequest) (*api.StrategyStopAllResponse, error) {
	s.manager.StopAll()
	return &api.StrategyStopAllResponse{Stopped: true}, nil
}

func (s *Server) handleUserStop(ctx context.Context, req *api.UserStopRequest) (*api.UserStopResponse, error) {
	if err := s.manager.StopUser(req.StrategyID, creds.UserID(req.UserID)); err != nil {
		return nil, err
	}
	return &api.UserStopResponse{Stopped: true}, nil
}

func (s *Server) handleStatusGet(ctx context.Context, req *api.StatusGetRequest) (*api.StatusGetResponse, error) {
	rec, ok := s.status.Get(req.StrategyID, creds.UserID(req.UserID))
	if !ok {
		return &api.StatusGetResponse{Found: false}, nil
	}
	return &api.StatusGetResponse{
		Found:      true,
		State:      rec.State.String(),
		LastVolume: rec.LastVolume,
		Message:    rec.Message,
		UpdatedAt:  rec.UpdatedAt,
	}, nil
}

func (s *Server) handleStatusList(ctx context.Context, req *api.StatusListRequest) (*api.StatusListResponse, error) {
	var records []status.Record
	if req.StrategyID != "" {
		records = s.status.ListStrategy(req.StrategyID)
	} else {
		records = s.status.List()
	}

	resp := &api.StatusListResponse{Items: make([]*api.StatusListResponseItem, 0, len(records))}
	for _, r := range records {
		resp.Items = append(resp.Items, &api.StatusListResponseItem{
			StrategyID: r.StrategyID,
			UserID:     int64(r.UserID),
			State:      r.State.String(),
			LastVolume: r.LastVolume,
			Message:    r.Message,
			UpdatedAt:  r.UpdatedAt,
		})
	}
	return resp, nil
}

// jsonHandler adapts a typed (ctx, *REQ) -> (*RESP, error) function into an
// http.Handler: decode the JSON body, invoke fn, encode the JSON response.
// It is the server-side twin of the subcmds.Post[RESP, REQ] client helper.
func jsonHandler[REQ, RESP any](fn func(ctx context.Context, req *REQ) (*RESP, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := new(REQ)
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(req); err != nil {
				http.Error(w, fmt.Sprintf("could not decode request: %v", err), http.StatusBadRequest)
				return
			}
		}

		resp, err := fn(r.Context(), req)
		if err != nil {
			slog.ErrorContext(r.Context(), "control plane request failed", "path", r.URL.Path, "err", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.ErrorContext(r.Context(), "could not encode response", "path", r.URL.Path, "err", err)
		}
	})
}
