// Copyright (c) 2025 BVK Chaitanya

package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/bvk/alphavol/config"
	"github.com/bvk/alphavol/creds"
	"github.com/bvk/alphavol/exchange"
	"github.com/bvk/alphavol/notify"
	"github.com/bvk/alphavol/status"
)

// Manager fans a set of config.StrategyConfig values out across one
// Strategy each. Only Enabled strategies are startable.
type Manager struct {
	client      exchange.Client
	credStore   creds.Store
	newStream   StreamFactory
	messenger   notify.Messenger
	statusStore *status.Store

	mu         sync.Mutex
	configs    map[string]config.StrategyConfig
	running    map[string]*Strategy
}

func NewManager(client exchange.Client, credStore creds.Store, newStream StreamFactory, messenger notify.Messenger, statusStore *status.Store) *Manager {
	return &Manager{
		client:      client,
		credStore:   credStore,
		newStream:   newStream,
		messenger:   messenger,
		statusStore: statusStore,
		configs:     make(map[string]config.StrategyConfig),
		running:     make(map[string]*Strategy),
	}
}

// LoadConfigs registers every parsed StrategyConfig, replacing any prior
// registration with the same ID. It does not start anything.
func (m *Manager) LoadConfigs(configs []config.StrategyConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cfg := range configs {
		m.configs[cfg.ID] = cfg
	}
}

// StartAll starts every registered strategy with Enabled set, skipping ones
// already running.
func (m *Manager) StartAll(ctx context.Context) {
	m.mu.Lock()
	var toStart []config.StrategyConfig
	for id, cfg := range m.configs {
		if !cfg.Enabled {
			continue
		}
		if _, running := m.running[id]; running {
			continue
		}
		toStart = append(toStart, cfg)
	}
	m.mu.Unlock()

	for _, cfg := range toStart {
		m.Start(ctx, cfg.ID)
	}
}

// Start begins running strategyID in the background. Returns an error if
// strategyID is unknown, disabled, or already running.
func (m *Manager) Start(ctx context.Context, strategyID string) error {
	m.mu.Lock()
	cfg, ok := m.configs[strategyID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("unknown strategy %q", strategyID)
	}
	if !cfg.Enabled {
		m.mu.Unlock()
		return fmt.Errorf("strategy %q is disabled", strategyID)
	}
	if _, running := m.running[strategyID]; running {
		m.mu.Unlock()
		return fmt.Errorf("strategy %q is already running", strategyID)
	}

	st := New(cfg, m.client, m.credStore, m.newStream, m.messenger, m.statusStore)
	m.running[strategyID] = st
	m.mu.Unlock()

	go func() {
		st.Run(ctx)
		m.mu.Lock()
		delete(m.running, strategyID)
		m.mu.Unlock()
	}()
	return nil
}

// Stop stops strategyID if it is running, and blocks until its users have
// all reached a terminal state. The strategy is removed from the running
// set before Stop returns, so IsRunning observes the stop immediately.
func (m *Manager) Stop(strategyID string) error {
	m.mu.Lock()
	st, ok := m.running[strategyID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("strategy %q is not running", strategyID)
	}
	st.Stop()
	m.mu.Lock()
	delete(m.running, strategyID)
	m.mu.Unlock()
	return nil
}

// StopAll stops every currently running strategy and waits for all of them
// to finish tearing down.
func (m *Manager) StopAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.running))
	for id := range m.running {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			m.Stop(id)
		}(id)
	}
	wg.Wait()
}

// StopUser stops one user within strategyID without disturbing the rest of
// that strategy's users.
func (m *Manager) StopUser(strategyID string, userID creds.UserID) error {
	m.mu.Lock()
	st, ok := m.running[strategyID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("strategy %q is not running", strategyID)
	}
	if !st.StopUser(userID) {
		return fmt.Errorf("user %d is not active in strategy %q", userID, strategyID)
	}
	return nil
}

// IsRunning reports whether strategyID currently has an active run.
func (m *Manager) IsRunning(strategyID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.running[strategyID]
	return ok
}
