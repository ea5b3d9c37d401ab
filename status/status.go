// Copyright (c) 2025 BVK Chaitanya

// Package status tracks the per-(strategy,user) outcome the control plane
// reports: a small immutable snapshot struct updated under a lock, read by
// the HTTP status surface.
package status

import (
	"io"
	"sync"
	"time"

	"github.com/bvk/alphavol/creds"
	"github.com/shopspring/decimal"

	"github.com/bvkgo/topic"
)

// State is the lifecycle state of one (strategy, user) pair.
type State int

const (
	NotStarted State = iota
	FilteredSatisfied
	Running
	StoppedSuccess
	StoppedCanceled
	StoppedAuthFailed
	StoppedStreamFailed
	StoppedError
)

func (s State) String() string {
	switch s {
	case FilteredSatisfied:
		return "FilteredSatisfied"
	case Running:
		return "Running"
	case StoppedSuccess:
		return "StoppedSuccess"
	case StoppedCanceled:
		return "StoppedCanceled"
	case StoppedAuthFailed:
		return "StoppedAuthFailed"
	case StoppedStreamFailed:
		return "StoppedStreamFailed"
	case StoppedError:
		return "StoppedError"
	default:
		return "NotStarted"
	}
}

// Record is one (strategy, user) status snapshot.
type Record struct {
	StrategyID string
	UserID     creds.UserID

	State      State
	LastVolume decimal.Decimal
	Message    string
	UpdatedAt  time.Time
}

// Store holds the latest Record for every (strategy, user) pair the
// orchestrator has ever touched, and broadcasts every change on a topic so
// that log/alert watchers can follow transitions without polling. Safe for
// concurrent use.
type Store struct {
	mu      sync.Mutex
	records map[string]map[creds.UserID]*Record

	changes *topic.Topic[Record]
}

func NewStore() *Store {
	return &Store{
		records: make(map[string]map[creds.UserID]*Record),
		changes: topic.New[Record](),
	}
}

// Close shuts down the change topic, unblocking every subscriber.
func (s *Store) Close() {
	s.changes.Close()
}

// Receiver delivers status-change notifications from a Store subscription.
type Receiver struct {
	sub *topic.Receiver[Record]
	ch  <-chan Record
}

// Receive blocks until the next status-change notification, or returns
// io.EOF once the subscription has been closed.
func (r *Receiver) Receive() (Record, error) {
	v, ok := <-r.ch
	if !ok {
		return Record{}, io.EOF
	}
	return v, nil
}

// Close ends the subscription, unblocking any pending Receive call.
func (r *Receiver) Close() {
	r.sub.Unsubscribe()
}

// Subscribe returns a receiver of status-change notifications. limit and
// includeRecent follow topic.Subscribe semantics.
func (s *Store) Subscribe(limit int, includeRecent bool) (*Receiver, error) {
	sub, ch, err := s.changes.Subscribe(limit, includeRecent)
	if err != nil {
		return nil, err
	}
	return &Receiver{sub: sub, ch: ch}, nil
}

// Set records the current status for (strategyID, userID), stamped at at.
func (s *Store) Set(strategyID string, userID creds.UserID, state State, lastVolume decimal.Decimal, message string, at time.Time) {
	r := Record{
		StrategyID: strategyID,
		UserID:     userID,
		State:      state,
		LastVolume: lastVolume,
		Message:    message,
		UpdatedAt:  at,
	}

	s.mu.Lock()
	users, ok := s.records[strategyID]
	if !ok {
		users = make(map[creds.UserID]*Record)
		s.records[strategyID] = users
	}
	users[userID] = &r
	s.mu.Unlock()

	s.changes.Send(r)
}

// Get returns the recorded status for (strategyID, userID), or false if
// nothing has been recorded yet.
func (s *Store) Get(strategyID string, userID creds.UserID) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, ok := s.records[strategyID]
	if !ok {
		return Record{}, false
	}
	r, ok := users[userID]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// ListStrategy returns every recorded Record for strategyID, in no
// particular order.
func (s *Store) ListStrategy(strategyID string) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, ok := s.records[strategyID]
	if !ok {
		return nil
	}
	out := make([]Record, 0, len(users))
	for _, r := range users {
		out = append(out, *r)
	}
	return out
}

// List returns every recorded Record across all strategies.
func (s *Store) List() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for _, users := range s.records {
		for _, r := range users {
			out = append(out, *r)
		}
	}
	return out
}
