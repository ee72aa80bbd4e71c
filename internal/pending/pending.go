// Package pending implements the in-memory correlation store between the
// background router and the popup approver. Every sensitive action becomes a
// pending request with an unguessable id; the popup resolves it once, and a
// single waiter consumes it. Records are purged on consumption or timeout,
// whichever comes first.
package pending

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Lisboaa111/Nillion-Keychain/internal/metrics"
	"github.com/Lisboaa111/Nillion-Keychain/internal/wire"
)

// DefaultTimeout is how long the background waits for a human decision.
// It is deliberately longer than the page-side timeout: the page protects
// itself against an unreachable bridge, the background against a slow human.
const DefaultTimeout = 5 * time.Minute

var (
	// ErrNotFound is returned when the request id is unknown or already
	// consumed.
	ErrNotFound = errors.New("request not found")

	// ErrRejected is returned when the user declined the request. Terminal,
	// no retry. The message is what page callers see.
	ErrRejected = errors.New("Rejected")

	// ErrTimeout is returned when no decision arrived within the window.
	// The record is purged.
	ErrTimeout = errors.New("Timeout")
)

// defaultResult is returned for approvals that carry no explicit result.
var defaultResult = json.RawMessage(`{"success":true}`)

type request struct {
	view     wire.PendingView
	approved *bool
	result   json.RawMessage
	done     chan struct{}
	resolved bool
}

// Store owns the pending request map. It is mutated only through this type;
// the background router is its single logical writer.
type Store struct {
	mu      sync.Mutex
	reqs    map[string]*request
	timeout time.Duration
}

// NewStore returns a Store with the given default await timeout.
// A non-positive timeout selects DefaultTimeout.
func NewStore(timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Store{
		reqs:    make(map[string]*request),
		timeout: timeout,
	}
}

// Create registers a request awaiting approval and returns its id. Ids are
// UUIDv4: random, non-sequential, and unguessable, so a foreign origin
// cannot inject a resolution by prediction.
func (s *Store) Create(origin, action string, data json.RawMessage) string {
	id := uuid.NewString()

	s.mu.Lock()
	s.reqs[id] = &request{
		view: wire.PendingView{
			ID:     id,
			Origin: origin,
			Action: action,
			Data:   data,
		},
		done: make(chan struct{}),
	}
	s.mu.Unlock()

	metrics.PendingRequests.Inc()
	return id
}

// Get returns a snapshot of the request for the popup to render.
func (s *Store) Get(id string) (*wire.PendingView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reqs[id]
	if !ok {
		return nil, false
	}
	view := r.view
	return &view, true
}

// List returns snapshots of all unresolved requests.
func (s *Store) List() []*wire.PendingView {
	s.mu.Lock()
	defer s.mu.Unlock()

	views := make([]*wire.PendingView, 0, len(s.reqs))
	for _, r := range s.reqs {
		if r.resolved {
			continue
		}
		view := r.view
		views = append(views, &view)
	}
	return views
}

// Len reports the number of live records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reqs)
}

// Resolve records the popup's decision and wakes the waiter. When
// approved=false the result is ignored. Calling Resolve twice before the
// waiter consumes the record overwrites the decision: last write wins, which
// is the documented behavior if the user somehow opens two popups for the
// same id. Returns false when the id is unknown or already consumed.
func (s *Store) Resolve(id string, approved bool, result json.RawMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reqs[id]
	if !ok {
		return false
	}

	r.approved = &approved
	if approved {
		r.result = result
	} else {
		r.result = nil
	}
	if !r.resolved {
		r.resolved = true
		close(r.done)
	}
	return true
}

// Await blocks until the request is resolved, the timeout elapses, or ctx is
// canceled. The record is removed in every exit path, and each id is
// consumed at most once: a second Await for a consumed id fails with
// ErrNotFound. A non-positive timeout selects the store default.
func (s *Store) Await(ctx context.Context, id string, timeout time.Duration) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = s.timeout
	}

	s.mu.Lock()
	r, ok := s.reqs[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-r.done:
	case <-timer.C:
		s.remove(id)
		metrics.ApprovalsTotal.WithLabelValues("timeout").Inc()
		return nil, ErrTimeout
	case <-ctx.Done():
		s.remove(id)
		return nil, ctx.Err()
	}

	// Consume exactly once: the record leaves the map before the decision is
	// read, so a concurrent waiter on the same id observes ErrNotFound.
	s.mu.Lock()
	if _, live := s.reqs[id]; !live {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	delete(s.reqs, id)
	approved := *r.approved
	result := r.result
	s.mu.Unlock()

	metrics.PendingRequests.Dec()

	if !approved {
		metrics.ApprovalsTotal.WithLabelValues("rejected").Inc()
		return nil, ErrRejected
	}

	metrics.ApprovalsTotal.WithLabelValues("approved").Inc()
	if result == nil {
		return defaultResult, nil
	}
	return result, nil
}

// Drop discards a record without resolving it, for when the approval surface
// could not be opened and nothing will ever wait on the id.
func (s *Store) Drop(id string) {
	s.remove(id)
}

func (s *Store) remove(id string) {
	s.mu.Lock()
	_, live := s.reqs[id]
	delete(s.reqs, id)
	s.mu.Unlock()
	if live {
		metrics.PendingRequests.Dec()
	}
}
