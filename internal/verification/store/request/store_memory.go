// Package request provides the verification request stores. The in-memory
// store backs tests and development; the Postgres store is the production
// persistence. Both enforce the version guard on update.
package request

import (
	"context"
	"sync"

	"veriflow/internal/verification/models"
	id "veriflow/pkg/domain"
	"veriflow/pkg/platform/sentinel"
)

// InMemory keeps requests keyed by ID with a per-user index for the latest
// record. It intentionally favors clarity over performance.
type InMemory struct {
	mu       sync.RWMutex
	requests map[id.RequestID]*models.Request
	byUser   map[id.UserID]id.RequestID
}

func NewInMemory() *InMemory {
	return &InMemory{
		requests: make(map[id.RequestID]*models.Request),
		byUser:   make(map[id.UserID]id.RequestID),
	}
}

func (s *InMemory) Create(_ context.Context, request *models.Request) (id.RequestID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if request.ID.IsNil() {
		request.ID = id.NewRequestID()
	}
	if _, exists := s.requests[request.ID]; exists {
		return id.RequestID{}, sentinel.ErrConflict
	}
	request.Version = 1
	s.requests[request.ID] = request.Clone()
	s.byUser[request.UserID] = request.ID
	return request.ID, nil
}

func (s *InMemory) Load(_ context.Context, requestID id.RequestID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return stored.Clone(), nil
}

func (s *InMemory) Update(_ context.Context, request *models.Request, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.requests[request.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return sentinel.ErrConflict
	}
	request.Version = expectedVersion + 1
	s.requests[request.ID] = request.Clone()
	s.byUser[request.UserID] = request.ID
	return nil
}

func (s *InMemory) FindPending(_ context.Context, userID id.UserID, formID id.FormID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, stored := range s.requests {
		if stored.UserID == userID && stored.FormID == formID && stored.Status == models.StatusPending {
			return stored.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindLatest(_ context.Context, userID id.UserID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	requestID, ok := s.byUser[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	stored, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return stored.Clone(), nil
}

// PendingCountForUser reports how many of the user's requests are pending.
// Test hook for the single-in-flight invariant.
func (s *InMemory) PendingCountForUser(userID id.UserID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, stored := range s.requests {
		if stored.UserID == userID && stored.Status == models.StatusPending {
			count++
		}
	}
	return count
}
