package audit

import (
	"context"
	"sync"

	id "veriflow/pkg/domain"
)

// InMemoryStore keeps audit entries per request. It intentionally favors
// clarity over performance and doubles as the test sink.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[id.RequestID][]Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[id.RequestID][]Entry)}
}

func (s *InMemoryStore) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.Data = cloneData(entry.Data)
	s.entries[entry.RequestID] = append(s.entries[entry.RequestID], entry)
	return nil
}

func (s *InMemoryStore) ListByRequest(_ context.Context, requestID id.RequestID) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.entries[requestID]
	out := make([]Entry, len(stored))
	for i, entry := range stored {
		entry.Data = cloneData(entry.Data)
		out[i] = entry
	}
	return out, nil
}

func cloneData(data map[string]string) map[string]string {
	if data == nil {
		return nil
	}
	dup := make(map[string]string, len(data))
	for k, v := range data {
		dup[k] = v
	}
	return dup
}
