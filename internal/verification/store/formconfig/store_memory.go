// Package formconfig provides config-provider implementations. Absence of a
// config is a normal outcome (the form is not a verification form), reported
// as sentinel.ErrNotFound.
package formconfig

import (
	"context"
	"sync"

	"veriflow/internal/verification/models"
	id "veriflow/pkg/domain"
	"veriflow/pkg/platform/sentinel"
)

type InMemory struct {
	mu      sync.RWMutex
	configs map[id.FormID]*models.FormConfig
}

func NewInMemory() *InMemory {
	return &InMemory{configs: make(map[id.FormID]*models.FormConfig)}
}

// Put registers or replaces a form's config.
func (s *InMemory) Put(config *models.FormConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[config.FormID] = config
}

func (s *InMemory) GetByFormID(_ context.Context, formID id.FormID) (*models.FormConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	config, ok := s.configs[formID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	dup := *config
	dup.Recipients = append([]string(nil), config.Recipients...)
	return &dup, nil
}
