// Package roles provides an in-memory role assigner and user directory.
// Production deployments adapt the engine to their real membership system;
// this implementation backs tests and single-node development.
package roles

import (
	"context"
	"sync"

	id "veriflow/pkg/domain"
	"veriflow/pkg/platform/sentinel"
	pstrings "veriflow/pkg/platform/strings"
)

type user struct {
	email       string
	displayName string
	roles       []string
}

// InMemory implements ports.RoleAssigner and ports.DirectoryReader.
type InMemory struct {
	mu    sync.RWMutex
	users map[id.UserID]*user
}

func NewInMemory() *InMemory {
	return &InMemory{users: make(map[id.UserID]*user)}
}

// SeedUser registers a user with contact details and an initial role set.
func (s *InMemory) SeedUser(userID id.UserID, email, displayName string, roles ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = &user{
		email:       email,
		displayName: displayName,
		roles:       pstrings.DedupeAndTrim(roles),
	}
}

func (s *InMemory) GetRoles(_ context.Context, userID id.UserID) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return append([]string(nil), u.roles...), nil
}

func (s *InMemory) SetSingleRole(_ context.Context, userID id.UserID, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	u.roles = []string{role}
	return nil
}

func (s *InMemory) RestoreRoles(_ context.Context, userID id.UserID, roles []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	u.roles = append([]string(nil), roles...)
	return nil
}

func (s *InMemory) Email(_ context.Context, userID id.UserID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return u.email, nil
}

func (s *InMemory) DisplayName(_ context.Context, userID id.UserID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return u.displayName, nil
}
