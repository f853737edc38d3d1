package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/atria-live/presence/internal/model"
)

// Memory is an in-process UserCache backed by a map.
type Memory struct {
	loader Loader
	logger *slog.Logger

	mu    sync.RWMutex
	users map[string]model.User
}

// NewMemory creates a memory cache. loader may be nil, in which case
// FetchUserCollection reports ErrNoLoader.
func NewMemory(loader Loader, logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{
		loader: loader,
		logger: logger.With("cache", "memory"),
		users:  make(map[string]model.User),
	}
}

// FetchUserCollection replaces the roster with the loader's view.
func (m *Memory) FetchUserCollection(ctx context.Context) error {
	if m.loader == nil {
		return ErrNoLoader
	}

	users, err := m.loader(ctx)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}

	next := make(map[string]model.User, len(users))
	for _, u := range users {
		next[u.ID] = u
	}

	m.mu.Lock()
	m.users = next
	m.mu.Unlock()

	m.logger.Debug("roster replaced", "users", len(next))
	return nil
}

// AddUser inserts or replaces one occupant.
func (m *Memory) AddUser(ctx context.Context, id string, user model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = user
	return nil
}

// RemoveUser drops one occupant.
func (m *Memory) RemoveUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	return nil
}

// UpdatePosition moves an occupant already in the cache.
func (m *Memory) UpdatePosition(ctx context.Context, id string, pos model.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Position = pos
	m.users[id] = u
	return nil
}

// User returns one occupant by id.
func (m *Memory) User(id string) (model.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok
}

// Users returns a copy of the current roster.
func (m *Memory) Users() []model.User {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out
}

// Count returns the roster size.
func (m *Memory) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}
