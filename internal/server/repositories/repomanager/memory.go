package repomanager

import (
	"context"

	"github.com/dmitrijs2005/unidrive/internal/server/repositories/users"
)

// InMemoryRepositoryManager keeps all data in process memory. It has no
// schema, so RunMigrations is a no-op.
type InMemoryRepositoryManager struct {
	users *users.MemoryRepository
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{users: users.NewMemoryRepository()}
}

func (m *InMemoryRepositoryManager) RunMigrations(ctx context.Context) error {
	return nil
}

func (m *InMemoryRepositoryManager) Users() users.Repository {
	return m.users
}

func (m *InMemoryRepositoryManager) Close() error {
	return nil
}
