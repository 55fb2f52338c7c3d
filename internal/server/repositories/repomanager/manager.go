// Package repomanager selects and owns the account store backend: an
// in-memory store or PostgreSQL with goose migrations.
package repomanager

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/unidrive/internal/server/config"
	"github.com/dmitrijs2005/unidrive/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Users() users.Repository
	Close() error
}

// New returns the manager for cfg.StoreType.
func New(cfg *config.Config) (RepositoryManager, error) {
	switch cfg.StoreType {
	case config.StoreMemory:
		return NewInMemoryRepositoryManager(), nil
	case config.StorePostgres:
		return NewPostgresRepositoryManager(cfg.DatabaseDSN)
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.StoreType)
	}
}
