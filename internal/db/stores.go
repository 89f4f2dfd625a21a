package db

import (
	"context"
	"database/sql"
	"fmt"

	auditrepo "chancafe-q/backend/internal/audit/repository"
	"chancafe-q/backend/internal/config"
	sessionrepo "chancafe-q/backend/internal/session/repository"
	userrepo "chancafe-q/backend/internal/user/repository"
)

// Stores bundles the repositories selected by STORE_DRIVER.
type Stores struct {
	Users    userrepo.Repository
	Sessions sessionrepo.Repository
	Activity auditrepo.Repository
	// DB is nil for the memory driver.
	DB *sql.DB
}

// OpenStores returns Postgres-backed repositories, or in-process ones when the driver is memory.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		return &Stores{
			Users:    userrepo.NewMemoryRepository(),
			Sessions: sessionrepo.NewMemoryRepository(),
			Activity: auditrepo.NewMemoryRepository(),
		}, nil
	case config.StoreDriverPostgres:
		pool, err := OpenContext(ctx, cfg.DatabaseURL, DefaultPoolOptions)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		return &Stores{
			Users:    userrepo.NewPostgresRepository(pool),
			Sessions: sessionrepo.NewPostgresRepository(pool),
			Activity: auditrepo.NewPostgresRepository(pool),
			DB:       pool,
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// Close releases the database pool, if any.
func (s *Stores) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}
