package store

import (
	"github.com/rotisserie/eris"

	"github.com/wonny/finmetric/internal/contracts"
	"github.com/wonny/finmetric/pkg/config"
	"github.com/wonny/finmetric/pkg/database"
	"github.com/wonny/finmetric/pkg/logger"
)

var (
	_ contracts.Store = (*Postgres)(nil)
	_ contracts.Store = (*Memory)(nil)
)

// Open returns the store selected by STORE_DRIVER.
// postgres 드라이버면 pool 이 필요하다.
func Open(cfg *config.Config, pool database.Pool, log *logger.Logger) (contracts.Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		return NewMemory(), nil
	case "postgres":
		if pool == nil {
			return nil, eris.New("store: postgres driver requires a database pool")
		}
		return NewPostgres(pool, cfg.Resolver.UpsertBatch, log), nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.StoreDriver)
	}
}
