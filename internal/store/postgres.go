package store

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/wonny/finmetric/internal/contracts"
	"github.com/wonny/finmetric/pkg/database"
	"github.com/wonny/finmetric/pkg/logger"
)

// DefaultBatchSize bounds rows per upsert transaction
const DefaultBatchSize = 5000

// Postgres implements contracts.Store on PostgreSQL
// ⭐ SSOT: metric / category / company 저장과 조회는 여기서만
type Postgres struct {
	pool      database.Pool
	batchSize int
	logger    *logger.Logger
}

// NewPostgres creates a store over pool (pgxpool or pgxmock)
func NewPostgres(pool database.Pool, batchSize int, log *logger.Logger) *Postgres {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Postgres{
		pool:      pool,
		batchSize: batchSize,
		logger:    log.Module("store"),
	}
}

// Ping checks database connectivity
func (s *Postgres) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return eris.Wrap(err, "store: ping")
	}
	return nil
}

// inChunks runs fn over consecutive slices of at most size items, each in
// its own transaction. 실패한 chunk만 롤백하고 나머지는 계속 진행한다.
func inChunks[T any](ctx context.Context, s *Postgres, what string, items []T, fn func(ctx context.Context, tx pgx.Tx, item T) error) error {
	var (
		firstErr error
		failed   int
	)

	for start := 0; start < len(items); start += s.batchSize {
		end := min(start+s.batchSize, len(items))

		if err := runChunk(ctx, s.pool, items[start:end], fn); err != nil {
			if ctx.Err() != nil {
				return eris.Wrapf(ctx.Err(), "store: upsert %s", what)
			}
			s.logger.WithError(err).
				WithFields(map[string]interface{}{"kind": what, "offset": start, "size": end - start}).
				Error("Upsert batch rolled back")
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if firstErr != nil {
		return eris.Wrapf(firstErr, "store: %d %s batch(es) failed", failed, what)
	}
	return nil
}

func runChunk[T any](ctx context.Context, pool database.Pool, chunk []T, fn func(ctx context.Context, tx pgx.Tx, item T) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "begin transaction")
	}
	defer tx.Rollback(ctx)

	for _, item := range chunk {
		if err := fn(ctx, tx, item); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "commit transaction")
	}
	return nil
}

// escapeLike escapes LIKE wildcards in user supplied text
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// parseDecimal parses a numeric column scanned as text
func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, eris.Wrapf(err, "store: parse numeric %q", s)
	}
	return d, nil
}

// parseNullDecimal treats "" (COALESCE'd NULL) as invalid
func parseNullDecimal(s string) decimal.NullDecimal {
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// nullDecimalArg converts to a query argument; NULL when invalid
func nullDecimalArg(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return contracts.RoundValue(d.Decimal).String()
}
