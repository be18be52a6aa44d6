package store

import (
	"context"
	_ "embed"

	"github.com/rotisserie/eris"

	"github.com/wonny/finmetric/pkg/database"
)

//go:embed schema.sql
var schemaSQL string

// migrationLockID serializes concurrent migrate runs across processes
const migrationLockID = 7_412_003

// Migrate applies the embedded schema under an advisory lock
func Migrate(ctx context.Context, pool database.Pool) error {
	if _, err := pool.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return eris.Wrap(err, "store: acquire migration lock")
	}
	defer func() {
		_, _ = pool.Exec(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", migrationLockID)
	}()

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return eris.Wrap(err, "store: apply schema")
	}
	return nil
}

// Schema returns the embedded DDL
func Schema() string {
	return schemaSQL
}
