package es

import (
	"context"
	"database/sql"
)

// DBTX is the minimal database surface the SQL record managers need.
// Both *sql.DB and *sql.Tx implement it, so internal helpers stay agnostic to
// whether they run inside an explicit transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

var (
	_ DBTX = (*sql.DB)(nil)
	_ DBTX = (*sql.Tx)(nil)
)
