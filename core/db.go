package core

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// DBExecutor is satisfied by both *sqlx.DB and *sqlx.Tx, so repositories can run the same queries
// inside or outside of a transaction.
type DBExecutor interface {
	sqlx.ExtContext

	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// DBTransactor is an open transaction.
type DBTransactor interface {
	DBExecutor

	Commit() error
	Rollback() error
}
