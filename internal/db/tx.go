package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Querier is what store operations run against: a *sqlx.Tx inside a scope,
// or the *sqlx.DB for read-only calls outside of one.
type Querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Transactor owns transactional scopes. WithinTx commits when fn returns nil
// and rolls back on any error or panic.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(q Querier) error) error
	Reader() Querier
}

// SQLTransactor is the sqlx implementation of Transactor.
type SQLTransactor struct {
	db   *sqlx.DB
	opts *sql.TxOptions
}

// NewTransactor builds a Transactor running read-committed transactions.
func NewTransactor(db *sqlx.DB) *SQLTransactor {
	return &SQLTransactor{db: db, opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted}}
}

func (t *SQLTransactor) Reader() Querier {
	return t.db
}

func (t *SQLTransactor) WithinTx(ctx context.Context, fn func(q Querier) error) (err error) {
	tx, err := t.db.BeginTxx(ctx, t.opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
