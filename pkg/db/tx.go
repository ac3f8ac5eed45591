package db

import (
	"context"
	"database/sql"
	"fmt"
)

// TxRunner manages database transaction boundaries.
// Repositories pass a closure that receives the tx-bound handle.
type TxRunner struct {
	database *sql.DB
}

// NewTxRunner creates a new TxRunner instance.
func NewTxRunner(database *sql.DB) *TxRunner {
	return &TxRunner{database: database}
}

// WithTx executes fn within a database transaction.
// If fn returns an error, the transaction is rolled back.
// Otherwise, the transaction is committed.
//
// Usage example:
//
//	err := txRunner.WithTx(ctx, func(tx *sql.Tx) error {
//	    var status string
//	    if err := tx.QueryRowContext(ctx, selectForUpdate, id).Scan(&status); err != nil {
//	        return err
//	    }
//	    _, err := tx.ExecContext(ctx, update, id)
//	    return err
//	})
func (r *TxRunner) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	_, err := WithTxResult(ctx, r, func(tx *sql.Tx) (struct{}, error) {
		return struct{}{}, fn(tx)
	})
	return err
}

// WithTxResult executes fn within a database transaction and returns its result.
func WithTxResult[T any](ctx context.Context, r *TxRunner, fn func(tx *sql.Tx) (T, error)) (T, error) {
	var result T

	tx, err := r.database.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin transaction: %w", err)
	}

	result, err = fn(tx)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return result, fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return result, err
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("commit transaction: %w", err)
	}

	return result, nil
}

// DB returns the underlying database connection.
// Use this for single statements that need no transaction.
func (r *TxRunner) DB() *sql.DB {
	return r.database
}
