package dbutil

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Finalize turns the `?` placeholders produced by gendry into postgres `$n` ones.
func Finalize(query string, args []interface{}) (string, []interface{}) {
	return sqlx.Rebind(sqlx.DOLLAR, query), args
}

// InTx runs fn inside a transaction, committing on success and rolling back otherwise.
func InTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
