// Package tx runs database/sql work inside a single transaction.
package tx

import (
	"context"
	"database/sql"
	"fmt"
)

// Run begins a transaction, hands it to fn and commits when fn succeeds. Any
// error from fn or from commit rolls the transaction back.
func Run(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
