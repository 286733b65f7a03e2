package postgresql

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rcalendar/msa-rcalendar/internal/pkg/database"
)

// txContextKey is a private type so WithTx/GetQuerier's context value can
// never collide with a key set elsewhere in the request's context.Context
// (a bare string key, as the teacher's repository layer originally used,
// is exactly the kind of accidental collision go vet warns about).
type txContextKey struct{}

// WithTx binds tx into ctx so repository calls made with the returned
// context run against the transaction instead of the pool.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// WithTransaction executes fn inside a database transaction. Per spec §5,
// every interval mutation affecting one resource in one request runs
// inside a single transaction; callers build their tx-scoped context with
// WithTx before invoking repository methods inside fn.
func WithTransaction(ctx context.Context, db *database.DB, fn func(tx pgx.Tx) error) error {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				fmt.Printf("rollback error during panic recovery: %v\n", rbErr)
			}
			panic(p)
		}
	}()

	// Execute function
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback error: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// GetQuerier returns either transaction or pool
// Used in repositories to support both transactional and non-transactional operations
func GetQuerier(ctx context.Context, db *database.DB) database.Querier {
	if tx, ok := ctx.Value(txContextKey{}).(pgx.Tx); ok {
		return tx
	}
	return db.Pool
}

// LockResource takes a row-lock on resourceID for the lifetime of the
// surrounding transaction, per spec §5: every interval mutation affecting
// one resource runs with the resource row locked, so two requests racing
// to save intervals on the same resource serialize instead of both
// observing a pre-mutation canonical set and producing an overlap.
func LockResource(ctx context.Context, db *database.DB, resourceID string) error {
	q := GetQuerier(ctx, db)
	_, err := q.Exec(ctx, `SELECT id FROM resources WHERE id = $1 FOR UPDATE`, resourceID)
	return err
}
