package services

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/pactline/pactline/pkg/composables"
	"github.com/pactline/pactline/pkg/constants"
)

// inTx runs fn atomically. With a pool in the context it opens a fresh
// transaction; with a request transaction already present it nests a
// savepoint so a failed operation leaves no writes behind; with
// transaction-free repositories (tests) it runs fn directly.
func inTx[T any](ctx context.Context, fn func(txCtx context.Context) (T, error)) (T, error) {
	if tx, ok := ctx.Value(constants.TxKey).(pgx.Tx); ok {
		return inSavepoint(ctx, tx, fn)
	}
	if _, err := composables.UsePool(ctx); err != nil {
		return fn(ctx)
	}

	var out T
	err := composables.InTx(ctx, func(txCtx context.Context) error {
		var fnErr error
		out, fnErr = fn(txCtx)
		return fnErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// inSavepoint nests a transaction (a savepoint under pgx) inside the request
// transaction. The outer transaction stays usable either way.
func inSavepoint[T any](ctx context.Context, tx pgx.Tx, fn func(txCtx context.Context) (T, error)) (T, error) {
	var zero T
	nested, err := tx.Begin(ctx)
	if err != nil {
		return zero, err
	}
	out, err := fn(composables.WithTx(ctx, nested))
	if err != nil {
		if rErr := nested.Rollback(ctx); rErr != nil && !errors.Is(rErr, pgx.ErrTxClosed) {
			return zero, errors.Join(err, rErr)
		}
		return zero, err
	}
	if err := nested.Commit(ctx); err != nil {
		return zero, err
	}
	return out, nil
}
