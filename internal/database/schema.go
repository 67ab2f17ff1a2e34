// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package database

import (
	"context"
	"database/sql"

	"github.com/juju/errors"

	coredatabase "github.com/procession-engine/procession/core/database"
)

// ApplyDeltas applies the input schema deltas, in order, inside a single
// transaction against the input runner.
func ApplyDeltas(ctx context.Context, runner coredatabase.TxnRunner, deltas []coredatabase.Delta) error {
	err := runner.StdTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, delta := range deltas {
			if _, err := tx.ExecContext(ctx, delta.Stmt(), delta.Args()...); err != nil {
				return errors.Annotatef(err, "applying schema delta %q", delta.Stmt())
			}
		}
		return nil
	})
	return errors.Trace(err)
}
