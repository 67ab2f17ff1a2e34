// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package database

import (
	"context"
	"database/sql"

	"github.com/canonical/sqlair"
)

// TxnRunner defines an interface for running transactions against the
// engine database. Implementations apply retry semantics for transient
// store-side failures; everything else propagates to the caller.
type TxnRunner interface {
	// Txn executes the input function against the database, within a
	// transaction that depends on the input context. This is the function
	// that almost all downstream consumers should use.
	Txn(context.Context, func(context.Context, *sqlair.TX) error) error

	// StdTxn executes the input function against the database using the
	// standard library transaction type. Prefer Txn unless the work cannot
	// be expressed through sqlair.
	StdTxn(context.Context, func(context.Context, *sql.Tx) error) error
}

// TxnRunnerFactory aliases a function that returns a transaction runner or
// an error if the database is not available. State types hold one of these
// rather than a runner so that database access can be deferred until first
// use.
type TxnRunnerFactory = func() (TxnRunner, error)
