// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/canonical/sqlair"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"

	coredatabase "github.com/procession-engine/procession/core/database"
	corelogger "github.com/procession-engine/procession/core/logger"
	"github.com/procession-engine/procession/internal/logger"
)

const (
	defaultTransactionAttempts = 50
	defaultRetryDelay          = time.Millisecond
	defaultMaxRetryDelay       = 250 * time.Millisecond
)

// Option configures a transaction runner.
type Option func(*txnRunner)

// WithClock sets the clock used for retry backoff.
func WithClock(c clock.Clock) Option {
	return func(r *txnRunner) {
		r.clock = c
	}
}

// WithLogger sets the logger used for trace output.
func WithLogger(l corelogger.Logger) Option {
	return func(r *txnRunner) {
		r.logger = l
	}
}

// WithAttempts sets the number of attempts made for a transaction that
// fails with a retryable error before giving up.
func WithAttempts(n int) Option {
	return func(r *txnRunner) {
		r.attempts = n
	}
}

// txnRunner runs transactions against a single database handle, retrying
// those that fail due to transient store-side contention. Anything that is
// not classified retryable propagates to the caller after one attempt.
type txnRunner struct {
	db       *sqlair.DB
	clock    clock.Clock
	logger   corelogger.Logger
	attempts int
}

// NewTxnRunner returns a transaction runner over the input database.
func NewTxnRunner(db *sql.DB, opts ...Option) coredatabase.TxnRunner {
	r := &txnRunner{
		db:       sqlair.NewDB(db),
		clock:    clock.WallClock,
		logger:   logger.GetLogger("procession.database"),
		attempts: defaultTransactionAttempts,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Txn executes the input function inside a sqlair transaction,
// committing it if the function returns nil and rolling it back
// otherwise.
func (r *txnRunner) Txn(ctx context.Context, fn func(context.Context, *sqlair.TX) error) error {
	return errors.Trace(r.retry(ctx, func() error {
		tx, err := r.db.Begin(ctx, nil)
		if err != nil {
			return errors.Trace(err)
		}

		if err := fn(ctx, tx); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.logger.Warningf(ctx, "failed to rollback transaction: %v", rbErr)
			}
			return errors.Trace(err)
		}
		return errors.Trace(tx.Commit())
	}))
}

// StdTxn executes the input function inside a standard library
// transaction. Prefer Txn unless the work cannot be expressed through
// sqlair.
func (r *txnRunner) StdTxn(ctx context.Context, fn func(context.Context, *sql.Tx) error) error {
	return errors.Trace(r.retry(ctx, func() error {
		tx, err := r.db.PlainDB().BeginTx(ctx, nil)
		if err != nil {
			return errors.Trace(err)
		}

		if err := fn(ctx, tx); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.logger.Warningf(ctx, "failed to rollback transaction: %v", rbErr)
			}
			return errors.Trace(err)
		}
		return errors.Trace(tx.Commit())
	}))
}

// retry runs the input function, retrying with exponential backoff for as
// long as it returns a retryable error and the context remains live.
func (r *txnRunner) retry(ctx context.Context, fn func() error) error {
	return retry.Call(retry.CallArgs{
		Func: fn,
		IsFatalError: func(err error) bool {
			return !IsErrRetryable(err)
		},
		NotifyFunc: func(lastError error, attempt int) {
			if attempt > 1 {
				r.logger.Tracef(ctx, "retrying transaction (attempt %d): %v", attempt, lastError)
			}
		},
		Attempts:    r.attempts,
		Delay:       defaultRetryDelay,
		MaxDelay:    defaultMaxRetryDelay,
		BackoffFunc: retry.ExpBackoff(defaultRetryDelay, defaultMaxRetryDelay, 1.6, true),
		Clock:       r.clock,
		Stop:        ctx.Done(),
	})
}
