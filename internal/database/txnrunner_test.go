// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/canonical/sqlair"
	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	coredatabase "github.com/procession-engine/procession/core/database"
)

type txnRunnerSuite struct {
	testing.IsolationSuite

	db     *sql.DB
	runner *txnRunner
}

var _ = gc.Suite(&txnRunnerSuite{})

func (s *txnRunnerSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)

	var err error
	s.db, err = sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String()))
	c.Assert(err, jc.ErrorIsNil)
	s.AddCleanup(func(c *gc.C) {
		c.Assert(s.db.Close(), jc.ErrorIsNil)
	})

	s.runner = NewTxnRunner(s.db).(*txnRunner)

	_, err = s.db.Exec("CREATE TABLE note (id TEXT PRIMARY KEY, body TEXT)")
	c.Assert(err, jc.ErrorIsNil)
}

func (s *txnRunnerSuite) TestNewTxnRunnerServesAsFactory(c *gc.C) {
	var factory coredatabase.TxnRunnerFactory = func() (coredatabase.TxnRunner, error) {
		return NewTxnRunner(s.db), nil
	}

	runner, err := factory()
	c.Assert(err, jc.ErrorIsNil)

	err = runner.Txn(context.Background(), func(ctx context.Context, tx *sqlair.TX) error {
		return nil
	})
	c.Assert(err, jc.ErrorIsNil)
}

func (s *txnRunnerSuite) TestTxnCommits(c *gc.C) {
	stmt, err := sqlair.Prepare("INSERT INTO note (id, body) VALUES ('n1', 'hello')")
	c.Assert(err, jc.ErrorIsNil)

	err = s.runner.Txn(context.Background(), func(ctx context.Context, tx *sqlair.TX) error {
		return tx.Query(ctx, stmt).Run()
	})
	c.Assert(err, jc.ErrorIsNil)

	var count int
	row := s.db.QueryRow("SELECT COUNT(*) FROM note")
	c.Assert(row.Scan(&count), jc.ErrorIsNil)
	c.Check(count, gc.Equals, 1)
}

func (s *txnRunnerSuite) TestTxnRollsBackOnError(c *gc.C) {
	stmt, err := sqlair.Prepare("INSERT INTO note (id, body) VALUES ('n1', 'hello')")
	c.Assert(err, jc.ErrorIsNil)

	boom := errors.New("boom")
	err = s.runner.Txn(context.Background(), func(ctx context.Context, tx *sqlair.TX) error {
		if err := tx.Query(ctx, stmt).Run(); err != nil {
			return errors.Trace(err)
		}
		return boom
	})
	c.Assert(err, jc.ErrorIs, boom)

	var count int
	row := s.db.QueryRow("SELECT COUNT(*) FROM note")
	c.Assert(row.Scan(&count), jc.ErrorIsNil)
	c.Check(count, gc.Equals, 0)
}

func (s *txnRunnerSuite) TestStdTxnCommits(c *gc.C) {
	err := s.runner.StdTxn(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO note (id, body) VALUES ('n1', 'hello')")
		return errors.Trace(err)
	})
	c.Assert(err, jc.ErrorIsNil)

	var body string
	row := s.db.QueryRow("SELECT body FROM note WHERE id = 'n1'")
	c.Assert(row.Scan(&body), jc.ErrorIsNil)
	c.Check(body, gc.Equals, "hello")
}

func (s *txnRunnerSuite) TestRetriesRetryableErrors(c *gc.C) {
	var attempts int
	err := s.runner.retry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(attempts, gc.Equals, 3)
}

func (s *txnRunnerSuite) TestDoesNotRetryFatalErrors(c *gc.C) {
	var attempts int
	boom := errors.New("syntax error")
	err := s.runner.retry(context.Background(), func() error {
		attempts++
		return boom
	})
	c.Assert(err, jc.ErrorIs, boom)
	c.Check(attempts, gc.Equals, 1)
}

func (s *txnRunnerSuite) TestRetryStopsAtAttemptLimit(c *gc.C) {
	runner := NewTxnRunner(s.db, WithAttempts(3)).(*txnRunner)

	var attempts int
	err := runner.retry(context.Background(), func() error {
		attempts++
		return errors.New("database is locked")
	})
	c.Assert(err, gc.NotNil)
	c.Check(attempts, gc.Equals, 3)
}

func (s *txnRunnerSuite) TestRetryStopsOnContextCancel(c *gc.C) {
	ctx, cancel := context.WithCancel(context.Background())

	var attempts int
	err := s.runner.retry(ctx, func() error {
		attempts++
		cancel()
		return errors.New("database is locked")
	})
	c.Assert(err, gc.NotNil)
	c.Check(attempts, gc.Equals, 1)
}
