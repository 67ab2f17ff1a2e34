// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package testing

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	jujutesting "github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	_ "github.com/mattn/go-sqlite3"
	gc "gopkg.in/check.v1"

	coredatabase "github.com/procession-engine/procession/core/database"
	"github.com/procession-engine/procession/internal/database"
)

// DBSuite is used to provide a sql.DB reference to tests. Each test gets
// a fresh in-memory database; shared cache keeps it alive across the
// connections the pool opens.
type DBSuite struct {
	jujutesting.IsolationSuite

	db     *sql.DB
	runner coredatabase.TxnRunner
}

// SetUpTest opens a new in-memory database and a transaction runner
// over it.
func (s *DBSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.New().String())
	db, err := sql.Open("sqlite3", dsn)
	c.Assert(err, jc.ErrorIsNil)

	s.db = db
	s.runner = database.NewTxnRunner(db)

	s.AddCleanup(func(c *gc.C) {
		c.Assert(db.Close(), jc.ErrorIsNil)
	})
}

// DB returns the suite's database handle.
func (s *DBSuite) DB() *sql.DB {
	return s.db
}

// TxnRunner returns the suite's transaction runner.
func (s *DBSuite) TxnRunner() coredatabase.TxnRunner {
	return s.runner
}

// TxnRunnerFactory returns a factory for the suite's transaction runner.
func (s *DBSuite) TxnRunnerFactory() coredatabase.TxnRunnerFactory {
	return func() (coredatabase.TxnRunner, error) {
		return s.runner, nil
	}
}

// ApplyDDL applies the input deltas to the suite's database.
func (s *DBSuite) ApplyDDL(c *gc.C, deltas []coredatabase.Delta) {
	err := database.ApplyDeltas(context.Background(), s.runner, deltas)
	c.Assert(err, jc.ErrorIsNil)
}
