// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	coredatabase "github.com/procession-engine/procession/core/database"
)

type schemaSuite struct {
	testing.IsolationSuite

	db     *sql.DB
	runner coredatabase.TxnRunner
}

var _ = gc.Suite(&schemaSuite{})

func (s *schemaSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)

	var err error
	s.db, err = sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String()))
	c.Assert(err, jc.ErrorIsNil)
	s.AddCleanup(func(c *gc.C) {
		c.Assert(s.db.Close(), jc.ErrorIsNil)
	})

	s.runner = NewTxnRunner(s.db)
}

func (s *schemaSuite) TestApplyDeltas(c *gc.C) {
	deltas := []coredatabase.Delta{
		coredatabase.MakeDelta("CREATE TABLE marker (id TEXT PRIMARY KEY)"),
		coredatabase.MakeDelta("INSERT INTO marker (id) VALUES (?)", "m1"),
	}
	err := ApplyDeltas(context.Background(), s.runner, deltas)
	c.Assert(err, jc.ErrorIsNil)

	var id string
	row := s.db.QueryRow("SELECT id FROM marker")
	c.Assert(row.Scan(&id), jc.ErrorIsNil)
	c.Check(id, gc.Equals, "m1")
}

func (s *schemaSuite) TestApplyDeltasFailurePropagates(c *gc.C) {
	deltas := []coredatabase.Delta{
		coredatabase.MakeDelta("CREATE TABLE marker (id TEXT PRIMARY KEY)"),
		coredatabase.MakeDelta("INSERT INTO nonexistent (id) VALUES ('m1')"),
	}
	err := ApplyDeltas(context.Background(), s.runner, deltas)
	c.Assert(err, gc.ErrorMatches, `applying schema delta .*`)
}
