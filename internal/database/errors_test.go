// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package database

import (
	"database/sql"

	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	"github.com/mattn/go-sqlite3"
	gc "gopkg.in/check.v1"
)

type errorsSuite struct{}

var _ = gc.Suite(&errorsSuite{})

func (s *errorsSuite) TestIsErrConstraintUnique(c *gc.C) {
	c.Check(IsErrConstraintUnique(nil), jc.IsFalse)
	c.Check(IsErrConstraintUnique(errors.New("boom")), jc.IsFalse)

	err := sqlite3.Error{
		Code:         sqlite3.ErrConstraint,
		ExtendedCode: sqlite3.ErrConstraintUnique,
	}
	c.Check(IsErrConstraintUnique(err), jc.IsTrue)
	c.Check(IsErrConstraintUnique(errors.Annotate(err, "inserting")), jc.IsTrue)

	err.ExtendedCode = sqlite3.ErrConstraintPrimaryKey
	c.Check(IsErrConstraintUnique(err), jc.IsTrue)

	err.ExtendedCode = sqlite3.ErrConstraintCheck
	c.Check(IsErrConstraintUnique(err), jc.IsFalse)
}

func (s *errorsSuite) TestIsErrConstraintCheck(c *gc.C) {
	err := sqlite3.Error{
		Code:         sqlite3.ErrConstraint,
		ExtendedCode: sqlite3.ErrConstraintCheck,
	}
	c.Check(IsErrConstraintCheck(err), jc.IsTrue)
	c.Check(IsErrConstraintCheck(errors.New("boom")), jc.IsFalse)
}

func (s *errorsSuite) TestIsErrConstraintForeignKey(c *gc.C) {
	err := sqlite3.Error{
		Code:         sqlite3.ErrConstraint,
		ExtendedCode: sqlite3.ErrConstraintForeignKey,
	}
	c.Check(IsErrConstraintForeignKey(err), jc.IsTrue)
	c.Check(IsErrConstraintForeignKey(nil), jc.IsFalse)
}

func (s *errorsSuite) TestIsErrNotFound(c *gc.C) {
	c.Check(IsErrNotFound(sql.ErrNoRows), jc.IsTrue)
	c.Check(IsErrNotFound(errors.Annotate(sql.ErrNoRows, "selecting")), jc.IsTrue)
	c.Check(IsErrNotFound(errors.New("boom")), jc.IsFalse)
}

func (s *errorsSuite) TestIsErrRetryable(c *gc.C) {
	c.Check(IsErrRetryable(nil), jc.IsFalse)
	c.Check(IsErrRetryable(errors.New("boom")), jc.IsFalse)

	c.Check(IsErrRetryable(sqlite3.Error{Code: sqlite3.ErrBusy}), jc.IsTrue)
	c.Check(IsErrRetryable(sqlite3.Error{Code: sqlite3.ErrLocked}), jc.IsTrue)

	// Errors surfaced without their driver type are matched by message.
	c.Check(IsErrRetryable(errors.New("database is locked")), jc.IsTrue)
	c.Check(IsErrRetryable(errors.New("driver: bad connection")), jc.IsTrue)
	c.Check(IsErrRetryable(errors.New("cannot start a transaction within a transaction")), jc.IsTrue)
}

func (s *errorsSuite) TestIsErrLocked(c *gc.C) {
	c.Check(IsErrLocked(nil), jc.IsFalse)
	c.Check(IsErrLocked(sqlite3.Error{Code: sqlite3.ErrBusy}), jc.IsTrue)
	c.Check(IsErrLocked(errors.New("database is locked")), jc.IsTrue)
	c.Check(IsErrLocked(errors.New("boom")), jc.IsFalse)
}
