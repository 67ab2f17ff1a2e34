// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package testing

import (
	gc "gopkg.in/check.v1"

	"github.com/procession-engine/procession/domain/schema"
	"github.com/procession-engine/procession/internal/database/testing"
)

// EngineSuite is used to provide a database reference to tests.
// It is pre-populated with the engine schema, including the lock
// sentinel rows.
type EngineSuite struct {
	testing.DBSuite
}

// SetUpTest sets up a testing database initialised with the engine
// schema.
func (s *EngineSuite) SetUpTest(c *gc.C) {
	s.DBSuite.SetUpTest(c)
	s.DBSuite.ApplyDDL(c, schema.EngineDDL())
}
