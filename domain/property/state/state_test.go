// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state_test

import (
	"context"

	"github.com/google/uuid"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/procession-engine/procession/domain/lock"
	lockstate "github.com/procession-engine/procession/domain/lock/state"
	"github.com/procession-engine/procession/domain/persistence"
	persistenceerrors "github.com/procession-engine/procession/domain/persistence/errors"
	"github.com/procession-engine/procession/domain/property/state"
	schematesting "github.com/procession-engine/procession/domain/schema/testing"
	"github.com/procession-engine/procession/internal/logger"
)

type stateSuite struct {
	schematesting.EngineSuite

	st *state.State
}

var _ = gc.Suite(&stateSuite{})

func (s *stateSuite) SetUpTest(c *gc.C) {
	s.EngineSuite.SetUpTest(c)

	log := logger.GetLogger("test")
	registry := persistence.NewRegistry()
	store := persistence.NewStore(registry, s.TxnRunnerFactory(), log)

	locks, err := lockstate.NewState(registry, store, log)
	c.Assert(err, jc.ErrorIsNil)

	s.st, err = state.NewState(registry, store, locks, log)
	c.Assert(err, jc.ErrorIsNil)
}

func (s *stateSuite) TestGetPropertyNotFound(c *gc.C) {
	_, err := s.st.GetProperty(context.Background(), "historyLevel")
	c.Assert(err, jc.ErrorIs, persistenceerrors.NotFound)
}

func (s *stateSuite) TestSetAndGetProperty(c *gc.C) {
	err := s.st.SetProperty(context.Background(), "historyLevel", "full")
	c.Assert(err, jc.ErrorIsNil)

	value, err := s.st.GetProperty(context.Background(), "historyLevel")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(value, gc.Equals, "full")
}

func (s *stateSuite) TestSetPropertyReplaces(c *gc.C) {
	err := s.st.SetProperty(context.Background(), "historyLevel", "full")
	c.Assert(err, jc.ErrorIsNil)
	err = s.st.SetProperty(context.Background(), "historyLevel", "none")
	c.Assert(err, jc.ErrorIsNil)

	value, err := s.st.GetProperty(context.Background(), "historyLevel")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(value, gc.Equals, "none")
}

func (s *stateSuite) TestDeleteProperty(c *gc.C) {
	err := s.st.SetProperty(context.Background(), "historyLevel", "full")
	c.Assert(err, jc.ErrorIsNil)

	err = s.st.DeleteProperty(context.Background(), "historyLevel")
	c.Assert(err, jc.ErrorIsNil)

	_, err = s.st.GetProperty(context.Background(), "historyLevel")
	c.Assert(err, jc.ErrorIs, persistenceerrors.NotFound)
}

func (s *stateSuite) TestDeletePropertyNotFound(c *gc.C) {
	err := s.st.DeleteProperty(context.Background(), "historyLevel")
	c.Assert(err, jc.ErrorIs, persistenceerrors.NotFound)
}

func (s *stateSuite) TestListProperties(c *gc.C) {
	err := s.st.SetProperty(context.Background(), "historyLevel", "full")
	c.Assert(err, jc.ErrorIsNil)
	err = s.st.SetProperty(context.Background(), "telemetryEnabled", "true")
	c.Assert(err, jc.ErrorIsNil)

	props, err := s.st.ListProperties(context.Background(), nil)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(props, jc.DeepEquals, map[string]string{
		"historyLevel":     "full",
		"telemetryEnabled": "true",
	})
}

func (s *stateSuite) TestEnsureInstallationID(c *gc.C) {
	id, err := s.st.EnsureInstallationID(context.Background())
	c.Assert(err, jc.ErrorIsNil)

	// The minted id is a valid uuid, persisted as a property.
	_, err = uuid.Parse(id)
	c.Assert(err, jc.ErrorIsNil)

	value, err := s.st.GetProperty(context.Background(), state.InstallationIDName)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(value, gc.Equals, id)
}

func (s *stateSuite) TestEnsureInstallationIDIdempotent(c *gc.C) {
	first, err := s.st.EnsureInstallationID(context.Background())
	c.Assert(err, jc.ErrorIsNil)

	second, err := s.st.EnsureInstallationID(context.Background())
	c.Assert(err, jc.ErrorIsNil)
	c.Check(second, gc.Equals, first)
}

func (s *stateSuite) TestEnsureInstallationIDPreexisting(c *gc.C) {
	err := s.st.SetProperty(context.Background(), state.InstallationIDName, "pinned")
	c.Assert(err, jc.ErrorIsNil)

	id, err := s.st.EnsureInstallationID(context.Background())
	c.Assert(err, jc.ErrorIsNil)
	c.Check(id, gc.Equals, "pinned")
}

func (s *stateSuite) TestEnsureInstallationIDTakesLockOnMint(c *gc.C) {
	_, err := s.st.EnsureInstallationID(context.Background())
	c.Assert(err, jc.ErrorIsNil)

	// The mint committed together with the sentinel write.
	name, ok := lock.InstallationID.SentinelName()
	c.Assert(ok, jc.IsTrue)

	var acquiredAt *string
	row := s.DB().QueryRow("SELECT acquired_at FROM lock_sentinel WHERE name = ?", name)
	c.Assert(row.Scan(&acquiredAt), jc.ErrorIsNil)
	c.Check(acquiredAt, gc.NotNil)
}

func (s *stateSuite) TestEnsureInstallationIDConcurrentEngines(c *gc.C) {
	// A second engine over the same database, with its own unit of work.
	log := logger.GetLogger("test")
	registry := persistence.NewRegistry()
	store := persistence.NewStore(registry, s.TxnRunnerFactory(), log)
	locks, err := lockstate.NewState(registry, store, log)
	c.Assert(err, jc.ErrorIsNil)
	other, err := state.NewState(registry, store, locks, log)
	c.Assert(err, jc.ErrorIsNil)

	type result struct {
		id  string
		err error
	}
	results := make(chan result, 2)
	for _, st := range []*state.State{s.st, other} {
		st := st
		go func() {
			id, err := st.EnsureInstallationID(context.Background())
			results <- result{id: id, err: err}
		}()
	}

	ids := make([]string, 0, 2)
	for i := 0; i < 2; i++ {
		r := <-results
		c.Assert(r.err, jc.ErrorIsNil)
		ids = append(ids, r.id)
	}

	// Both engines observe the single minted id.
	c.Check(ids[0], gc.Equals, ids[1])

	value, err := s.st.GetProperty(context.Background(), state.InstallationIDName)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(value, gc.Equals, ids[0])
}
