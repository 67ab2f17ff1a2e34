// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state_test

import (
	"context"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/procession-engine/procession/domain/persistence"
	schematesting "github.com/procession-engine/procession/domain/schema/testing"
	"github.com/procession-engine/procession/domain/tenant"
	tenanterrors "github.com/procession-engine/procession/domain/tenant/errors"
	"github.com/procession-engine/procession/domain/tenant/state"
	"github.com/procession-engine/procession/internal/logger"
)

type stateSuite struct {
	schematesting.EngineSuite

	registry *persistence.Registry
	st       *state.State
}

var _ = gc.Suite(&stateSuite{})

func (s *stateSuite) SetUpTest(c *gc.C) {
	s.EngineSuite.SetUpTest(c)

	s.registry = persistence.NewRegistry()
	store := persistence.NewStore(s.registry, s.TxnRunnerFactory(), logger.GetLogger("test"))

	var err error
	s.st, err = state.NewState(s.registry, store, logger.GetLogger("test"))
	c.Assert(err, jc.ErrorIsNil)
}

// newState returns an independent state over the same database,
// simulating a second unit of work.
func (s *stateSuite) newState(c *gc.C) *state.State {
	registry := persistence.NewRegistry()
	store := persistence.NewStore(registry, s.TxnRunnerFactory(), logger.GetLogger("test"))
	st, err := state.NewState(registry, store, logger.GetLogger("test"))
	c.Assert(err, jc.ErrorIsNil)
	return st
}

func (s *stateSuite) unrestricted() *persistence.Query {
	q := persistence.NewQuery()
	q.DisableTenantRestriction()
	return q
}

func (s *stateSuite) TestCreateTenant(c *gc.C) {
	t, err := s.st.CreateTenant(context.Background(), "t1", "one")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(t, gc.DeepEquals, tenant.Tenant{ID: "t1", Name: "one", Revision: 1})
}

func (s *stateSuite) TestCreateTenantEmptyID(c *gc.C) {
	_, err := s.st.CreateTenant(context.Background(), "", "one")
	c.Assert(err, jc.ErrorIs, errors.NotValid)
}

func (s *stateSuite) TestCreateTenantAlreadyExists(c *gc.C) {
	_, err := s.st.CreateTenant(context.Background(), "t1", "one")
	c.Assert(err, jc.ErrorIsNil)

	_, err = s.st.CreateTenant(context.Background(), "t1", "other")
	c.Assert(err, jc.ErrorIs, tenanterrors.AlreadyExists)
}

func (s *stateSuite) TestGetTenantNotFound(c *gc.C) {
	_, err := s.st.GetTenant(context.Background(), "missing")
	c.Assert(err, jc.ErrorIs, tenanterrors.NotFound)
}

func (s *stateSuite) TestGetTenant(c *gc.C) {
	_, err := s.st.CreateTenant(context.Background(), "t1", "one")
	c.Assert(err, jc.ErrorIsNil)

	t, err := s.st.GetTenant(context.Background(), "t1")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(t, gc.DeepEquals, tenant.Tenant{ID: "t1", Name: "one", Revision: 1})
}

func (s *stateSuite) TestUpdateTenantName(c *gc.C) {
	_, err := s.st.CreateTenant(context.Background(), "t1", "one")
	c.Assert(err, jc.ErrorIsNil)

	t, err := s.st.UpdateTenantName(context.Background(), "t1", "renamed")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(t, gc.DeepEquals, tenant.Tenant{ID: "t1", Name: "renamed", Revision: 2})

	t, err = s.st.GetTenant(context.Background(), "t1")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(t.Revision, gc.Equals, 2)
}

func (s *stateSuite) TestUpdateTenantNameUnchanged(c *gc.C) {
	_, err := s.st.CreateTenant(context.Background(), "t1", "one")
	c.Assert(err, jc.ErrorIsNil)

	// Renaming to the current name changes nothing, so no update is
	// issued and the revision stays put.
	t, err := s.st.UpdateTenantName(context.Background(), "t1", "one")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(t.Revision, gc.Equals, 1)
}

func (s *stateSuite) TestUpdateTenantNameInterleaved(c *gc.C) {
	_, err := s.st.CreateTenant(context.Background(), "t1", "one")
	c.Assert(err, jc.ErrorIsNil)

	// Updates from independent units of work reload before flushing, so
	// both land and the revision counts both.
	other := s.newState(c)
	_, err = other.UpdateTenantName(context.Background(), "t1", "theirs")
	c.Assert(err, jc.ErrorIsNil)

	t, err := s.st.UpdateTenantName(context.Background(), "t1", "ours")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(t, gc.DeepEquals, tenant.Tenant{ID: "t1", Name: "ours", Revision: 3})
}

func (s *stateSuite) TestDeleteTenant(c *gc.C) {
	_, err := s.st.CreateTenant(context.Background(), "t1", "one")
	c.Assert(err, jc.ErrorIsNil)

	err = s.st.DeleteTenant(context.Background(), "t1")
	c.Assert(err, jc.ErrorIsNil)

	_, err = s.st.GetTenant(context.Background(), "t1")
	c.Assert(err, jc.ErrorIs, tenanterrors.NotFound)
}

func (s *stateSuite) TestDeleteTenantNotFound(c *gc.C) {
	err := s.st.DeleteTenant(context.Background(), "missing")
	c.Assert(err, jc.ErrorIs, tenanterrors.NotFound)
}

func (s *stateSuite) TestListTenants(c *gc.C) {
	for _, id := range []string{"t2", "t1", "t3"} {
		_, err := s.st.CreateTenant(context.Background(), id, "tenant "+id)
		c.Assert(err, jc.ErrorIsNil)
	}

	tenants, err := s.st.ListTenants(context.Background(), s.unrestricted())
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(tenants, gc.HasLen, 3)
	c.Check(tenants[0].ID, gc.Equals, "t1")
	c.Check(tenants[1].ID, gc.Equals, "t2")
	c.Check(tenants[2].ID, gc.Equals, "t3")
}

func (s *stateSuite) TestListTenantsRestricted(c *gc.C) {
	for _, id := range []string{"t1", "t2", "t3"} {
		_, err := s.st.CreateTenant(context.Background(), id, "tenant "+id)
		c.Assert(err, jc.ErrorIsNil)
	}

	q := persistence.NewQuery()
	q.RestrictToTenants(set.NewStrings("t2"))

	tenants, err := s.st.ListTenants(context.Background(), q)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(tenants, gc.HasLen, 1)
	c.Check(tenants[0].ID, gc.Equals, "t2")
}

func (s *stateSuite) TestListTenantsPaged(c *gc.C) {
	for _, id := range []string{"t1", "t2", "t3", "t4"} {
		_, err := s.st.CreateTenant(context.Background(), id, "tenant "+id)
		c.Assert(err, jc.ErrorIsNil)
	}

	q := s.unrestricted().WithPage(persistence.Page{Offset: 2, Limit: 1})
	tenants, err := s.st.ListTenants(context.Background(), q)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(tenants, gc.HasLen, 1)
	c.Check(tenants[0].ID, gc.Equals, "t3")
}

func (s *stateSuite) TestAddMembershipUser(c *gc.C) {
	_, err := s.st.CreateTenant(context.Background(), "t1", "one")
	c.Assert(err, jc.ErrorIsNil)

	m, err := s.st.AddMembership(context.Background(), tenant.Membership{
		TenantID: "t1",
		UserID:   "alice",
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(m.ID, gc.Not(gc.Equals), "")
	c.Check(m.TenantID, gc.Equals, "t1")
	c.Check(m.UserID, gc.Equals, "alice")
	c.Check(m.GroupID, gc.Equals, "")
}

func (s *stateSuite) TestAddMembershipGroup(c *gc.C) {
	_, err := s.st.CreateTenant(context.Background(), "t1", "one")
	c.Assert(err, jc.ErrorIsNil)

	m, err := s.st.AddMembership(context.Background(), tenant.Membership{
		TenantID: "t1",
		GroupID:  "auditors",
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(m.GroupID, gc.Equals, "auditors")
	c.Check(m.UserID, gc.Equals, "")
}

func (s *stateSuite) TestAddMembershipNeitherUserNorGroup(c *gc.C) {
	_, err := s.st.AddMembership(context.Background(), tenant.Membership{TenantID: "t1"})
	c.Assert(err, jc.ErrorIs, errors.NotValid)
}

func (s *stateSuite) TestAddMembershipBothUserAndGroup(c *gc.C) {
	_, err := s.st.AddMembership(context.Background(), tenant.Membership{
		TenantID: "t1",
		UserID:   "alice",
		GroupID:  "auditors",
	})
	c.Assert(err, jc.ErrorIs, errors.NotValid)
}

func (s *stateSuite) TestAddMembershipUnknownTenant(c *gc.C) {
	_, err := s.st.AddMembership(context.Background(), tenant.Membership{
		TenantID: "missing",
		UserID:   "alice",
	})
	c.Assert(err, jc.ErrorIs, tenanterrors.NotFound)
}

func (s *stateSuite) TestAddMembershipDuplicate(c *gc.C) {
	_, err := s.st.CreateTenant(context.Background(), "t1", "one")
	c.Assert(err, jc.ErrorIsNil)

	_, err = s.st.AddMembership(context.Background(), tenant.Membership{
		TenantID: "t1",
		UserID:   "alice",
	})
	c.Assert(err, jc.ErrorIsNil)

	_, err = s.st.AddMembership(context.Background(), tenant.Membership{
		TenantID: "t1",
		UserID:   "alice",
	})
	c.Assert(err, jc.ErrorIs, tenanterrors.MembershipAlreadyExists)
}

func (s *stateSuite) TestRemoveMembership(c *gc.C) {
	_, err := s.st.CreateTenant(context.Background(), "t1", "one")
	c.Assert(err, jc.ErrorIsNil)

	m, err := s.st.AddMembership(context.Background(), tenant.Membership{
		TenantID: "t1",
		UserID:   "alice",
	})
	c.Assert(err, jc.ErrorIsNil)

	err = s.st.RemoveMembership(context.Background(), m.ID)
	c.Assert(err, jc.ErrorIsNil)

	memberships, err := s.st.ListMemberships(context.Background(), "t1", nil)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(memberships, gc.HasLen, 0)
}

func (s *stateSuite) TestRemoveMembershipNotFound(c *gc.C) {
	err := s.st.RemoveMembership(context.Background(), "missing")
	c.Assert(err, jc.ErrorIs, tenanterrors.MembershipNotFound)
}

func (s *stateSuite) TestListMemberships(c *gc.C) {
	for _, id := range []string{"t1", "t2"} {
		_, err := s.st.CreateTenant(context.Background(), id, "tenant "+id)
		c.Assert(err, jc.ErrorIsNil)
	}

	for _, user := range []string{"alice", "bob"} {
		_, err := s.st.AddMembership(context.Background(), tenant.Membership{
			TenantID: "t1",
			UserID:   user,
		})
		c.Assert(err, jc.ErrorIsNil)
	}
	_, err := s.st.AddMembership(context.Background(), tenant.Membership{
		TenantID: "t2",
		UserID:   "carol",
	})
	c.Assert(err, jc.ErrorIsNil)

	memberships, err := s.st.ListMemberships(context.Background(), "t1", nil)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(memberships, gc.HasLen, 2)
	for _, m := range memberships {
		c.Check(m.TenantID, gc.Equals, "t1")
	}
}

func (s *stateSuite) TestMembershipsRemovedWithTenant(c *gc.C) {
	_, err := s.st.CreateTenant(context.Background(), "t1", "one")
	c.Assert(err, jc.ErrorIsNil)

	_, err = s.st.AddMembership(context.Background(), tenant.Membership{
		TenantID: "t1",
		UserID:   "alice",
	})
	c.Assert(err, jc.ErrorIsNil)

	err = s.st.DeleteTenant(context.Background(), "t1")
	c.Assert(err, jc.ErrorIsNil)

	var count int
	row := s.DB().QueryRow("SELECT COUNT(*) FROM tenant_membership WHERE tenant_id = 't1'")
	c.Assert(row.Scan(&count), jc.ErrorIsNil)
	c.Check(count, gc.Equals, 0)
}
