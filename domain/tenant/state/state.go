// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/juju/collections/transform"
	"github.com/juju/errors"

	corelogger "github.com/procession-engine/procession/core/logger"
	"github.com/procession-engine/procession/domain/persistence"
	persistenceerrors "github.com/procession-engine/procession/domain/persistence/errors"
	"github.com/procession-engine/procession/domain/tenant"
	tenanterrors "github.com/procession-engine/procession/domain/tenant/errors"
	internaldatabase "github.com/procession-engine/procession/internal/database"
)

const (
	selectTenantByIDOp = persistence.Operation("selectTenantById")
	insertTenantOp     = persistence.Operation("insertTenant")
	updateTenantOp     = persistence.Operation("updateTenant")
	deleteTenantOp     = persistence.Operation("deleteTenant")
	selectTenantListOp = persistence.Operation("selectTenantList")

	insertMembershipOp     = persistence.Operation("insertTenantMembership")
	deleteMembershipOp     = persistence.Operation("deleteTenantMembership")
	selectMembershipListOp = persistence.Operation("selectTenantMembershipList")
)

// State describes retrieval and persistence methods for tenants and
// their memberships.
type State struct {
	store  *persistence.Store
	logger corelogger.Logger
}

// NewState registers the tenant operations with the input registry and
// returns a new state reference over the input store.
func NewState(registry *persistence.Registry, store *persistence.Store, logger corelogger.Logger) (*State, error) {
	type registration struct {
		register func(persistence.Operation, string, ...any) error
		op       persistence.Operation
		query    string
		samples  []any
	}

	registrations := []registration{{
		register: registry.Register,
		op:       selectTenantByIDOp,
		query: `
SELECT &dbTenant.*
FROM   tenant
WHERE  id = $M.id`,
		samples: []any{dbTenant{}},
	}, {
		register: registry.Register,
		op:       insertTenantOp,
		query: `
INSERT INTO tenant (*) VALUES ($dbTenant.*)`,
		samples: []any{dbTenant{}},
	}, {
		register: registry.Register,
		op:       updateTenantOp,
		query: `
UPDATE tenant
SET    name = $dbTenant.name,
       revision = $dbTenant.revision + 1
WHERE  id = $dbTenant.id
AND    revision = $dbTenant.revision`,
		samples: []any{dbTenant{}},
	}, {
		register: registry.Register,
		op:       deleteTenantOp,
		query: `
DELETE FROM tenant
WHERE  id = $dbTenant.id
AND    revision = $dbTenant.revision`,
		samples: []any{dbTenant{}},
	}, {
		register: registry.RegisterTenantScopedList,
		op:       selectTenantListOp,
		query: `
SELECT &dbTenant.*
FROM   tenant
WHERE  (NOT $M.tenant_restricted OR id IN ($S[:]))
ORDER  BY id`,
		samples: []any{dbTenant{}},
	}, {
		register: registry.Register,
		op:       insertMembershipOp,
		query: `
INSERT INTO tenant_membership (*) VALUES ($dbMembership.*)`,
		samples: []any{dbMembership{}},
	}, {
		register: registry.Register,
		op:       deleteMembershipOp,
		query: `
DELETE FROM tenant_membership
WHERE  id = $dbMembership.id`,
		samples: []any{dbMembership{}},
	}, {
		register: registry.RegisterList,
		op:       selectMembershipListOp,
		query: `
SELECT &dbMembership.*
FROM   tenant_membership
WHERE  tenant_id = $M.tenant_id
ORDER  BY id`,
		samples: []any{dbMembership{}},
	}}

	for _, r := range registrations {
		if err := r.register(r.op, r.query, r.samples...); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return &State{store: store, logger: logger}, nil
}

// CreateTenant adds a new tenant at revision 1. If a tenant with the
// same id exists, an error satisfying tenanterrors.AlreadyExists is
// returned.
func (st *State) CreateTenant(ctx context.Context, id, name string) (tenant.Tenant, error) {
	if id == "" {
		return tenant.Tenant{}, errors.NotValidf("empty tenant id")
	}

	row := dbTenant{TenantID: id, Name: name, Rev: 1}
	err := st.store.Insert(ctx, insertTenantOp, &row)
	if errors.Is(err, persistenceerrors.AlreadyExists) {
		return tenant.Tenant{}, errors.Annotatef(tenanterrors.AlreadyExists, "%q", id)
	} else if err != nil {
		return tenant.Tenant{}, errors.Trace(err)
	}
	return row.toTenant(), nil
}

// GetTenant returns the tenant with the input id. If it does not exist,
// an error satisfying tenanterrors.NotFound is returned.
func (st *State) GetTenant(ctx context.Context, id string) (tenant.Tenant, error) {
	row, err := st.getTenant(ctx, id)
	if err != nil {
		return tenant.Tenant{}, errors.Trace(err)
	}
	return row.toTenant(), nil
}

// UpdateTenantName renames the tenant with the input id. The update
// carries the loaded revision as a compare-and-swap predicate; if
// another unit of work updated the tenant first, an error satisfying
// persistenceerrors.ConcurrentModification is returned and the caller
// decides whether to retry its whole unit of work.
func (st *State) UpdateTenantName(ctx context.Context, id, name string) (tenant.Tenant, error) {
	row, err := st.getTenant(ctx, id)
	if err != nil {
		return tenant.Tenant{}, errors.Trace(err)
	}

	row.Name = name
	if err := st.store.Flush(ctx, updateTenantOp, row); err != nil {
		return tenant.Tenant{}, errors.Trace(err)
	}
	return row.toTenant(), nil
}

// DeleteTenant removes the tenant with the input id, provided it has not
// been concurrently updated.
func (st *State) DeleteTenant(ctx context.Context, id string) error {
	row, err := st.getTenant(ctx, id)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(st.store.Delete(ctx, deleteTenantOp, row))
}

// ListTenants returns tenants ordered by id, scoped by the input query's
// tenant restriction and paging.
func (st *State) ListTenants(ctx context.Context, q *persistence.Query) ([]tenant.Tenant, error) {
	var rows []dbTenant
	if err := st.store.SelectList(ctx, selectTenantListOp, q, &rows); err != nil {
		return nil, errors.Trace(err)
	}
	return transform.Slice(rows, func(row dbTenant) tenant.Tenant {
		return row.toTenant()
	}), nil
}

// AddMembership associates a tenant with a user or a group, exactly one
// of which must be set. The membership id is synthetic and generated
// here when not supplied.
func (st *State) AddMembership(ctx context.Context, m tenant.Membership) (tenant.Membership, error) {
	if (m.UserID == "") == (m.GroupID == "") {
		return tenant.Membership{}, errors.NotValidf("membership of user %q and group %q", m.UserID, m.GroupID)
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	row := dbMembership{
		UUID:     m.ID,
		TenantID: m.TenantID,
		UserID:   sql.NullString{String: m.UserID, Valid: m.UserID != ""},
		GroupID:  sql.NullString{String: m.GroupID, Valid: m.GroupID != ""},
	}

	err := st.store.Insert(ctx, insertMembershipOp, &row)
	if errors.Is(err, persistenceerrors.AlreadyExists) {
		return tenant.Membership{}, errors.Annotatef(tenanterrors.MembershipAlreadyExists, "tenant %q", m.TenantID)
	} else if internaldatabase.IsErrConstraintForeignKey(err) {
		return tenant.Membership{}, errors.Annotatef(tenanterrors.NotFound, "%q", m.TenantID)
	} else if err != nil {
		return tenant.Membership{}, errors.Trace(err)
	}
	return row.toMembership(), nil
}

// RemoveMembership deletes the membership with the input synthetic id.
func (st *State) RemoveMembership(ctx context.Context, id string) error {
	err := st.store.Delete(ctx, deleteMembershipOp, &dbMembership{UUID: id})
	if errors.Is(err, persistenceerrors.NotFound) {
		return errors.Annotatef(tenanterrors.MembershipNotFound, "%q", id)
	}
	return errors.Trace(err)
}

// ListMemberships returns the memberships of the input tenant, ordered
// by id.
func (st *State) ListMemberships(ctx context.Context, tenantID string, page *persistence.Page) ([]tenant.Membership, error) {
	q := persistence.NewQuery().WithParam("tenant_id", tenantID)
	if page != nil {
		q = q.WithPage(*page)
	}

	var rows []dbMembership
	if err := st.store.SelectList(ctx, selectMembershipListOp, q, &rows); err != nil {
		return nil, errors.Trace(err)
	}
	return transform.Slice(rows, func(row dbMembership) tenant.Membership {
		return row.toMembership()
	}), nil
}

func (st *State) getTenant(ctx context.Context, id string) (*dbTenant, error) {
	var row dbTenant
	err := st.store.SelectByID(ctx, selectTenantByIDOp, id, &row)
	if errors.Is(err, persistenceerrors.NotFound) {
		return nil, errors.Annotatef(tenanterrors.NotFound, "%q", id)
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	return &row, nil
}
