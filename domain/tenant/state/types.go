// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"database/sql"

	"github.com/procession-engine/procession/domain/persistence"
	"github.com/procession-engine/procession/domain/tenant"
)

// dbTenant represents a row of the tenant table.
type dbTenant struct {
	// TenantID is the tenant's immutable identity.
	TenantID string `db:"id"`

	// Name is the tenant's display name.
	Name string `db:"name"`

	// Rev is the optimistic concurrency token.
	Rev int `db:"revision"`
}

// tenantState holds the mutable persistent fields of a tenant. It is
// comparable, which is what makes flush change detection work.
type tenantState struct {
	name string
}

// ID (persistence.Entity) returns the tenant id.
func (t *dbTenant) ID() string {
	return t.TenantID
}

// Revision (persistence.Revisioned) returns the loaded revision.
func (t *dbTenant) Revision() int {
	return t.Rev
}

// SetRevision (persistence.Revisioned) sets the revision.
func (t *dbTenant) SetRevision(rev int) {
	t.Rev = rev
}

// PersistentState (persistence.Revisioned) returns a snapshot of the
// tenant's mutable fields.
func (t *dbTenant) PersistentState() persistence.PersistentState {
	return persistence.MutableState(tenantState{name: t.Name})
}

func (t *dbTenant) toTenant() tenant.Tenant {
	return tenant.Tenant{
		ID:       t.TenantID,
		Name:     t.Name,
		Revision: t.Rev,
	}
}

// dbMembership represents a row of the tenant_membership table. The
// relationship is immutable, so the row is only ever inserted and
// deleted.
type dbMembership struct {
	// UUID is the synthetic identity of the row.
	UUID string `db:"id"`

	// TenantID is the associated tenant.
	TenantID string `db:"tenant_id"`

	// UserID is the member user, mutually exclusive with GroupID.
	UserID sql.NullString `db:"user_id"`

	// GroupID is the member group, mutually exclusive with UserID.
	GroupID sql.NullString `db:"group_id"`
}

// ID (persistence.Entity) returns the synthetic membership id.
func (m *dbMembership) ID() string {
	return m.UUID
}

func (m *dbMembership) toMembership() tenant.Membership {
	return tenant.Membership{
		ID:       m.UUID,
		TenantID: m.TenantID,
		UserID:   m.UserID.String,
		GroupID:  m.GroupID.String,
	}
}
