// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package persistence

import (
	"github.com/juju/collections/set"
)

// Params are the named parameters bound into an operation.
type Params map[string]any

// Page bounds a list operation. Offset rows are skipped and at most
// Limit rows are returned.
type Page struct {
	Offset int
	Limit  int
}

// tenantRestriction is the tri-state tenant scoping of a query. A query
// starts unconfigured; tenant-scoped operations refuse to run until the
// restriction has been explicitly enabled or explicitly disabled.
type tenantRestriction int

const (
	tenantUnconfigured tenantRestriction = iota
	tenantRestricted
	tenantUnrestricted
)

// Query carries the parameters, paging and tenant scoping of a list
// operation. Tenant scoping is configured by the tenancy filter, never
// defaulted by the store.
type Query struct {
	params      Params
	page        *Page
	restriction tenantRestriction
	tenantIDs   set.Strings
}

// NewQuery returns an empty query.
func NewQuery() *Query {
	return &Query{params: Params{}}
}

// WithParam binds a named parameter and returns the query.
func (q *Query) WithParam(name string, value any) *Query {
	q.params[name] = value
	return q
}

// WithPage sets the query's page and returns the query.
func (q *Query) WithPage(page Page) *Query {
	q.page = &page
	return q
}

// RestrictToTenants enables tenant restriction for the input tenant ids.
// Rows belonging to a tenant outside the set are never returned.
func (q *Query) RestrictToTenants(tenantIDs set.Strings) {
	q.restriction = tenantRestricted
	q.tenantIDs = tenantIDs
}

// DisableTenantRestriction explicitly disables tenant restriction,
// allowing the query to see all tenants. This is reserved for system
// level contexts and is an auditable choice.
func (q *Query) DisableTenantRestriction() {
	q.restriction = tenantUnrestricted
	q.tenantIDs = nil
}

// TenantRestricted returns true if tenant restriction is enabled.
func (q *Query) TenantRestricted() bool {
	return q.restriction == tenantRestricted
}

// TenantRestrictionConfigured returns true once tenant restriction has
// been explicitly enabled or explicitly disabled.
func (q *Query) TenantRestrictionConfigured() bool {
	return q.restriction != tenantUnconfigured
}

// TenantIDs returns the authorized tenant ids when restricted.
func (q *Query) TenantIDs() set.Strings {
	return q.tenantIDs
}
