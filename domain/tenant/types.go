// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package tenant models the tenants of a multi-tenant engine deployment
// and their user and group memberships.
package tenant

// Tenant is a named tenant. It participates in optimistic concurrency;
// the revision advances by one on every successful update.
type Tenant struct {
	// ID is the tenant's immutable identity.
	ID string

	// Name is the tenant's display name.
	Name string

	// Revision is the optimistic concurrency token.
	Revision int
}

// Membership associates a tenant with a user or a group; exactly one of
// the two is set. The relationship is immutable: it is created and
// deleted, never updated. The id is synthetic, present only so the row
// can be cached.
type Membership struct {
	// ID is the synthetic identity of the membership row.
	ID string

	// TenantID is the associated tenant.
	TenantID string

	// UserID is the member user, mutually exclusive with GroupID.
	UserID string

	// GroupID is the member group, mutually exclusive with UserID.
	GroupID string
}
