// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package auth

import (
	"context"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
)

// AllTenants is the sentinel tenant identifier carried in a principal's
// authorized tenant set to indicate that the principal is tenant-unbound
// and may see data from every tenant.
const AllTenants = "*"

// ErrPermissionDenied is returned when a permission check fails. It is
// distinct from a not-found outcome so that callers can tell an entity
// they may not see apart from one that does not exist.
const ErrPermissionDenied = errors.ConstError("permission denied")

// Principal is the authenticated caller on whose behalf an operation runs.
// It is passed explicitly to anything that scopes behaviour by caller,
// rather than being read from ambient state.
type Principal struct {
	// UserID identifies the authenticated user.
	UserID string

	// GroupIDs are the groups the user belongs to.
	GroupIDs set.Strings

	// TenantIDs are the tenants the user is authorized to see.
	// A set containing AllTenants means no tenant restriction applies.
	TenantIDs set.Strings
}

// TenantUnbound returns true if the principal is not restricted to any
// particular set of tenants.
func (p Principal) TenantUnbound() bool {
	return p.TenantIDs.Contains(AllTenants)
}

// PermissionChecker checks whether a principal may perform an operation
// on a resource. Implementations live outside this core; consumers here
// only surface ErrPermissionDenied or downgrade it where documented.
type PermissionChecker interface {
	// Allowed returns nil if the principal may perform the named
	// permission on the resource, ErrPermissionDenied if not, and any
	// other error if the check itself could not be run.
	Allowed(ctx context.Context, p Principal, permission, resource string) error
}
