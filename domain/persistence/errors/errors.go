// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package errors

import "github.com/juju/errors"

const (
	// NotFound is returned when a select expected a row and none matched.
	NotFound = errors.ConstError("record not found")

	// AlreadyExists is returned when an insert violates a unique or
	// primary key constraint.
	AlreadyExists = errors.ConstError("record already exists")

	// ConcurrentModification is returned when an update or delete carrying
	// a revision predicate matched zero rows, meaning another unit of work
	// changed the entity first. It is never retried at this layer.
	ConcurrentModification = errors.ConstError("concurrently modified")

	// UnknownOperation is returned when an operation name was never
	// registered with the statement registry.
	UnknownOperation = errors.ConstError("unknown operation")

	// InvalidIdentifier is returned when a lookup is attempted with an
	// empty identifier. It is raised before any store access.
	InvalidIdentifier = errors.ConstError("invalid identifier")

	// InvalidFilter is returned when the parameters passed to an operation
	// cannot be bound, for example more than one collection filter.
	InvalidFilter = errors.ConstError("invalid filter")

	// TenantScopeNotConfigured is returned when a tenant-scoped operation
	// is executed with a query whose tenant restriction was neither
	// enabled nor explicitly disabled. Unrestricted access is always an
	// explicit choice, never a default.
	TenantScopeNotConfigured = errors.ConstError("tenant restriction not configured")

	// TenantScopeUnsupported is returned when a tenant-restricted query is
	// run against an operation that was not registered as tenant-scoped.
	TenantScopeUnsupported = errors.ConstError("operation is not tenant scoped")

	// LockUnavailable is returned when an exclusive lock could not be
	// obtained because another unit of work holds it.
	LockUnavailable = errors.ConstError("lock unavailable")
)
