// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package errors

import "github.com/juju/errors"

const (
	// NotFound is raised when the tenant does not exist.
	NotFound = errors.ConstError("tenant not found")

	// AlreadyExists is raised when a tenant with the same id already
	// exists.
	AlreadyExists = errors.ConstError("tenant already exists")

	// MembershipNotFound is raised when the membership does not exist.
	MembershipNotFound = errors.ConstError("tenant membership not found")

	// MembershipAlreadyExists is raised when the tenant already has a
	// membership for the same user or group.
	MembershipAlreadyExists = errors.ConstError("tenant membership already exists")
)
