// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package errors

import "github.com/juju/errors"

const (
	// NotFound is raised when a variable with the requested name does not
	// exist in the scope.
	NotFound = errors.ConstError("variable not found")

	// AlreadyExists is raised when a variable instance with the same name
	// already exists in the owning scope.
	AlreadyExists = errors.ConstError("variable already exists")
)
