// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package variable implements the per-scope variable store of a running
// process instance: a lazily loaded, observer-notified collection of
// named typed values, with point-in-time snapshotting.
package variable

import (
	"github.com/juju/errors"
)

// ValueType names the type of a variable value.
type ValueType string

const (
	TypeNull    ValueType = "null"
	TypeString  ValueType = "string"
	TypeInteger ValueType = "integer"
	TypeDouble  ValueType = "double"
	TypeBoolean ValueType = "boolean"
)

// Value is a typed variable value.
type Value struct {
	// Type names the value's type.
	Type ValueType

	// Data holds the value itself; its dynamic type corresponds to Type.
	Data any
}

// NullValue returns the typed null value.
func NullValue() Value {
	return Value{Type: TypeNull}
}

// StringValue returns a typed string value.
func StringValue(v string) Value {
	return Value{Type: TypeString, Data: v}
}

// IntegerValue returns a typed integer value.
func IntegerValue(v int64) Value {
	return Value{Type: TypeInteger, Data: v}
}

// DoubleValue returns a typed double value.
func DoubleValue(v float64) Value {
	return Value{Type: TypeDouble, Data: v}
}

// BooleanValue returns a typed boolean value.
func BooleanValue(v bool) Value {
	return Value{Type: TypeBoolean, Data: v}
}

// Instance is a variable instance: a named typed value owned by exactly
// one scope, an execution or a task, at a time.
type Instance struct {
	// ID is the variable instance's identity.
	ID string

	// Name is the variable name, unique within the owning scope.
	Name string

	// Value is the variable's typed value.
	Value Value

	// Owner is the owning scope.
	Owner Owner

	// TenantID is the owning tenant, empty for untenanted scopes.
	TenantID string
}

// Owner identifies a variable's owning scope: an execution or a task,
// exactly one of which is set.
type Owner struct {
	ExecutionID string
	TaskID      string
}

// ExecutionOwner returns the owner for the input execution.
func ExecutionOwner(executionID string) Owner {
	return Owner{ExecutionID: executionID}
}

// TaskOwner returns the owner for the input task.
func TaskOwner(taskID string) Owner {
	return Owner{TaskID: taskID}
}

// Validate returns an error if the owner does not reference exactly one
// of an execution or a task.
func (o Owner) Validate() error {
	if (o.ExecutionID == "") == (o.TaskID == "") {
		return errors.NotValidf("owner execution %q and task %q", o.ExecutionID, o.TaskID)
	}
	return nil
}
