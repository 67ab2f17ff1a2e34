// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package database

// Delta represents a schema change with associated arguments.
type Delta struct {
	stmt string
	args []any
}

// MakeDelta returns a Delta with the input statement and arguments.
func MakeDelta(stmt string, args ...any) Delta {
	return Delta{
		stmt: stmt,
		args: args,
	}
}

// Stmt returns the delta's statement.
func (d Delta) Stmt() string {
	return d.stmt
}

// Args returns the delta's statement arguments.
func (d Delta) Args() []any {
	return d.args
}
