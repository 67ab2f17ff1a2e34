// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package variable

import (
	"context"

	"github.com/juju/errors"
)

// ScopeVariables provides the variable value projections of an owning
// scope: its own local variables, and all variables visible to it
// including those of ancestor scopes.
type ScopeVariables interface {
	LocalVariableValues(ctx context.Context) (map[string]Value, error)
	VisibleVariableValues(ctx context.Context) (map[string]Value, error)
}

// SnapshotMode selects which projection a snapshot observer captures.
type SnapshotMode int

const (
	// CaptureLocal captures only the scope's own variables.
	CaptureLocal SnapshotMode = iota

	// CaptureVisible captures all variables visible to the scope.
	CaptureVisible
)

// SnapshotObserver freezes a copy of a scope's variables when the scope
// is cleared. Until then it is armed: reading it computes the same
// projection on demand without capturing. Once the clear callback fires
// the captured snapshot is authoritative and is never recomputed, even
// if the underlying scope mutates afterwards.
//
// Attach the observer to the scope's store explicitly; the returned
// detach function ends its interest.
type SnapshotObserver struct {
	scope ScopeVariables
	mode  SnapshotMode

	captured bool
	snapshot map[string]Value
}

// NewSnapshotObserver returns an armed snapshot observer over the input
// scope, capturing the projection selected by mode.
func NewSnapshotObserver(scope ScopeVariables, mode SnapshotMode) *SnapshotObserver {
	return &SnapshotObserver{scope: scope, mode: mode}
}

// OnAdd (Observer) is ignored; only the clear lifecycle matters here.
func (o *SnapshotObserver) OnAdd(Instance) {}

// OnUpdate (Observer) is ignored.
func (o *SnapshotObserver) OnUpdate(Instance) {}

// OnRemove (Observer) is ignored.
func (o *SnapshotObserver) OnRemove(Instance) {}

// OnCleared (ClearListener) captures the snapshot. The transition to
// captured happens at most once.
func (o *SnapshotObserver) OnCleared(ctx context.Context) error {
	if o.captured {
		return nil
	}

	snapshot, err := o.project(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	o.snapshot = snapshot
	o.captured = true
	return nil
}

// Captured returns true once the clear callback has fired.
func (o *SnapshotObserver) Captured() bool {
	return o.captured
}

// Variables returns the snapshot. If the scope was already cleared the
// captured copy is returned; otherwise the projection is computed on
// demand, without capturing.
func (o *SnapshotObserver) Variables(ctx context.Context) (map[string]Value, error) {
	if o.captured {
		out := make(map[string]Value, len(o.snapshot))
		for name, v := range o.snapshot {
			out[name] = v
		}
		return out, nil
	}
	return o.project(ctx)
}

func (o *SnapshotObserver) project(ctx context.Context) (map[string]Value, error) {
	if o.mode == CaptureVisible {
		values, err := o.scope.VisibleVariableValues(ctx)
		return values, errors.Trace(err)
	}
	values, err := o.scope.LocalVariableValues(ctx)
	return values, errors.Trace(err)
}

// StoreScope adapts a single variable store to the ScopeVariables
// interface, for scopes without a parent: local and visible variables
// coincide.
type StoreScope struct {
	store *Store
}

// NewStoreScope returns a scope over the input store.
func NewStoreScope(store *Store) *StoreScope {
	return &StoreScope{store: store}
}

// LocalVariableValues (ScopeVariables) returns the store's values.
func (s *StoreScope) LocalVariableValues(ctx context.Context) (map[string]Value, error) {
	values, err := s.store.Snapshot(ctx)
	return values, errors.Trace(err)
}

// VisibleVariableValues (ScopeVariables) returns the store's values.
func (s *StoreScope) VisibleVariableValues(ctx context.Context) (map[string]Value, error) {
	values, err := s.store.Snapshot(ctx)
	return values, errors.Trace(err)
}
