// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package variable

import (
	"context"

	"github.com/juju/errors"

	variableerrors "github.com/procession-engine/procession/domain/variable/errors"
)

// Loader retrieves the full current variable set of an owning scope.
// The store calls it exactly once per store lifetime.
type Loader interface {
	LoadVariables(ctx context.Context, owner Owner) ([]Instance, error)
}

// Observer is notified of every mutation of a store it is attached to,
// synchronously and in mutation order, before the mutating call returns.
type Observer interface {
	// OnAdd is called after a variable was added to the store.
	OnAdd(v Instance)

	// OnUpdate is called after an existing variable's value changed.
	OnUpdate(v Instance)

	// OnRemove is called after a variable was removed from the store.
	OnRemove(v Instance)
}

// ClearListener is implemented by observers that additionally want the
// scope's clear lifecycle callback, fired exactly once when the owning
// scope detaches.
type ClearListener interface {
	OnCleared(ctx context.Context) error
}

// loadState is the store's lazy-load state. The only transition is
// unloaded to loaded, performed by ensureLoaded.
type loadState int

const (
	unloaded loadState = iota
	loaded
)

type attachedObserver struct {
	id       int
	observer Observer
}

// Store is the ordered, named variable collection of one owning scope.
// It is empty until first accessed, at which point it loads the scope's
// variables exactly once; all mutation goes through Put and Remove, each
// of which notifies every attached observer before returning.
//
// A store serves cooperating callers within one unit of work; it is not
// safe for concurrent use.
type Store struct {
	owner  Owner
	loader Loader

	state loadState
	vars  map[string]*Instance
	order []string

	observers []attachedObserver
	nextID    int
	cleared   bool
}

// NewStore returns an unloaded store for the input owner.
func NewStore(owner Owner, loader Loader) *Store {
	return &Store{
		owner:  owner,
		loader: loader,
		vars:   make(map[string]*Instance),
	}
}

// Loaded returns true once the store has materialised its variables.
func (s *Store) Loaded() bool {
	return s.state == loaded
}

// Attach registers the input observer and returns a function that
// detaches it again. Registration is explicit so that observer lifetime
// is deterministic.
func (s *Store) Attach(o Observer) func() {
	id := s.nextID
	s.nextID++
	s.observers = append(s.observers, attachedObserver{id: id, observer: o})

	return func() {
		for i, attached := range s.observers {
			if attached.id == id {
				s.observers = append(s.observers[:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

// Get returns the variable with the input name. If the scope has no such
// variable, an error satisfying variableerrors.NotFound is returned.
func (s *Store) Get(ctx context.Context, name string) (Instance, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return Instance{}, errors.Trace(err)
	}
	v, ok := s.vars[name]
	if !ok {
		return Instance{}, errors.Annotatef(variableerrors.NotFound, "%q", name)
	}
	return *v, nil
}

// Put adds or updates the named variable. Observers are notified with
// OnAdd or OnUpdate accordingly, before Put returns.
func (s *Store) Put(ctx context.Context, v Instance) error {
	if v.Name == "" {
		return errors.NotValidf("empty variable name")
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return errors.Trace(err)
	}

	v.Owner = s.owner
	if existing, ok := s.vars[v.Name]; ok {
		if v.ID == "" {
			v.ID = existing.ID
		}
		*existing = v
		s.notify(func(o Observer) { o.OnUpdate(v) })
		return nil
	}

	s.vars[v.Name] = &v
	s.order = append(s.order, v.Name)
	s.notify(func(o Observer) { o.OnAdd(v) })
	return nil
}

// Remove deletes the named variable, returning it. Observers are
// notified with OnRemove before Remove returns.
func (s *Store) Remove(ctx context.Context, name string) (Instance, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return Instance{}, errors.Trace(err)
	}

	v, ok := s.vars[name]
	if !ok {
		return Instance{}, errors.Annotatef(variableerrors.NotFound, "%q", name)
	}

	delete(s.vars, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	removed := *v
	s.notify(func(o Observer) { o.OnRemove(removed) })
	return removed, nil
}

// Size returns the number of variables in the scope.
func (s *Store) Size(ctx context.Context) (int, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return 0, errors.Trace(err)
	}
	return len(s.vars), nil
}

// Variables returns the scope's variables in order.
func (s *Store) Variables(ctx context.Context) ([]Instance, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, errors.Trace(err)
	}

	out := make([]Instance, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, *s.vars[name])
	}
	return out, nil
}

// Snapshot returns an immutable point-in-time copy of the scope's
// variable values. Later mutation of the store does not affect a
// previously returned snapshot.
func (s *Store) Snapshot(ctx context.Context) (map[string]Value, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, errors.Trace(err)
	}

	snapshot := make(map[string]Value, len(s.vars))
	for name, v := range s.vars {
		snapshot[name] = v.Value
	}
	return snapshot, nil
}

// NotifyCleared fires the scope's clear lifecycle callback to every
// attached clear listener. Owners call it exactly once, when the scope
// detaches; repeat calls are no-ops.
func (s *Store) NotifyCleared(ctx context.Context) error {
	if s.cleared {
		return nil
	}
	s.cleared = true

	for _, attached := range s.observers {
		listener, ok := attached.observer.(ClearListener)
		if !ok {
			continue
		}
		if err := listener.OnCleared(ctx); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// ensureLoaded performs the store's only state transition, materialising
// the owner's variables on first access.
func (s *Store) ensureLoaded(ctx context.Context) error {
	if s.state == loaded {
		return nil
	}

	if err := s.owner.Validate(); err != nil {
		return errors.Trace(err)
	}
	instances, err := s.loader.LoadVariables(ctx, s.owner)
	if err != nil {
		return errors.Annotate(err, "loading variables")
	}

	for _, v := range instances {
		v := v
		if _, ok := s.vars[v.Name]; ok {
			continue
		}
		s.vars[v.Name] = &v
		s.order = append(s.order, v.Name)
	}
	s.state = loaded
	return nil
}

func (s *Store) notify(fn func(Observer)) {
	for _, attached := range s.observers {
		fn(attached.observer)
	}
}
