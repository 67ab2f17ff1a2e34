// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package persistence

// Entity is implemented by any row type handled by the store.
type Entity interface {
	// ID returns the entity's identity. It is immutable after creation.
	ID() string
}

// Revisioned is implemented by entities participating in optimistic
// concurrency. The revision is a monotonically increasing counter used as
// a compare-and-swap token on update.
type Revisioned interface {
	Entity

	// Revision returns the entity's current revision.
	Revision() int

	// SetRevision sets the entity's revision. It is called by the store
	// after a successful flush and should not be called elsewhere.
	SetRevision(int)

	// PersistentState returns a snapshot of the entity's mutable
	// persistent fields. A flush only writes when this has changed since
	// the entity was loaded.
	PersistentState() PersistentState
}

// RevisionNext returns the revision the entity will hold after its next
// successful update. It never mutates the entity.
func RevisionNext(r Revisioned) int {
	return r.Revision() + 1
}

// PersistentState is a snapshot of an entity's persistence-relevant
// fields. It is either mutable, carrying a comparable state value, or
// immutable, in which case the entity is never flushed regardless of
// in-memory mutation.
type PersistentState struct {
	immutable bool
	state     any
}

// MutableState returns a persistent state wrapping the input value. The
// value must be comparable; entities typically use a small struct of
// their mutable fields.
func MutableState(state any) PersistentState {
	return PersistentState{state: state}
}

// ImmutableState returns the persistent state of an entity that declares
// itself immutable. Updates are never emitted for such entities.
func ImmutableState() PersistentState {
	return PersistentState{immutable: true}
}

// IsImmutable returns true if the entity declared itself immutable.
func (s PersistentState) IsImmutable() bool {
	return s.immutable
}

// Changed reports whether the state differs from the state captured at
// load time. An immutable entity never reports a change; a mutable one
// always does when the captured state is not comparable to it.
func (s PersistentState) Changed(loaded PersistentState) bool {
	if s.immutable {
		return false
	}
	if loaded.immutable {
		return true
	}
	return s.state != loaded.state
}
