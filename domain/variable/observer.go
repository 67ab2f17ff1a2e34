// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package variable

// Projection is an observer that maintains a name to typed value read
// model of the store it is attached to. Add and update both upsert the
// association and remove deletes it, so the projection always reflects
// the store's latest state without re-querying it.
type Projection struct {
	values map[string]Value
}

// NewProjection returns an empty projection. Attach it to a store to
// keep it current.
func NewProjection() *Projection {
	return &Projection{values: make(map[string]Value)}
}

// OnAdd (Observer) records the added variable's value.
func (p *Projection) OnAdd(v Instance) {
	p.values[v.Name] = v.Value
}

// OnUpdate (Observer) records the updated variable's value.
func (p *Projection) OnUpdate(v Instance) {
	p.values[v.Name] = v.Value
}

// OnRemove (Observer) forgets the removed variable.
func (p *Projection) OnRemove(v Instance) {
	delete(p.values, v.Name)
}

// Value returns the projected value of the named variable.
func (p *Projection) Value(name string) (Value, bool) {
	v, ok := p.values[name]
	return v, ok
}

// Values returns a copy of the projected name to value mapping.
func (p *Projection) Values() map[string]Value {
	out := make(map[string]Value, len(p.values))
	for name, v := range p.values {
		out[name] = v
	}
	return out
}
