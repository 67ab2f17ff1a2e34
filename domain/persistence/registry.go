// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package persistence

import (
	"strings"
	"sync"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"

	persistenceerrors "github.com/procession-engine/procession/domain/persistence/errors"
)

// Operation names a registered statement. The store does not interpret an
// operation's semantics, it only threads parameters and paging through.
type Operation string

// pagingClause is appended to every list operation. A limit of -1 means
// no limit, which is what the store binds when no page is supplied.
const pagingClause = "\nLIMIT $M.limit OFFSET $M.offset"

type operation struct {
	stmt *sqlair.Statement

	// hasParams is true if the query binds the generic parameter map.
	hasParams bool

	// hasSlice is true if the query binds a collection filter.
	hasSlice bool

	// tenantScoped is true if the query carries the tenant restriction
	// predicate. Such operations require a query with a configured tenant
	// restriction and may not take a caller collection filter.
	tenantScoped bool
}

// Registry holds prepared statements keyed by operation name. A registry
// is populated once at wiring time by each state package and then shared
// read-only by stores.
type Registry struct {
	mu  sync.RWMutex
	ops map[Operation]*operation
}

// NewRegistry returns an empty statement registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[Operation]*operation)}
}

// Register prepares the input query and records it under the operation
// name. The type samples follow sqlair conventions; include sqlair.M if
// the query binds named parameters and sqlair.S if it binds a collection
// filter.
func (r *Registry) Register(op Operation, query string, typeSamples ...any) error {
	return errors.Trace(r.register(op, query, false, typeSamples))
}

// RegisterList prepares a list query, appending the paging clause so that
// every list operation supports offset and limit.
func (r *Registry) RegisterList(op Operation, query string, typeSamples ...any) error {
	return errors.Trace(r.register(op, query+pagingClause, false, typeSamples))
}

// RegisterTenantScopedList prepares a list query that carries the tenant
// restriction predicate, which must be of the form:
//
//	AND (NOT $M.tenant_restricted OR tenant_id IS NULL OR tenant_id IN ($S[:]))
//
// The store supplies the tenant parameters from the query's configured
// restriction; the operation may not take a caller collection filter.
func (r *Registry) RegisterTenantScopedList(op Operation, query string, typeSamples ...any) error {
	return errors.Trace(r.register(op, query+pagingClause, true, typeSamples))
}

func (r *Registry) register(op Operation, query string, tenantScoped bool, typeSamples []any) error {
	// Whether the parameter map and collection filter are bound is decided
	// by the query text itself, so that the store only ever passes
	// arguments the statement references.
	hasParams := strings.Contains(query, "$M.")
	hasSlice := strings.Contains(query, "$S[")

	var sawParams, sawSlice bool
	for _, sample := range typeSamples {
		switch sample.(type) {
		case sqlair.M:
			sawParams = true
		case sqlair.S:
			sawSlice = true
		}
	}
	if hasParams && !sawParams {
		typeSamples = append(typeSamples, sqlair.M{})
	}
	if hasSlice && !sawSlice {
		typeSamples = append(typeSamples, sqlair.S{})
	}
	if tenantScoped && !hasSlice {
		return errors.Errorf("tenant-scoped operation %q does not bind the tenant id collection", op)
	}

	stmt, err := sqlair.Prepare(query, typeSamples...)
	if err != nil {
		return errors.Annotatef(err, "preparing operation %q", op)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ops[op]; ok {
		return errors.Errorf("operation %q already registered", op)
	}
	r.ops[op] = &operation{
		stmt:         stmt,
		hasParams:    hasParams,
		hasSlice:     hasSlice,
		tenantScoped: tenantScoped,
	}
	return nil
}

func (r *Registry) lookup(op Operation) (*operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.ops[op]
	if !ok {
		return nil, errors.Annotatef(persistenceerrors.UnknownOperation, "%q", op)
	}
	return o, nil
}
