// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package persistence implements the entity store every manager builds
// on: named operations executed against the engine database, with
// optimistic concurrency for revisioned entities, tenant scoping for
// list operations and exclusive sentinel-row locking.
package persistence

import (
	"context"
	"fmt"
	"sync"

	"github.com/canonical/sqlair"
	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/procession-engine/procession/core/auth"
	coredatabase "github.com/procession-engine/procession/core/database"
	corelogger "github.com/procession-engine/procession/core/logger"
	"github.com/procession-engine/procession/domain"
	persistenceerrors "github.com/procession-engine/procession/domain/persistence/errors"
	internaldatabase "github.com/procession-engine/procession/internal/database"
)

// Store executes registered operations against the engine database. A
// store serves cooperating callers within one unit of work at a time; it
// tracks the persistent state of every revisioned entity it loads so
// that a flush can decide whether a write is needed at all.
type Store struct {
	*domain.StateBase
	registry *Registry
	logger   corelogger.Logger

	mu     sync.Mutex
	loaded map[string]PersistentState
}

// NewStore returns a store over the input registry and database.
func NewStore(registry *Registry, factory coredatabase.TxnRunnerFactory, logger corelogger.Logger) *Store {
	return &Store{
		StateBase: domain.NewStateBase(factory),
		registry:  registry,
		logger:    logger,
		loaded:    make(map[string]PersistentState),
	}
}

// SelectByID runs the input operation for the input id, decoding the row
// into dest. It returns an error satisfying
// persistenceerrors.NotFound if no row matched. If dest is a revisioned
// entity its loaded persistent state is captured for later flushes.
func (s *Store) SelectByID(ctx context.Context, op Operation, id string, dest Entity) error {
	if id == "" {
		return errors.Annotatef(persistenceerrors.InvalidIdentifier, "selecting %q by id", op)
	}

	o, err := s.registry.lookup(op)
	if err != nil {
		return errors.Trace(err)
	}

	err = s.run(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		err := tx.Query(ctx, o.stmt, sqlair.M{"id": id}).Get(dest)
		if errors.Is(err, sqlair.ErrNoRows) {
			return errors.Annotatef(persistenceerrors.NotFound, "%q with id %q", op, id)
		}
		return errors.Trace(err)
	})
	if err != nil {
		return errors.Trace(err)
	}

	if r, ok := dest.(Revisioned); ok {
		s.remember(r)
	}
	return nil
}

// SelectByIDTx is SelectByID inside the input transaction. Persistent
// state is not captured; entities participating in flush tracking should
// be loaded through SelectByID instead.
func (s *Store) SelectByIDTx(ctx context.Context, tx *sqlair.TX, op Operation, id string, dest Entity) error {
	if id == "" {
		return errors.Annotatef(persistenceerrors.InvalidIdentifier, "selecting %q by id", op)
	}

	o, err := s.registry.lookup(op)
	if err != nil {
		return errors.Trace(err)
	}

	err = tx.Query(ctx, o.stmt, sqlair.M{"id": id}).Get(dest)
	if errors.Is(err, sqlair.ErrNoRows) {
		return errors.Annotatef(persistenceerrors.NotFound, "%q with id %q", op, id)
	}
	return errors.Trace(err)
}

// SelectOne runs the input operation with the input parameters, decoding
// the single resulting row into dest. Absence of a row is an error
// satisfying persistenceerrors.NotFound.
func (s *Store) SelectOne(ctx context.Context, op Operation, params Params, dest any) error {
	o, err := s.registry.lookup(op)
	if err != nil {
		return errors.Trace(err)
	}

	args, empty, err := s.bindParams(o, params)
	if err != nil {
		return errors.Trace(err)
	}
	if empty {
		return errors.Annotatef(persistenceerrors.NotFound, "%q with empty collection filter", op)
	}

	return errors.Trace(s.run(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		err := tx.Query(ctx, o.stmt, args...).Get(dest)
		if errors.Is(err, sqlair.ErrNoRows) {
			return errors.Annotatef(persistenceerrors.NotFound, "%q", op)
		}
		return errors.Trace(err)
	}))
}

// SelectList runs the input list operation, decoding the resulting rows
// into dest, which must be a pointer to a slice of the operation's row
// type. Paging and tenant restriction are taken from the query. An
// empty collection filter short-circuits to an empty result without
// issuing a query.
func (s *Store) SelectList(ctx context.Context, op Operation, q *Query, dest any) error {
	o, err := s.registry.lookup(op)
	if err != nil {
		return errors.Trace(err)
	}

	if q == nil {
		q = NewQuery()
	}
	args, empty, err := s.bindQuery(o, q)
	if err != nil {
		return errors.Trace(err)
	}
	if empty {
		s.logger.Tracef(ctx, "short-circuiting %q: empty collection filter", op)
		return nil
	}

	return errors.Trace(s.run(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		err := tx.Query(ctx, o.stmt, args...).GetAll(dest)
		if errors.Is(err, sqlair.ErrNoRows) {
			return nil
		}
		return errors.Trace(err)
	}))
}

// Insert runs the input operation for the input entity. A unique or
// primary key violation is returned as an error satisfying
// persistenceerrors.AlreadyExists. Revisioned entities have their
// persistent state captured so an immediately following flush is a no-op.
func (s *Store) Insert(ctx context.Context, op Operation, e Entity) error {
	o, err := s.registry.lookup(op)
	if err != nil {
		return errors.Trace(err)
	}

	err = s.run(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		err := tx.Query(ctx, o.stmt, e).Run()
		if internaldatabase.IsErrConstraintUnique(err) {
			return errors.Annotatef(persistenceerrors.AlreadyExists, "%q with id %q", op, e.ID())
		}
		return errors.Trace(err)
	})
	if err != nil {
		return errors.Trace(err)
	}

	if r, ok := e.(Revisioned); ok {
		s.remember(r)
	}
	return nil
}

// InsertTx is Insert inside the input transaction. Persistent state is
// not captured; the enclosing transaction may still roll back.
func (s *Store) InsertTx(ctx context.Context, tx *sqlair.TX, op Operation, e Entity) error {
	o, err := s.registry.lookup(op)
	if err != nil {
		return errors.Trace(err)
	}

	err = tx.Query(ctx, o.stmt, e).Run()
	if internaldatabase.IsErrConstraintUnique(err) {
		return errors.Annotatef(persistenceerrors.AlreadyExists, "%q with id %q", op, e.ID())
	}
	return errors.Trace(err)
}

// Delete runs the input operation for the input entity. Zero affected
// rows means the entity was concurrently removed or, for revisioned
// entities whose delete carries a revision predicate, concurrently
// updated.
func (s *Store) Delete(ctx context.Context, op Operation, e Entity) error {
	o, err := s.registry.lookup(op)
	if err != nil {
		return errors.Trace(err)
	}

	err = s.run(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		var outcome sqlair.Outcome
		if err := tx.Query(ctx, o.stmt, e).Get(&outcome); err != nil {
			return errors.Trace(err)
		}
		affected, err := outcome.Result().RowsAffected()
		if err != nil {
			return errors.Trace(err)
		}
		if affected == 0 {
			// For a revisioned entity the delete carries the loaded
			// revision, so zero rows means somebody updated it first.
			if r, ok := e.(Revisioned); ok && !r.PersistentState().IsImmutable() {
				return errors.Annotatef(persistenceerrors.ConcurrentModification, "deleting %q", e.ID())
			}
			return errors.Annotatef(persistenceerrors.NotFound, "%q with id %q", op, e.ID())
		}
		return nil
	})
	if err != nil {
		return errors.Trace(err)
	}

	s.forget(e)
	return nil
}

// Flush issues the input update operation for the input entity if and
// only if its persistent state has changed since load. The operation's
// statement must increment the revision column and carry the loaded
// revision as predicate, for example:
//
//	UPDATE tenant
//	SET    name = $dbTenant.name, revision = $dbTenant.revision + 1
//	WHERE  id = $dbTenant.id AND revision = $dbTenant.revision
//
// Zero affected rows is an optimistic concurrency conflict, returned as
// an error satisfying persistenceerrors.ConcurrentModification and never
// retried here. On success the in-memory revision is advanced to match
// the store.
func (s *Store) Flush(ctx context.Context, op Operation, e Revisioned) error {
	if e.ID() == "" {
		return errors.Annotatef(persistenceerrors.InvalidIdentifier, "flushing %q", op)
	}

	current := e.PersistentState()
	if current.IsImmutable() {
		return nil
	}

	s.mu.Lock()
	captured, ok := s.loaded[stateKey(e)]
	s.mu.Unlock()
	if ok && !current.Changed(captured) {
		s.logger.Tracef(ctx, "skipping flush of %q: persistent state unchanged", e.ID())
		return nil
	}

	o, err := s.registry.lookup(op)
	if err != nil {
		return errors.Trace(err)
	}

	err = s.run(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		var outcome sqlair.Outcome
		if err := tx.Query(ctx, o.stmt, e).Get(&outcome); err != nil {
			return errors.Trace(err)
		}
		affected, err := outcome.Result().RowsAffected()
		if err != nil {
			return errors.Trace(err)
		}
		if affected == 0 {
			return errors.Annotatef(persistenceerrors.ConcurrentModification,
				"updating %q at revision %d", e.ID(), e.Revision())
		}
		return nil
	})
	if err != nil {
		return errors.Trace(err)
	}

	e.SetRevision(e.Revision() + 1)
	s.remember(e)
	return nil
}

// Txn runs the input function inside one database transaction. Use the
// Tx variants of the store operations within it to compose a
// multi-statement unit of work, such as holding a lock across a
// read-check-write sequence.
func (s *Store) Txn(ctx context.Context, fn func(context.Context, *sqlair.TX) error) error {
	return errors.Trace(s.run(ctx, fn))
}

// Lock obtains the exclusive lock written by the input operation within
// its own transaction. To hold a lock for an enclosing unit of work, use
// LockTx inside that unit's transaction instead.
func (s *Store) Lock(ctx context.Context, op Operation) error {
	return errors.Trace(s.run(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		return errors.Trace(s.LockTx(ctx, tx, op))
	}))
}

// LockTx obtains an exclusive lock by writing the operation's sentinel
// row inside the input transaction. The lock is held until the
// transaction ends; there is no explicit unlock. A store-side lock
// conflict is returned as an error satisfying
// persistenceerrors.LockUnavailable; a missing sentinel row satisfies
// persistenceerrors.NotFound.
func (s *Store) LockTx(ctx context.Context, tx *sqlair.TX, op Operation) error {
	o, err := s.registry.lookup(op)
	if err != nil {
		return errors.Trace(err)
	}

	var outcome sqlair.Outcome
	if err := tx.Query(ctx, o.stmt).Get(&outcome); err != nil {
		if internaldatabase.IsErrLocked(err) {
			return errors.Annotatef(persistenceerrors.LockUnavailable, "%q", op)
		}
		return errors.Trace(err)
	}
	affected, err := outcome.Result().RowsAffected()
	if err != nil {
		return errors.Trace(err)
	}
	if affected == 0 {
		return errors.Annotatef(persistenceerrors.NotFound, "lock sentinel for %q", op)
	}
	return nil
}

// Forget drops the captured persistent state for the input entity.
// The next flush of that entity is unconditionally issued.
func (s *Store) Forget(e Entity) {
	s.forget(e)
}

// stateKey returns the captured-state map key for the input entity.
// Ids are only unique within an entity type, so the key carries both.
func stateKey(e Entity) string {
	return fmt.Sprintf("%T %s", e, e.ID())
}

func (s *Store) remember(r Revisioned) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded[stateKey(r)] = r.PersistentState()
}

func (s *Store) forget(e Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.loaded, stateKey(e))
}

func (s *Store) run(ctx context.Context, fn func(context.Context, *sqlair.TX) error) error {
	db, err := s.DB()
	if err != nil {
		return errors.Annotate(err, "getting DB access")
	}
	return errors.Trace(db.Txn(ctx, fn))
}

// bindParams binds the input parameters for a non-list operation. A
// collection-valued parameter is bound as the operation's collection
// filter; an empty one reports empty=true so callers can short-circuit.
func (s *Store) bindParams(o *operation, params Params) (args []any, empty bool, err error) {
	m := sqlair.M{}
	var slice sqlair.S
	var sliceSeen bool

	for name, value := range params {
		sl, ok := asSlice(value)
		if !ok {
			m[name] = value
			continue
		}
		if sliceSeen {
			return nil, false, errors.Annotatef(persistenceerrors.InvalidFilter,
				"more than one collection filter")
		}
		sliceSeen = true
		if len(sl) == 0 {
			empty = true
		}
		slice = sl
	}

	if sliceSeen && !o.hasSlice {
		return nil, false, errors.Annotatef(persistenceerrors.InvalidFilter,
			"operation does not take a collection filter")
	}
	if o.hasSlice && !sliceSeen {
		return nil, false, errors.Annotatef(persistenceerrors.InvalidFilter,
			"missing collection filter")
	}

	if o.hasParams {
		args = append(args, m)
	}
	if o.hasSlice {
		args = append(args, slice)
	}
	return args, empty, nil
}

// bindQuery binds a list operation's parameters, paging and tenant
// restriction.
func (s *Store) bindQuery(o *operation, q *Query) (args []any, empty bool, err error) {
	m := sqlair.M{}
	var slice sqlair.S
	var sliceSeen bool

	for name, value := range q.params {
		sl, ok := asSlice(value)
		if !ok {
			m[name] = value
			continue
		}
		if sliceSeen {
			return nil, false, errors.Annotatef(persistenceerrors.InvalidFilter,
				"more than one collection filter")
		}
		sliceSeen = true
		if len(sl) == 0 {
			empty = true
		}
		slice = sl
	}

	if o.tenantScoped {
		if sliceSeen {
			return nil, false, errors.Annotatef(persistenceerrors.InvalidFilter,
				"collection filter on tenant-scoped operation")
		}
		restricted, ids, err := effectiveRestriction(q)
		if err != nil {
			return nil, false, errors.Trace(err)
		}
		m["tenant_restricted"] = restricted
		if !restricted {
			// The collection is never evaluated when unrestricted, but
			// the statement still binds it, so supply a placeholder.
			slice = sqlair.S{auth.AllTenants}
		} else {
			if ids.IsEmpty() {
				empty = true
			}
			for _, id := range ids.SortedValues() {
				slice = append(slice, id)
			}
		}
	} else {
		if q.TenantRestricted() {
			return nil, false, errors.Trace(persistenceerrors.TenantScopeUnsupported)
		}
		if sliceSeen && !o.hasSlice {
			return nil, false, errors.Annotatef(persistenceerrors.InvalidFilter,
				"operation does not take a collection filter")
		}
		if o.hasSlice && !sliceSeen {
			return nil, false, errors.Annotatef(persistenceerrors.InvalidFilter,
				"missing collection filter")
		}
	}

	limit, offset := -1, 0
	if q.page != nil {
		limit, offset = q.page.Limit, q.page.Offset
	}
	m["limit"] = limit
	m["offset"] = offset

	if o.hasParams {
		args = append(args, m)
	}
	if o.hasSlice {
		args = append(args, slice)
	}
	return args, empty, nil
}

// effectiveRestriction resolves a query's configured tenant restriction.
// A principal's authorized set containing the AllTenants sentinel means
// the caller is tenant-unbound and sees everything.
func effectiveRestriction(q *Query) (bool, set.Strings, error) {
	switch q.restriction {
	case tenantRestricted:
		if q.tenantIDs.Contains(auth.AllTenants) {
			return false, nil, nil
		}
		return true, q.tenantIDs, nil
	case tenantUnrestricted:
		return false, nil, nil
	default:
		return false, nil, errors.Trace(persistenceerrors.TenantScopeNotConfigured)
	}
}

func asSlice(value any) (sqlair.S, bool) {
	switch v := value.(type) {
	case sqlair.S:
		return v, true
	case []string:
		out := make(sqlair.S, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	case []any:
		return sqlair.S(v), true
	}
	return nil, false
}
