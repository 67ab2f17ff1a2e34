// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package state persists engine properties: named configuration rows
// such as the schema history level and the installation id. Property
// rows declare an immutable persistent state, so they are never swept up
// by a flush; all writes go through the explicit operations here.
package state

import (
	"context"

	"github.com/canonical/sqlair"
	"github.com/google/uuid"
	"github.com/juju/errors"

	corelogger "github.com/procession-engine/procession/core/logger"
	"github.com/procession-engine/procession/domain/lock"
	lockstate "github.com/procession-engine/procession/domain/lock/state"
	"github.com/procession-engine/procession/domain/persistence"
	persistenceerrors "github.com/procession-engine/procession/domain/persistence/errors"
)

const (
	selectPropertyByIDOp = persistence.Operation("selectPropertyById")
	upsertPropertyOp     = persistence.Operation("upsertProperty")
	deletePropertyOp     = persistence.Operation("deleteProperty")
	selectPropertyListOp = persistence.Operation("selectPropertyList")
)

// InstallationIDName is the property holding the engine installation id.
const InstallationIDName = "installationId"

// dbProperty represents a row of the property table.
type dbProperty struct {
	Name  string `db:"name"`
	Value string `db:"value"`
}

// ID (persistence.Entity) returns the property name.
func (p *dbProperty) ID() string {
	return p.Name
}

// Revision (persistence.Revisioned) is always zero; properties carry no
// revision column.
func (p *dbProperty) Revision() int {
	return 0
}

// SetRevision (persistence.Revisioned) is a no-op for properties.
func (p *dbProperty) SetRevision(int) {}

// PersistentState (persistence.Revisioned) declares the property
// immutable: a flush never emits an update for it, even if the value
// was mutated in memory.
func (p *dbProperty) PersistentState() persistence.PersistentState {
	return persistence.ImmutableState()
}

// State describes retrieval and persistence methods for properties.
type State struct {
	store  *persistence.Store
	locks  *lockstate.State
	logger corelogger.Logger
}

// NewState registers the property operations with the input registry and
// returns a new state reference.
func NewState(registry *persistence.Registry, store *persistence.Store, locks *lockstate.State, logger corelogger.Logger) (*State, error) {
	for _, r := range []struct {
		op      persistence.Operation
		query   string
		list    bool
		samples []any
	}{{
		op: selectPropertyByIDOp,
		query: `
SELECT &dbProperty.*
FROM   property
WHERE  name = $M.id`,
		samples: []any{dbProperty{}},
	}, {
		op: upsertPropertyOp,
		query: `
INSERT INTO property (*) VALUES ($dbProperty.*)
ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		samples: []any{dbProperty{}},
	}, {
		op: deletePropertyOp,
		query: `
DELETE FROM property
WHERE  name = $dbProperty.name`,
		samples: []any{dbProperty{}},
	}, {
		op: selectPropertyListOp,
		query: `
SELECT &dbProperty.*
FROM   property
ORDER  BY name`,
		list:    true,
		samples: []any{dbProperty{}},
	}} {
		register := registry.Register
		if r.list {
			register = registry.RegisterList
		}
		if err := register(r.op, r.query, r.samples...); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return &State{store: store, locks: locks, logger: logger}, nil
}

// GetProperty returns the value of the named property. If it does not
// exist, an error satisfying persistenceerrors.NotFound is returned.
func (st *State) GetProperty(ctx context.Context, name string) (string, error) {
	var row dbProperty
	if err := st.store.SelectByID(ctx, selectPropertyByIDOp, name, &row); err != nil {
		return "", errors.Trace(err)
	}
	return row.Value, nil
}

// SetProperty creates or replaces the named property.
func (st *State) SetProperty(ctx context.Context, name, value string) error {
	if name == "" {
		return errors.NotValidf("empty property name")
	}
	return errors.Trace(st.store.Insert(ctx, upsertPropertyOp, &dbProperty{Name: name, Value: value}))
}

// DeleteProperty removes the named property.
func (st *State) DeleteProperty(ctx context.Context, name string) error {
	return errors.Trace(st.store.Delete(ctx, deletePropertyOp, &dbProperty{Name: name}))
}

// ListProperties returns all properties ordered by name.
func (st *State) ListProperties(ctx context.Context, page *persistence.Page) (map[string]string, error) {
	q := persistence.NewQuery()
	if page != nil {
		q = q.WithPage(*page)
	}

	var rows []dbProperty
	if err := st.store.SelectList(ctx, selectPropertyListOp, q, &rows); err != nil {
		return nil, errors.Trace(err)
	}

	props := make(map[string]string, len(rows))
	for _, row := range rows {
		props[row.Name] = row.Value
	}
	return props, nil
}

// EnsureInstallationID returns the engine installation id, generating
// and persisting one under the installation-id lock if none exists yet.
// The lock is taken inside the same transaction as the check and the
// write, so concurrent engine startups serialise on the whole sequence
// and exactly one id is ever minted.
func (st *State) EnsureInstallationID(ctx context.Context) (string, error) {
	id, err := st.GetProperty(ctx, InstallationIDName)
	if err == nil {
		return id, nil
	} else if !errors.Is(err, persistenceerrors.NotFound) {
		return "", errors.Trace(err)
	}

	var minted bool
	err = st.store.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		if err := st.locks.AcquireExclusiveLockTx(ctx, tx, lock.InstallationID); err != nil {
			return errors.Trace(err)
		}

		// Another engine may have minted the id before we took the lock.
		var row dbProperty
		err := st.store.SelectByIDTx(ctx, tx, selectPropertyByIDOp, InstallationIDName, &row)
		if err == nil {
			id = row.Value
			return nil
		} else if !errors.Is(err, persistenceerrors.NotFound) {
			return errors.Trace(err)
		}

		id = uuid.New().String()
		minted = true
		return errors.Trace(st.store.InsertTx(ctx, tx, upsertPropertyOp, &dbProperty{
			Name:  InstallationIDName,
			Value: id,
		}))
	})
	if err != nil {
		return "", errors.Trace(err)
	}

	if minted {
		st.logger.Infof(ctx, "generated installation id %q", id)
	}
	return id, nil
}
