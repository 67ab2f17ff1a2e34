// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"context"

	"github.com/google/uuid"
	"github.com/juju/errors"

	corelogger "github.com/procession-engine/procession/core/logger"
	"github.com/procession-engine/procession/domain/persistence"
	persistenceerrors "github.com/procession-engine/procession/domain/persistence/errors"
	"github.com/procession-engine/procession/domain/variable"
	variableerrors "github.com/procession-engine/procession/domain/variable/errors"
)

const (
	selectVariableByIDOp         = persistence.Operation("selectVariableById")
	selectVariablesByOwnerOp     = persistence.Operation("selectVariablesByOwner")
	insertVariableOp             = persistence.Operation("insertVariable")
	deleteVariableOp             = persistence.Operation("deleteVariable")
	selectVariableInstanceListOp = persistence.Operation("selectVariableInstanceList")
)

// State describes retrieval and persistence methods for variable
// instances. It implements variable.Loader for the in-memory store.
type State struct {
	store  *persistence.Store
	logger corelogger.Logger
}

// NewState registers the variable operations with the input registry and
// returns a new state reference.
func NewState(registry *persistence.Registry, store *persistence.Store, logger corelogger.Logger) (*State, error) {
	for _, r := range []struct {
		register func(persistence.Operation, string, ...any) error
		op       persistence.Operation
		query    string
	}{{
		register: registry.Register,
		op:       selectVariableByIDOp,
		query: `
SELECT &dbVariable.*
FROM   variable_instance
WHERE  id = $M.id`,
	}, {
		register: registry.RegisterList,
		op:       selectVariablesByOwnerOp,
		query: `
SELECT &dbVariable.*
FROM   variable_instance
WHERE  (execution_id = $M.execution_id AND $M.execution_id != '')
OR     (task_id = $M.task_id AND $M.task_id != '')
ORDER  BY name`,
	}, {
		register: registry.Register,
		op:       insertVariableOp,
		query: `
INSERT INTO variable_instance (*) VALUES ($dbVariable.*)`,
	}, {
		register: registry.Register,
		op:       deleteVariableOp,
		query: `
DELETE FROM variable_instance
WHERE  id = $dbVariable.id`,
	}, {
		register: registry.RegisterTenantScopedList,
		op:       selectVariableInstanceListOp,
		query: `
SELECT &dbVariable.*
FROM   variable_instance
WHERE  (NOT $M.tenant_restricted OR tenant_id IS NULL OR tenant_id IN ($S[:]))
ORDER  BY id`,
	}} {
		if err := r.register(r.op, r.query, dbVariable{}); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return &State{store: store, logger: logger}, nil
}

// LoadVariables (variable.Loader) returns the full current variable set
// of the input owner, ordered by name.
func (st *State) LoadVariables(ctx context.Context, owner variable.Owner) ([]variable.Instance, error) {
	if err := owner.Validate(); err != nil {
		return nil, errors.Trace(err)
	}

	q := persistence.NewQuery().
		WithParam("execution_id", owner.ExecutionID).
		WithParam("task_id", owner.TaskID)

	var rows []dbVariable
	if err := st.store.SelectList(ctx, selectVariablesByOwnerOp, q, &rows); err != nil {
		return nil, errors.Trace(err)
	}

	instances := make([]variable.Instance, len(rows))
	for i, row := range rows {
		instance, err := row.toInstance()
		if err != nil {
			return nil, errors.Trace(err)
		}
		instances[i] = instance
	}
	return instances, nil
}

// CreateVariable persists a new variable instance, generating its id
// when not supplied.
func (st *State) CreateVariable(ctx context.Context, v variable.Instance) (variable.Instance, error) {
	if v.Name == "" {
		return variable.Instance{}, errors.NotValidf("empty variable name")
	}
	if err := v.Owner.Validate(); err != nil {
		return variable.Instance{}, errors.Trace(err)
	}
	if v.ID == "" {
		v.ID = uuid.New().String()
	}

	row, err := toRow(v)
	if err != nil {
		return variable.Instance{}, errors.Trace(err)
	}

	err = st.store.Insert(ctx, insertVariableOp, &row)
	if errors.Is(err, persistenceerrors.AlreadyExists) {
		return variable.Instance{}, errors.Annotatef(variableerrors.AlreadyExists, "%q", v.Name)
	} else if err != nil {
		return variable.Instance{}, errors.Trace(err)
	}
	return v, nil
}

// GetVariable returns the variable instance with the input id.
func (st *State) GetVariable(ctx context.Context, id string) (variable.Instance, error) {
	var row dbVariable
	err := st.store.SelectByID(ctx, selectVariableByIDOp, id, &row)
	if errors.Is(err, persistenceerrors.NotFound) {
		return variable.Instance{}, errors.Annotatef(variableerrors.NotFound, "%q", id)
	} else if err != nil {
		return variable.Instance{}, errors.Trace(err)
	}
	return row.toInstance()
}

// DeleteVariable removes the variable instance with the input id.
func (st *State) DeleteVariable(ctx context.Context, id string) error {
	err := st.store.Delete(ctx, deleteVariableOp, &dbVariable{VarID: id})
	if errors.Is(err, persistenceerrors.NotFound) {
		return errors.Annotatef(variableerrors.NotFound, "%q", id)
	}
	return errors.Trace(err)
}

// ListVariableInstances returns variable instances ordered by id, scoped
// by the input query's tenant restriction and paging. It backs the
// history and runtime variable queries.
func (st *State) ListVariableInstances(ctx context.Context, q *persistence.Query) ([]variable.Instance, error) {
	var rows []dbVariable
	if err := st.store.SelectList(ctx, selectVariableInstanceListOp, q, &rows); err != nil {
		return nil, errors.Trace(err)
	}

	instances := make([]variable.Instance, len(rows))
	for i, row := range rows {
		instance, err := row.toInstance()
		if err != nil {
			return nil, errors.Trace(err)
		}
		instances[i] = instance
	}
	return instances, nil
}
