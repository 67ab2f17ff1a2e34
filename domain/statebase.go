// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package domain

import (
	"sync"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"

	coredatabase "github.com/procession-engine/procession/core/database"
)

// StateBase defines a base struct for requesting a database. This will cache
// the database and prepared statements for the lifetime of the state struct.
type StateBase struct {
	mu      sync.Mutex
	factory coredatabase.TxnRunnerFactory
	db      coredatabase.TxnRunner

	// statements is a cache of sqlair statements keyed by query text.
	statements map[string]*sqlair.Statement
}

// NewStateBase returns a new StateBase.
func NewStateBase(factory coredatabase.TxnRunnerFactory) *StateBase {
	return &StateBase{
		factory:    factory,
		statements: make(map[string]*sqlair.Statement),
	}
}

// DB returns the database for the state. The runner is requested from the
// factory on first use and cached thereafter.
func (st *StateBase) DB() (coredatabase.TxnRunner, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.factory == nil {
		return nil, errors.New("nil getDB")
	}

	if st.db == nil {
		var err error
		if st.db, err = st.factory(); err != nil {
			return nil, errors.Annotate(err, "invoking getDB")
		}
	}
	return st.db, nil
}

// Prepare prepares the input query against the input type samples, caching
// the resulting statement so repeat calls with the same query are cheap.
func (st *StateBase) Prepare(query string, typeSamples ...any) (*sqlair.Statement, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if stmt, ok := st.statements[query]; ok {
		return stmt, nil
	}

	stmt, err := sqlair.Prepare(query, typeSamples...)
	if err != nil {
		return nil, errors.Annotate(err, "preparing statement")
	}

	st.statements[query] = stmt
	return stmt, nil
}
