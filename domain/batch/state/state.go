// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"context"
	"database/sql"

	"github.com/juju/collections/transform"
	"github.com/juju/errors"

	corelogger "github.com/procession-engine/procession/core/logger"
	"github.com/procession-engine/procession/domain/batch"
	"github.com/procession-engine/procession/domain/persistence"
)

const (
	selectBatchByIDOp = persistence.Operation("selectBatchById")
	insertBatchOp     = persistence.Operation("insertBatch")
	updateBatchOp     = persistence.Operation("updateBatch")
	deleteBatchOp     = persistence.Operation("deleteBatch")
	selectBatchListOp = persistence.Operation("selectBatchList")
)

// dbBatch represents a row of the batch table.
type dbBatch struct {
	BatchID     string         `db:"id"`
	Type        string         `db:"type"`
	TotalJobs   int            `db:"total_jobs"`
	JobsCreated int            `db:"jobs_created"`
	Suspended   bool           `db:"suspended"`
	TenantID    sql.NullString `db:"tenant_id"`
	Rev         int            `db:"revision"`
}

// batchState holds the mutable persistent fields of a batch.
type batchState struct {
	totalJobs   int
	jobsCreated int
	suspended   bool
}

// ID (persistence.Entity) returns the batch id.
func (b *dbBatch) ID() string {
	return b.BatchID
}

// Revision (persistence.Revisioned) returns the loaded revision.
func (b *dbBatch) Revision() int {
	return b.Rev
}

// SetRevision (persistence.Revisioned) sets the revision.
func (b *dbBatch) SetRevision(rev int) {
	b.Rev = rev
}

// PersistentState (persistence.Revisioned) returns a snapshot of the
// batch's mutable fields.
func (b *dbBatch) PersistentState() persistence.PersistentState {
	return persistence.MutableState(batchState{
		totalJobs:   b.TotalJobs,
		jobsCreated: b.JobsCreated,
		suspended:   b.Suspended,
	})
}

func (b *dbBatch) toBatch() batch.Batch {
	return batch.Batch{
		ID:          b.BatchID,
		Type:        b.Type,
		TotalJobs:   b.TotalJobs,
		JobsCreated: b.JobsCreated,
		Suspended:   b.Suspended,
		TenantID:    b.TenantID.String,
		Revision:    b.Rev,
	}
}

// State describes retrieval and persistence methods for batches.
type State struct {
	store  *persistence.Store
	logger corelogger.Logger
}

// NewState registers the batch operations with the input registry and
// returns a new state reference.
func NewState(registry *persistence.Registry, store *persistence.Store, logger corelogger.Logger) (*State, error) {
	for _, r := range []struct {
		register func(persistence.Operation, string, ...any) error
		op       persistence.Operation
		query    string
	}{{
		register: registry.Register,
		op:       selectBatchByIDOp,
		query: `
SELECT &dbBatch.*
FROM   batch
WHERE  id = $M.id`,
	}, {
		register: registry.Register,
		op:       insertBatchOp,
		query: `
INSERT INTO batch (*) VALUES ($dbBatch.*)`,
	}, {
		register: registry.Register,
		op:       updateBatchOp,
		query: `
UPDATE batch
SET    total_jobs = $dbBatch.total_jobs,
       jobs_created = $dbBatch.jobs_created,
       suspended = $dbBatch.suspended,
       revision = $dbBatch.revision + 1
WHERE  id = $dbBatch.id
AND    revision = $dbBatch.revision`,
	}, {
		register: registry.Register,
		op:       deleteBatchOp,
		query: `
DELETE FROM batch
WHERE  id = $dbBatch.id
AND    revision = $dbBatch.revision`,
	}, {
		register: registry.RegisterTenantScopedList,
		op:       selectBatchListOp,
		query: `
SELECT &dbBatch.*
FROM   batch
WHERE  (NOT $M.tenant_restricted OR tenant_id IS NULL OR tenant_id IN ($S[:]))
ORDER  BY id`,
	}} {
		if err := r.register(r.op, r.query, dbBatch{}); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return &State{store: store, logger: logger}, nil
}

// CreateBatch adds a new batch at revision 1.
func (st *State) CreateBatch(ctx context.Context, b batch.Batch) (batch.Batch, error) {
	if b.ID == "" {
		return batch.Batch{}, errors.NotValidf("empty batch id")
	}

	row := dbBatch{
		BatchID:     b.ID,
		Type:        b.Type,
		TotalJobs:   b.TotalJobs,
		JobsCreated: b.JobsCreated,
		Suspended:   b.Suspended,
		TenantID:    sql.NullString{String: b.TenantID, Valid: b.TenantID != ""},
		Rev:         1,
	}
	if err := st.store.Insert(ctx, insertBatchOp, &row); err != nil {
		return batch.Batch{}, errors.Trace(err)
	}
	return row.toBatch(), nil
}

// GetBatch returns the batch with the input id.
func (st *State) GetBatch(ctx context.Context, id string) (batch.Batch, error) {
	row, err := st.getBatch(ctx, id)
	if err != nil {
		return batch.Batch{}, errors.Trace(err)
	}
	return row.toBatch(), nil
}

// RegisterCreatedJobs advances the batch's created job counter. The
// update carries the loaded revision, so a concurrent seed job run
// surfaces as a persistenceerrors.ConcurrentModification conflict.
func (st *State) RegisterCreatedJobs(ctx context.Context, id string, jobs int) (batch.Batch, error) {
	row, err := st.getBatch(ctx, id)
	if err != nil {
		return batch.Batch{}, errors.Trace(err)
	}

	row.JobsCreated += jobs
	if err := st.store.Flush(ctx, updateBatchOp, row); err != nil {
		return batch.Batch{}, errors.Trace(err)
	}
	return row.toBatch(), nil
}

// SetSuspended pauses or resumes the batch.
func (st *State) SetSuspended(ctx context.Context, id string, suspended bool) (batch.Batch, error) {
	row, err := st.getBatch(ctx, id)
	if err != nil {
		return batch.Batch{}, errors.Trace(err)
	}

	row.Suspended = suspended
	if err := st.store.Flush(ctx, updateBatchOp, row); err != nil {
		return batch.Batch{}, errors.Trace(err)
	}
	return row.toBatch(), nil
}

// DeleteBatch removes the batch with the input id, provided it has not
// been concurrently updated.
func (st *State) DeleteBatch(ctx context.Context, id string) error {
	row, err := st.getBatch(ctx, id)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(st.store.Delete(ctx, deleteBatchOp, row))
}

// ListBatches returns batches ordered by id, scoped by the input query's
// tenant restriction and paging.
func (st *State) ListBatches(ctx context.Context, q *persistence.Query) ([]batch.Batch, error) {
	var rows []dbBatch
	if err := st.store.SelectList(ctx, selectBatchListOp, q, &rows); err != nil {
		return nil, errors.Trace(err)
	}
	return transform.Slice(rows, func(row dbBatch) batch.Batch {
		return row.toBatch()
	}), nil
}

func (st *State) getBatch(ctx context.Context, id string) (*dbBatch, error) {
	var row dbBatch
	if err := st.store.SelectByID(ctx, selectBatchByIDOp, id, &row); err != nil {
		return nil, errors.Trace(err)
	}
	return &row, nil
}
