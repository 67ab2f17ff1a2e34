// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package batch models batch operations: long-running, job-splitting
// units of work such as mass process instance migration or cancellation.
package batch

// Batch is a batch operation. It participates in optimistic concurrency;
// the seed job advances JobsCreated as it splits the batch into
// execution jobs.
type Batch struct {
	// ID is the batch's immutable identity.
	ID string

	// Type names the kind of batch, e.g. "instance-migration".
	Type string

	// TotalJobs is the total number of execution jobs the batch will
	// create.
	TotalJobs int

	// JobsCreated is the number of execution jobs created so far.
	JobsCreated int

	// Suspended is true if batch execution is paused.
	Suspended bool

	// TenantID is the owning tenant, empty for an untenanted batch.
	TenantID string

	// Revision is the optimistic concurrency token.
	Revision int
}
