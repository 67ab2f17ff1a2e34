// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"context"
	"fmt"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"

	corelogger "github.com/procession-engine/procession/core/logger"
	"github.com/procession-engine/procession/domain/lock"
	"github.com/procession-engine/procession/domain/persistence"
)

// lockOperation returns the operation name for the input purpose.
func lockOperation(p lock.Purpose) persistence.Operation {
	return persistence.Operation(fmt.Sprintf("acquireLock.%s", p))
}

// State acquires system-wide exclusive locks by writing sentinel rows.
// A lock is held until the acquiring transaction ends; there is no
// explicit release.
type State struct {
	store  *persistence.Store
	logger corelogger.Logger
}

// NewState registers one lock operation per purpose with the store's
// registry and returns a new state reference.
func NewState(registry *persistence.Registry, store *persistence.Store, logger corelogger.Logger) (*State, error) {
	for _, purpose := range lock.Purposes() {
		name, _ := purpose.SentinelName()
		query := fmt.Sprintf(`
UPDATE lock_sentinel
SET    acquired_at = DATETIME('now')
WHERE  name = '%s'`, name)

		if err := registry.Register(lockOperation(purpose), query); err != nil {
			return nil, errors.Annotatef(err, "registering lock operation for %q", purpose)
		}
	}
	return &State{store: store, logger: logger}, nil
}

// AcquireExclusiveLock obtains the exclusive lock for the input purpose
// within its own transaction. Two callers requesting the same purpose
// serialise on the sentinel row; distinct purposes never contend. The
// call blocks on the store-side row lock, or fails with an error
// satisfying persistenceerrors.LockUnavailable, depending on the store's
// isolation behaviour.
func (st *State) AcquireExclusiveLock(ctx context.Context, purpose lock.Purpose) error {
	if _, ok := purpose.SentinelName(); !ok {
		return errors.NotValidf("lock purpose %q", purpose)
	}
	st.logger.Debugf(ctx, "acquiring exclusive %q lock", purpose)
	return errors.Trace(st.store.Lock(ctx, lockOperation(purpose)))
}

// AcquireExclusiveLockTx obtains the exclusive lock for the input
// purpose inside the input transaction, so that the lock is held for the
// remainder of that unit of work.
func (st *State) AcquireExclusiveLockTx(ctx context.Context, tx *sqlair.TX, purpose lock.Purpose) error {
	if _, ok := purpose.SentinelName(); !ok {
		return errors.NotValidf("lock purpose %q", purpose)
	}
	st.logger.Debugf(ctx, "acquiring exclusive %q lock", purpose)
	return errors.Trace(st.store.LockTx(ctx, tx, lockOperation(purpose)))
}
