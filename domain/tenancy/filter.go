// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package tenancy scopes queries by tenant so that multi-tenant
// deployments never leak data across tenants.
package tenancy

import (
	"context"

	"github.com/juju/collections/set"

	"github.com/procession-engine/procession/core/auth"
	corelogger "github.com/procession-engine/procession/core/logger"
	"github.com/procession-engine/procession/domain/persistence"
)

// Config carries the tenant checking configuration. The flag is read
// once per query configuration call; it is passed in explicitly rather
// than read from ambient state.
type Config struct {
	// CheckEnabled globally enables tenant restriction of queries.
	CheckEnabled bool
}

// Filter derives tenant restriction parameters from the caller's
// principal and applies them to outgoing queries.
type Filter struct {
	cfg    Config
	logger corelogger.Logger
}

// NewFilter returns a filter for the input configuration.
func NewFilter(cfg Config, logger corelogger.Logger) *Filter {
	return &Filter{cfg: cfg, logger: logger}
}

// ConfigureQuery annotates the input query with the caller's tenant
// scope. If tenant checking is enabled and a principal is present, the
// query is restricted to the principal's authorized tenants; a
// tenant-unbound principal is given the AllTenants sentinel. Otherwise
// restriction is explicitly disabled: a nil principal is a system-level
// context such as engine bootstrap, where the check does not apply. The
// disable is recorded in the trace log so it remains an auditable
// choice.
func (f *Filter) ConfigureQuery(ctx context.Context, q *persistence.Query, principal *auth.Principal) {
	if !f.cfg.CheckEnabled {
		f.logger.Tracef(ctx, "tenant restriction disabled: tenant check is off")
		q.DisableTenantRestriction()
		return
	}
	if principal == nil {
		f.logger.Tracef(ctx, "tenant restriction disabled: no current principal")
		q.DisableTenantRestriction()
		return
	}

	tenantIDs := principal.TenantIDs
	if tenantIDs.IsEmpty() {
		tenantIDs = set.NewStrings(auth.AllTenants)
	}
	q.RestrictToTenants(tenantIDs)
}
