// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package service

import (
	"context"

	"github.com/juju/errors"

	"github.com/procession-engine/procession/core/auth"
	corelogger "github.com/procession-engine/procession/core/logger"
	"github.com/procession-engine/procession/domain/persistence"
	"github.com/procession-engine/procession/domain/tenancy"
	"github.com/procession-engine/procession/domain/tenant"
)

// Permissions checked against the tenant resource.
const (
	tenantResource = "tenant"

	readPermission   = "read"
	createPermission = "create"
	updatePermission = "update"
	deletePermission = "delete"
)

// State describes retrieval and persistence methods required by the
// service.
type State interface {
	CreateTenant(ctx context.Context, id, name string) (tenant.Tenant, error)
	GetTenant(ctx context.Context, id string) (tenant.Tenant, error)
	UpdateTenantName(ctx context.Context, id, name string) (tenant.Tenant, error)
	DeleteTenant(ctx context.Context, id string) error
	ListTenants(ctx context.Context, q *persistence.Query) ([]tenant.Tenant, error)
	AddMembership(ctx context.Context, m tenant.Membership) (tenant.Membership, error)
	RemoveMembership(ctx context.Context, id string) error
	ListMemberships(ctx context.Context, tenantID string, page *persistence.Page) ([]tenant.Membership, error)
}

// Service provides the tenant API, enforcing authorization and tenant
// scoping on behalf of the caller.
type Service struct {
	st      State
	checker auth.PermissionChecker
	filter  *tenancy.Filter
	logger  corelogger.Logger
}

// NewService returns a new service reference wrapping the input state.
func NewService(st State, checker auth.PermissionChecker, filter *tenancy.Filter, logger corelogger.Logger) *Service {
	return &Service{
		st:      st,
		checker: checker,
		filter:  filter,
		logger:  logger,
	}
}

// CreateTenant adds a new tenant on behalf of the principal.
func (s *Service) CreateTenant(ctx context.Context, principal auth.Principal, id, name string) (tenant.Tenant, error) {
	if err := s.checker.Allowed(ctx, principal, createPermission, tenantResource); err != nil {
		return tenant.Tenant{}, errors.Trace(err)
	}
	return s.st.CreateTenant(ctx, id, name)
}

// Tenant returns the tenant with the input id. An authorization denial
// is returned as an error satisfying auth.ErrPermissionDenied, distinct
// from not-found.
func (s *Service) Tenant(ctx context.Context, principal auth.Principal, id string) (tenant.Tenant, error) {
	if err := s.checker.Allowed(ctx, principal, readPermission, tenantResource); err != nil {
		return tenant.Tenant{}, errors.Trace(err)
	}
	return s.st.GetTenant(ctx, id)
}

// UpdateTenantName renames the tenant with the input id.
func (s *Service) UpdateTenantName(ctx context.Context, principal auth.Principal, id, name string) (tenant.Tenant, error) {
	if err := s.checker.Allowed(ctx, principal, updatePermission, tenantResource); err != nil {
		return tenant.Tenant{}, errors.Trace(err)
	}
	return s.st.UpdateTenantName(ctx, id, name)
}

// DeleteTenant removes the tenant with the input id.
func (s *Service) DeleteTenant(ctx context.Context, principal auth.Principal, id string) error {
	if err := s.checker.Allowed(ctx, principal, deletePermission, tenantResource); err != nil {
		return errors.Trace(err)
	}
	return s.st.DeleteTenant(ctx, id)
}

// ListTenants returns the tenants visible to the principal. An
// authorization denial is deliberately downgraded to an empty result for
// this read-only listing; any other failure, including a data access
// failure, is returned so the two outcomes remain distinguishable.
func (s *Service) ListTenants(ctx context.Context, principal auth.Principal, page *persistence.Page) ([]tenant.Tenant, error) {
	if err := s.checker.Allowed(ctx, principal, readPermission, tenantResource); err != nil {
		if errors.Is(err, auth.ErrPermissionDenied) {
			s.logger.Debugf(ctx, "downgrading tenant list denial for %q to empty result", principal.UserID)
			return nil, nil
		}
		return nil, errors.Trace(err)
	}

	q := persistence.NewQuery()
	if page != nil {
		q = q.WithPage(*page)
	}
	s.filter.ConfigureQuery(ctx, q, &principal)

	return s.st.ListTenants(ctx, q)
}

// AddMembership associates the tenant with a user or a group.
func (s *Service) AddMembership(ctx context.Context, principal auth.Principal, m tenant.Membership) (tenant.Membership, error) {
	if err := s.checker.Allowed(ctx, principal, updatePermission, tenantResource); err != nil {
		return tenant.Membership{}, errors.Trace(err)
	}
	return s.st.AddMembership(ctx, m)
}

// RemoveMembership deletes the membership with the input id.
func (s *Service) RemoveMembership(ctx context.Context, principal auth.Principal, id string) error {
	if err := s.checker.Allowed(ctx, principal, updatePermission, tenantResource); err != nil {
		return errors.Trace(err)
	}
	return s.st.RemoveMembership(ctx, id)
}

// ListMemberships returns the memberships of the input tenant.
func (s *Service) ListMemberships(ctx context.Context, principal auth.Principal, tenantID string, page *persistence.Page) ([]tenant.Membership, error) {
	if err := s.checker.Allowed(ctx, principal, readPermission, tenantResource); err != nil {
		return nil, errors.Trace(err)
	}
	return s.st.ListMemberships(ctx, tenantID, page)
}
