// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package schema holds the engine database schema. Deltas are applied in
// order at install time; the lock sentinel rows are provisioned here and
// are never deleted afterwards.
package schema

import "github.com/procession-engine/procession/core/database"

// EngineDDL returns the deltas used to create the engine database schema.
func EngineDDL() []database.Delta {
	schemas := []func() database.Delta{
		tenantSchema,
		propertySchema,
		batchSchema,
		variableInstanceSchema,
		lockSentinelSchema,
		lockSentinelRows,
	}

	var deltas []database.Delta
	for _, fn := range schemas {
		deltas = append(deltas, fn())
	}
	return deltas
}

func tenantSchema() database.Delta {
	return database.MakeDelta(`
CREATE TABLE tenant (
    id       TEXT PRIMARY KEY,
    name     TEXT NOT NULL,
    revision INT NOT NULL
);

CREATE TABLE tenant_membership (
    id        TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    user_id   TEXT,
    group_id  TEXT,
    CONSTRAINT fk_tenant_membership_tenant
        FOREIGN KEY (tenant_id)
        REFERENCES  tenant(id)
        ON DELETE CASCADE,
    -- A membership associates a tenant with a user or a group,
    -- never both and never neither.
    CONSTRAINT chk_tenant_membership_member
        CHECK ((user_id IS NULL) != (group_id IS NULL))
);

CREATE UNIQUE INDEX idx_tenant_membership_user
ON tenant_membership (tenant_id, user_id)
WHERE user_id IS NOT NULL;

CREATE UNIQUE INDEX idx_tenant_membership_group
ON tenant_membership (tenant_id, group_id)
WHERE group_id IS NOT NULL;`)
}

func propertySchema() database.Delta {
	return database.MakeDelta(`
CREATE TABLE property (
    name  TEXT PRIMARY KEY,
    value TEXT
);`)
}

func batchSchema() database.Delta {
	return database.MakeDelta(`
CREATE TABLE batch (
    id           TEXT PRIMARY KEY,
    type         TEXT NOT NULL,
    total_jobs   INT NOT NULL,
    jobs_created INT NOT NULL,
    suspended    BOOLEAN NOT NULL DEFAULT FALSE,
    tenant_id    TEXT,
    revision     INT NOT NULL
);

CREATE INDEX idx_batch_type
ON batch (type);`)
}

func variableInstanceSchema() database.Delta {
	return database.MakeDelta(`
CREATE TABLE variable_instance (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    type         TEXT NOT NULL,
    value        TEXT,
    execution_id TEXT,
    task_id      TEXT,
    tenant_id    TEXT,
    -- A variable belongs to exactly one owning scope at a time.
    CONSTRAINT chk_variable_instance_owner
        CHECK ((execution_id IS NULL) != (task_id IS NULL))
);

CREATE UNIQUE INDEX idx_variable_instance_execution_name
ON variable_instance (execution_id, name)
WHERE execution_id IS NOT NULL;

CREATE UNIQUE INDEX idx_variable_instance_task_name
ON variable_instance (task_id, name)
WHERE task_id IS NOT NULL;`)
}

func lockSentinelSchema() database.Delta {
	return database.MakeDelta(`
CREATE TABLE lock_sentinel (
    name        TEXT PRIMARY KEY,
    acquired_at TIMESTAMP
);`)
}

// lockSentinelRows seeds one row per lock purpose. Acquisition writes the
// row; no payload is ever read from it.
func lockSentinelRows() database.Delta {
	return database.MakeDelta(`
INSERT INTO lock_sentinel (name) VALUES
    ('deployment.lock'),
    ('history.cleanup.lock'),
    ('startup.lock'),
    ('telemetry.lock'),
    ('installation.id.lock');`)
}
